package db

import (
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for every model
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == DriverSQLite {
		// cascade deletes of batch entries rely on foreign keys
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return err
		}
	}

	return db.AutoMigrate(
		&User{},
		&Site{},
		&Host{},
		&Mapping{},
		&HostPath{},
		&MappingsBatch{},
		&MappingsBatchEntry{},
		&Version{},
	)
}

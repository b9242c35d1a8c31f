package db

import (
	"fmt"
	"time"
)

// Config holds database configuration
type Config struct {
	Driver   string        `env:"DB_DRIVER" envDefault:"mysql"`
	Host     string        `env:"MYSQL_HOST" envDefault:"localhost"`
	Port     string        `env:"MYSQL_PORT" envDefault:"3306"`
	User     string        `env:"MYSQL_USER" envDefault:"root"`
	Password string        `env:"MYSQL_PASSWORD"`
	Database string        `env:"MYSQL_DATABASE" envDefault:"transition"`
	Path     string        `env:"SQLITE_PATH" envDefault:"transition.db"`
	MaxOpen  int           `env:"DB_MAX_OPEN" envDefault:"25"`
	MaxIdle  int           `env:"DB_MAX_IDLE" envDefault:"5"`
	Timeout  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30s"`
}

// DSN builds the driver specific data source name
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

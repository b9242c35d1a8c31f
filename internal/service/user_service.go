package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/alphagov/transition-mappings/internal/db"
)

// CreateUser hashes password and stores a new user
func CreateUser(ctx context.Context, dbConn *gorm.DB, username, password string) (*db.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password cannot be empty")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := db.User{
		Username: username,
		Password: string(hashed),
	}
	if err := dbConn.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username
func GetUserByUsername(ctx context.Context, dbConn *gorm.DB, username string) (*db.User, error) {
	var user db.User
	err := dbConn.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// Authenticate returns the user when password matches the stored hash
func Authenticate(ctx context.Context, dbConn *gorm.DB, username, password string) (*db.User, error) {
	user, err := GetUserByUsername(ctx, dbConn, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// RobotUser returns the named robot user, creating it without a usable password
func RobotUser(ctx context.Context, dbConn *gorm.DB, username string) (*db.User, error) {
	var user db.User
	err := dbConn.WithContext(ctx).
		Where(db.User{Username: username}).
		Attrs(db.User{Password: "!", IsRobot: true}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find or create robot user %s: %w", username, err)
	}
	return &user, nil
}

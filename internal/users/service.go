package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("users: username already taken")
	// ErrInvalidCredentials indicates login failed; the cause (unknown user
	// or wrong password) is deliberately not distinguished.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrNotFound indicates no user exists for the identifier.
	ErrNotFound = errors.New("users: user not found")
	// ErrInvalidInput indicates a missing or malformed registration field.
	ErrInvalidInput = errors.New("users: invalid input")
)

const minPasswordLength = 8

// IDProvider issues unique identifiers for new users.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
}

// Service manages account registration and password authentication.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider IDProvider
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errors.New("users: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, errors.New("users: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		idProvider: cfg.IDProvider,
	}, nil
}

// RegisterInput carries a new account's fields.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// Register creates a new account, rejecting duplicate emails and usernames.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.TrimSpace(input.Username)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidInput
	}
	if username == "" {
		return nil, ErrInvalidInput
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrInvalidInput
	}

	db := s.db.WithContext(ctx)
	if taken, err := s.exists(db, "email = ?", email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}
	if taken, err := s.exists(db, "username = ?", username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return nil, err
	}

	user := User{
		ID:           id,
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate verifies a username-or-email plus password pair.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	db := s.db.WithContext(ctx)
	var user User
	err := db.Where("username = ?", login).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Where("email = ?", strings.ToLower(login)).Take(&user).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get loads one account by id.
func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) exists(db *gorm.DB, condition string, value string) (bool, error) {
	var count int64
	if err := db.Model(&User{}).Where(condition, value).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

package directory

import (
	"context"
	"fmt"
	"strings"
)

// Service provides account lifecycle operations: signup, credential checks
// and password changes. Listing and graph mutation live in the team package.
type Service struct {
	store Store
}

// NewService wires the service to its user store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// SignUpRequest carries the fields accepted at registration.
type SignUpRequest struct {
	Username string
	Email    string
	Password string
	Role     string
}

// SignUp validates and registers a new user.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Password) == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	role, err := ParseRole(req.Role)
	if err != nil {
		return User{}, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return User{}, err
	}
	return s.store.CreateUser(ctx, User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
}

// Authenticate checks credentials and returns the matching user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return User{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return User{}, ErrBadCredentials
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return User{}, ErrBadCredentials
	}
	return u, nil
}

// ChangePassword rotates a user's password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if strings.TrimSpace(next) == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(u.PasswordHash, current); err != nil {
		return ErrBadCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, userID, hash)
}

// Get returns a single user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	if strings.TrimSpace(id) == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.GetUser(ctx, id)
}

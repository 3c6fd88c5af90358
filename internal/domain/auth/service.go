package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront-api/internal/domain/user"
)

// Sentinel errors for registration and login.
var (
	ErrMissingFields      = errors.New("username, email, and password are required")
	ErrInvalidRole        = errors.New("unknown role")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// RegisterRequest holds the input for creating a new account.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	Role     user.Role
}

// Result is the outcome of a successful register or login: the account and a
// freshly issued token.
type Result struct {
	User  *user.User
	Token string
}

// Service implements account registration and credential verification.
type Service struct {
	users  user.Repository
	tokens *Tokens
}

// NewService creates an auth Service.
func NewService(users user.Repository, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register creates a new account with a bcrypt-hashed password and returns it
// together with a signed token. Emails are stored lowercased.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Result, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || req.Password == "" {
		return nil, ErrMissingFields
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, user.ErrEmailTaken
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, errors.Wrap(err, "check existing email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	role := req.Role
	if role == "" {
		role = user.RoleUser
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	u := &user.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create user")
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Result{User: u, Token: token}, nil
}

// Login verifies email/password credentials and returns the account with a
// signed token. Lookup and compare failures are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "get user by email")
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Result{User: u, Token: token}, nil
}

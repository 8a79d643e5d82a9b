// Package auth issues and validates session tokens, hashes credentials and
// enforces the two-role authorization model.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/foliobase/foliobase/internal/models"
	"github.com/foliobase/foliobase/pkg/apperr"
)

// bcryptCost trades sign-in latency for brute-force resistance.
const bcryptCost = 12

// invalidCredentials is shared by "no such user" and "wrong password" so the
// response never reveals whether an email is registered.
const invalidCredentials = "invalid email or password"

// dummyHash keeps the unknown-email path as slow as a real comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("foliobase-timing-pad"), bcryptCost)

// Service handles authentication operations
type Service struct {
	store  Store
	tokens *TokenIssuer
}

// NewService creates a new auth Service
func NewService(store Store, tokens *TokenIssuer) *Service {
	return &Service{store: store, tokens: tokens}
}

// Session is the sign-in response payload.
type Session struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	User        *models.User `json:"user"`
}

// SignUp creates a new account with the editor role.
func (s *Service) SignUp(ctx context.Context, email, password string, meta map[string]any) (*models.User, error) {
	if email == "" || password == "" {
		return nil, apperr.InvalidArgument("email and password are required")
	}
	if len(password) < 8 {
		return nil, apperr.InvalidArgument("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, apperr.Execution(err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Role:         models.RoleEditor,
		PasswordHash: string(hash),
		Meta:         meta,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SignIn verifies credentials and returns a session with a signed token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil || !user.Active {
		// Burn a hash comparison anyway so the two failure paths take
		// comparable time.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthorized(invalidCredentials)
	}

	token, err := s.tokens.Issue(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, apperr.Execution(err)
	}
	return &Session{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   s.tokens.TTLSeconds(),
		User:        user,
	}, nil
}

// GetUser returns the account behind a principal.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.store.UserByID(ctx, userID)
}

// ChangePassword verifies the old password before setting the new one.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return apperr.InvalidArgument("password must be at least 8 characters")
	}
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return apperr.Unauthorized("current password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return apperr.Execution(err)
	}
	return s.store.UpdatePassword(ctx, userID, string(hash))
}

// ListUsers returns all accounts. Admin only.
func (s *Service) ListUsers(ctx context.Context, actor *Principal) ([]*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

// SetRole changes a user's role. Admin only; admins cannot change their own.
func (s *Service) SetRole(ctx context.Context, actor *Principal, targetID, role string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.UserID == targetID {
		return apperr.Forbidden("cannot change your own role")
	}
	if !models.ValidRole(role) {
		return apperr.InvalidArgument("role must be admin or editor")
	}
	return s.store.SetRole(ctx, targetID, role)
}

// Deactivate disables an account. Admin only; admins cannot deactivate
// themselves.
func (s *Service) Deactivate(ctx context.Context, actor *Principal, targetID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.UserID == targetID {
		return apperr.Forbidden("cannot deactivate your own account")
	}
	return s.store.SetActive(ctx, targetID, false)
}

func requireAdmin(actor *Principal) error {
	if actor == nil {
		return apperr.Unauthorized("authentication required")
	}
	if actor.Role != models.RoleAdmin {
		return apperr.Forbidden("admin role required")
	}
	return nil
}

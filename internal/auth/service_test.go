package auth

import (
	"context"
	"testing"

	"github.com/foliobase/foliobase/internal/models"
	"github.com/foliobase/foliobase/pkg/apperr"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	users map[string]*models.User // keyed by ID
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*models.User)}
}

func (m *memStore) CreateUser(ctx context.Context, u *models.User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.Conflict("email already registered")
		}
	}
	cp := *u
	m.users[u.ID.String()] = &cp
	return nil
}

func (m *memStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (m *memStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdatePassword(ctx context.Context, id, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	u.PasswordHash = hash
	return nil
}

func (m *memStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	var out []*models.User
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) SetRole(ctx context.Context, id, role string) error {
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	u.Role = role
	return nil
}

func (m *memStore) SetActive(ctx context.Context, id string, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	u.Active = active
	return nil
}

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	return NewService(store, NewTokenIssuer([]byte("test-secret"))), store
}

func TestSignUp_And_SignIn(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "ana@example.com", "correct horse", map[string]any{"display": "Ana"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if user.Role != models.RoleEditor {
		t.Errorf("role = %q, want editor by default", user.Role)
	}
	if user.PasswordHash == "correct horse" || user.PasswordHash == "" {
		t.Error("password stored without hashing")
	}

	sess, err := svc.SignIn(ctx, "ana@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if sess.TokenType != "Bearer" || sess.AccessToken == "" {
		t.Errorf("session = %+v", sess)
	}
	if sess.ExpiresIn != int(TokenTTL.Seconds()) {
		t.Errorf("expires_in = %d", sess.ExpiresIn)
	}
}

func TestSignUp_Duplicate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "dup@example.com", "password1", nil); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	_, err := svc.SignUp(ctx, "dup@example.com", "password2", nil)
	if !apperr.IsCode(err, apperr.CodeConflict) {
		t.Errorf("err = %v, want conflict", err)
	}
}

func TestSignUp_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "", "password1", nil); !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("empty email: err = %v", err)
	}
	if _, err := svc.SignUp(ctx, "a@b.c", "short", nil); !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("short password: err = %v", err)
	}
}

func TestSignIn_NoEnumeration(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "real@example.com", "password1", nil); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	_, wrongPass := svc.SignIn(ctx, "real@example.com", "wrong-password")
	_, noUser := svc.SignIn(ctx, "ghost@example.com", "whatever1")

	// Both failures must be indistinguishable to the caller.
	if !apperr.IsCode(wrongPass, apperr.CodeUnauthorized) || !apperr.IsCode(noUser, apperr.CodeUnauthorized) {
		t.Fatalf("errs = %v / %v, want unauthorized for both", wrongPass, noUser)
	}
	if wrongPass.Error() != noUser.Error() {
		t.Errorf("messages differ: %q vs %q", wrongPass.Error(), noUser.Error())
	}
}

func TestSignIn_DeactivatedUser(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "gone@example.com", "password1", nil)
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	store.SetActive(ctx, user.ID.String(), false)

	if _, err := svc.SignIn(ctx, "gone@example.com", "password1"); !apperr.IsCode(err, apperr.CodeUnauthorized) {
		t.Errorf("err = %v, want unauthorized", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "ch@example.com", "oldpassword", nil)
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	id := user.ID.String()

	if err := svc.ChangePassword(ctx, id, "wrong", "newpassword"); !apperr.IsCode(err, apperr.CodeUnauthorized) {
		t.Errorf("wrong old password: err = %v", err)
	}
	if err := svc.ChangePassword(ctx, id, "oldpassword", "new"); !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("short new password: err = %v", err)
	}
	if err := svc.ChangePassword(ctx, id, "oldpassword", "newpassword"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.SignIn(ctx, "ch@example.com", "newpassword"); err != nil {
		t.Errorf("SignIn with new password: %v", err)
	}
	if _, err := svc.SignIn(ctx, "ch@example.com", "oldpassword"); err == nil {
		t.Error("old password still accepted")
	}
}

func TestAdminOperations(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	admin, _ := svc.SignUp(ctx, "admin@example.com", "password1", nil)
	store.SetRole(ctx, admin.ID.String(), models.RoleAdmin)
	editor, _ := svc.SignUp(ctx, "editor@example.com", "password1", nil)

	adminP := &Principal{UserID: admin.ID.String(), Role: models.RoleAdmin}
	editorP := &Principal{UserID: editor.ID.String(), Role: models.RoleEditor}

	// Editors cannot manage users.
	if _, err := svc.ListUsers(ctx, editorP); !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Errorf("ListUsers as editor: err = %v", err)
	}
	if err := svc.SetRole(ctx, editorP, admin.ID.String(), models.RoleEditor); !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Errorf("SetRole as editor: err = %v", err)
	}

	// Admins can, but not against themselves.
	if err := svc.SetRole(ctx, adminP, adminP.UserID, models.RoleEditor); !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Errorf("self role change: err = %v", err)
	}
	if err := svc.Deactivate(ctx, adminP, adminP.UserID); !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Errorf("self deactivation: err = %v", err)
	}

	if err := svc.SetRole(ctx, adminP, editor.ID.String(), models.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if got, _ := store.UserByID(ctx, editor.ID.String()); got.Role != models.RoleAdmin {
		t.Errorf("role = %q, want admin", got.Role)
	}
	if err := svc.SetRole(ctx, adminP, editor.ID.String(), "superuser"); !apperr.IsCode(err, apperr.CodeInvalidArgument) {
		t.Errorf("unknown role: err = %v", err)
	}

	if err := svc.Deactivate(ctx, adminP, editor.ID.String()); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if got, _ := store.UserByID(ctx, editor.ID.String()); got.Active {
		t.Error("user still active after deactivation")
	}

	users, err := svc.ListUsers(ctx, adminP)
	if err != nil || len(users) != 2 {
		t.Errorf("ListUsers = %d users, err %v", len(users), err)
	}
}

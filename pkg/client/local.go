package client

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/foliobase/foliobase/internal/auth"
	"github.com/foliobase/foliobase/internal/compiler"
	"github.com/foliobase/foliobase/internal/functions"
	"github.com/foliobase/foliobase/internal/models"
	"github.com/foliobase/foliobase/internal/storage"
	"github.com/foliobase/foliobase/pkg/apperr"
	"github.com/foliobase/foliobase/pkg/query"
)

// LocalBackend drives the query executor, auth service and storage client
// in-process, without an HTTP round-trip.
type LocalBackend struct {
	executor  *compiler.Executor
	auth      *auth.Service
	storage   *storage.Client
	functions *functions.Registry

	// mu guards principal; SignIn may race with session lookups when the
	// backend is shared across goroutines.
	mu        sync.RWMutex
	principal *auth.Principal
}

// NewLocal creates the in-process backend adapter.
func NewLocal(executor *compiler.Executor, authSvc *auth.Service, store *storage.Client, registry *functions.Registry) *LocalBackend {
	return &LocalBackend{executor: executor, auth: authSvc, storage: store, functions: registry}
}

// WithPrincipal returns a copy of the backend bound to an authenticated
// identity. Session lookups and function invocations use it; a sign-in on
// the original does not affect the copy.
func (l *LocalBackend) WithPrincipal(p *auth.Principal) *LocalBackend {
	return &LocalBackend{
		executor:  l.executor,
		auth:      l.auth,
		storage:   l.storage,
		functions: l.functions,
		principal: p,
	}
}

func (l *LocalBackend) setPrincipal(p *auth.Principal) {
	l.mu.Lock()
	l.principal = p
	l.mu.Unlock()
}

func (l *LocalBackend) currentPrincipal() *auth.Principal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.principal
}

// From starts a query against table.
func (l *LocalBackend) From(table string) *QueryBuilder {
	return newBuilder(table, l)
}

func (l *LocalBackend) run(ctx context.Context, d *query.Descriptor) query.Result {
	return l.executor.Execute(ctx, d)
}

// Auth returns the account/session API.
func (l *LocalBackend) Auth() AuthAPI {
	return &localAuth{backend: l}
}

// Storage returns the object API for bucket.
func (l *LocalBackend) Storage(bucket string) StorageAPI {
	return &localStorage{client: l.storage, bucket: bucket}
}

// Functions returns the server-function API.
func (l *LocalBackend) Functions() FunctionsAPI {
	return &localFunctions{backend: l}
}

type localAuth struct {
	backend *LocalBackend
}

func (a *localAuth) SignUp(ctx context.Context, email, password string, meta map[string]any) (*User, error) {
	user, err := a.backend.auth.SignUp(ctx, email, password, meta)
	if err != nil {
		return nil, err
	}
	return fromModel(user), nil
}

func (a *localAuth) SignIn(ctx context.Context, email, password string) (*Session, error) {
	sess, err := a.backend.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	// Later calls on this backend act as the signed-in user.
	a.backend.setPrincipal(&auth.Principal{
		UserID: sess.User.ID.String(),
		Email:  sess.User.Email,
		Role:   sess.User.Role,
	})
	return &Session{
		AccessToken: sess.AccessToken,
		TokenType:   sess.TokenType,
		ExpiresIn:   sess.ExpiresIn,
		User:        fromModel(sess.User),
	}, nil
}

func (a *localAuth) Session(ctx context.Context) (*User, error) {
	principal := a.backend.currentPrincipal()
	if principal == nil {
		return nil, apperr.Unauthorized("not signed in")
	}
	user, err := a.backend.auth.GetUser(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	return fromModel(user), nil
}

func (a *localAuth) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	principal := a.backend.currentPrincipal()
	if principal == nil {
		return apperr.Unauthorized("not signed in")
	}
	return a.backend.auth.ChangePassword(ctx, principal.UserID, oldPassword, newPassword)
}

type localStorage struct {
	client *storage.Client
	bucket string
}

func (s *localStorage) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) (*UploadInfo, error) {
	info, err := s.client.Upload(ctx, s.bucket, path, r, size, contentType)
	if err != nil {
		return nil, err
	}
	return &UploadInfo{Path: info.Path, ID: info.ID, FullPath: info.FullPath}, nil
}

func (s *localStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := s.client.Download(ctx, s.bucket, path)
	if err != nil {
		return nil, err
	}
	return obj.Reader, nil
}

func (s *localStorage) Remove(ctx context.Context, paths []string) error {
	return s.client.Remove(ctx, s.bucket, paths)
}

func (s *localStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects, err := s.client.List(ctx, s.bucket, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]ObjectInfo, len(objects))
	for i, o := range objects {
		out[i] = ObjectInfo{Key: o.Key, Size: o.Size, ContentType: o.ContentType, LastModified: o.LastModified}
	}
	return out, nil
}

func (s *localStorage) PublicURL(path string) string {
	return s.client.PublicURL(s.bucket, path)
}

func (s *localStorage) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	return s.client.SignedURL(ctx, s.bucket, path, ttl)
}

type localFunctions struct {
	backend *LocalBackend
}

func (f *localFunctions) Invoke(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.InvalidArgument("payload is not serializable")
	}
	result, err := f.backend.functions.Invoke(ctx, name, f.backend.currentPrincipal(), body)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return nil, apperr.Execution(err)
	}
	return out, nil
}

func fromModel(u *models.User) *User {
	return &User{
		ID:        u.ID.String(),
		Email:     u.Email,
		Role:      u.Role,
		Meta:      u.Meta,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Package client is the backend adapter contract: the uniform interface UI
// code calls for data, auth, storage and functions. Concrete adapters (an
// in-process one speaking to the relational store, an HTTP one speaking to
// a remote Foliobase instance) are interchangeable behind it; callers pick
// one at process start via configuration and never inspect which is active.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/foliobase/foliobase/pkg/query"
)

// Backend is the capability set every concrete adapter implements.
type Backend interface {
	Auth() AuthAPI
	From(table string) *QueryBuilder
	Storage(bucket string) StorageAPI
	Functions() FunctionsAPI
}

// AuthAPI covers account and session operations.
type AuthAPI interface {
	SignUp(ctx context.Context, email, password string, meta map[string]any) (*User, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	Session(ctx context.Context) (*User, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
}

// StorageAPI covers object operations scoped to one bucket.
type StorageAPI interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) (*UploadInfo, error)
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, paths []string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	PublicURL(path string) string
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// FunctionsAPI invokes named server functions.
type FunctionsAPI interface {
	Invoke(ctx context.Context, name string, payload any) (json.RawMessage, error)
}

// User is the account shape shared by both adapters.
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Role      string         `json:"role"`
	Meta      map[string]any `json:"meta,omitempty"`
	Active    bool           `json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Session is a successful sign-in.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user"`
}

// UploadInfo describes a stored object.
type UploadInfo struct {
	Path     string `json:"path"`
	ID       string `json:"id"`
	FullPath string `json:"fullPath"`
}

// ObjectInfo is one storage listing entry.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// runner executes one compiled descriptor; each adapter provides its own.
type runner interface {
	run(ctx context.Context, d *query.Descriptor) query.Result
}

// Mode selects the concrete adapter.
const (
	ModeLocal = "local"
	ModeHTTP  = "http"
)

// Select returns the backend for the configured mode. local must be non-nil
// when mode is "local".
func Select(mode, baseURL string, local Backend) (Backend, error) {
	switch mode {
	case ModeHTTP:
		return NewHTTP(baseURL), nil
	case ModeLocal, "":
		if local == nil {
			return nil, fmt.Errorf("local backend not available")
		}
		return local, nil
	default:
		return nil, fmt.Errorf("unknown backend mode %q", mode)
	}
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/foliobase/foliobase/pkg/apperr"
	"github.com/foliobase/foliobase/pkg/query"
)

// HTTPBackend serializes descriptors over HTTP to a remote Foliobase
// instance, which runs an equivalent compiler on its side.
type HTTPBackend struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewHTTP creates the remote backend adapter.
func NewHTTP(baseURL string) *HTTPBackend {
	return &HTTPBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken sets the bearer token used on authenticated calls. SignIn sets it
// automatically.
func (h *HTTPBackend) SetToken(token string) {
	h.token = token
}

// From starts a query against table.
func (h *HTTPBackend) From(table string) *QueryBuilder {
	return newBuilder(table, h)
}

// run posts the descriptor to the generic data endpoint. The server answers
// with a Result envelope on success and failure alike, so the envelope is
// decoded regardless of status.
func (h *HTTPBackend) run(ctx context.Context, d *query.Descriptor) query.Result {
	encoded, err := json.Marshal(d)
	if err != nil {
		return query.Fail(apperr.InvalidArgument("descriptor is not serializable"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/v1/query", bytes.NewReader(encoded))
	if err != nil {
		return query.Fail(apperr.Execution(err))
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.httpc.Do(req)
	if err != nil {
		return query.Fail(apperr.Execution(err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return query.Fail(apperr.Execution(err))
	}
	var res query.Result
	if err := json.Unmarshal(payload, &res); err == nil && (res.Error != nil || resp.StatusCode < 400) {
		return res
	}
	return query.Fail(decodeError(resp.StatusCode, payload))
}

// Auth returns the account/session API.
func (h *HTTPBackend) Auth() AuthAPI {
	return &httpAuth{backend: h}
}

// Storage returns the object API for bucket.
func (h *HTTPBackend) Storage(bucket string) StorageAPI {
	return &httpStorage{backend: h, bucket: bucket}
}

// Functions returns the server-function API.
func (h *HTTPBackend) Functions() FunctionsAPI {
	return &httpFunctions{backend: h}
}

// doJSON posts body as JSON and decodes the response into out. Non-2xx
// responses are converted back into application errors.
func (h *HTTPBackend) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apperr.InvalidArgument("request is not serializable")
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return apperr.Execution(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.send(req, out)
}

func (h *HTTPBackend) send(req *http.Request, out any) error {
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := h.httpc.Do(req)
	if err != nil {
		return apperr.Execution(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Execution(err)
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, payload)
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return apperr.Execution(fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// decodeError rebuilds an AppError from an error response body.
func decodeError(status int, payload []byte) error {
	var body struct {
		Error string      `json:"error"`
		Code  apperr.Code `json:"code"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != "" {
		code := body.Code
		if code == "" {
			code = codeForStatus(status)
		}
		return apperr.New(code, body.Error, nil)
	}
	return apperr.New(codeForStatus(status), http.StatusText(status), nil)
}

func codeForStatus(status int) apperr.Code {
	switch status {
	case http.StatusBadRequest:
		return apperr.CodeInvalidArgument
	case http.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case http.StatusForbidden:
		return apperr.CodeForbidden
	case http.StatusNotFound:
		return apperr.CodeNotFound
	case http.StatusConflict:
		return apperr.CodeConflict
	case http.StatusRequestEntityTooLarge:
		return apperr.CodePayloadTooLarge
	case http.StatusNotAcceptable:
		return apperr.CodeMultipleRows
	default:
		return apperr.CodeExecutionError
	}
}

type httpAuth struct {
	backend *HTTPBackend
}

func (a *httpAuth) SignUp(ctx context.Context, email, password string, meta map[string]any) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	body := map[string]any{"email": email, "password": password, "meta": meta}
	if err := a.backend.doJSON(ctx, http.MethodPost, "/v1/auth/signup", body, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (a *httpAuth) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	body := map[string]any{"email": email, "password": password}
	if err := a.backend.doJSON(ctx, http.MethodPost, "/v1/auth/signin", body, &session); err != nil {
		return nil, err
	}
	a.backend.SetToken(session.AccessToken)
	return &session, nil
}

func (a *httpAuth) Session(ctx context.Context) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := a.backend.doJSON(ctx, http.MethodGet, "/v1/auth/session", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (a *httpAuth) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]any{"old_password": oldPassword, "new_password": newPassword}
	return a.backend.doJSON(ctx, http.MethodPut, "/v1/auth/password", body, nil)
}

type httpStorage struct {
	backend *HTTPBackend
	bucket  string
}

func (s *httpStorage) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) (*UploadInfo, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("path", path); err != nil {
		return nil, apperr.Execution(err)
	}
	part, err := form.CreateFormFile("file", path)
	if err != nil {
		return nil, apperr.Execution(err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, apperr.Execution(err)
	}
	if err := form.Close(); err != nil {
		return nil, apperr.Execution(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.backend.baseURL+"/v1/storage/"+url.PathEscape(s.bucket), &buf)
	if err != nil {
		return nil, apperr.Execution(err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var info UploadInfo
	if err := s.backend.send(req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *httpStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.backend.baseURL+"/v1/storage/"+url.PathEscape(s.bucket)+"/object/"+path, nil)
	if err != nil {
		return nil, apperr.Execution(err)
	}
	if s.backend.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.backend.token)
	}
	resp, err := s.backend.httpc.Do(req)
	if err != nil {
		return nil, apperr.Execution(err)
	}
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, decodeError(resp.StatusCode, payload)
	}
	return resp.Body, nil
}

func (s *httpStorage) Remove(ctx context.Context, paths []string) error {
	body := map[string]any{"paths": paths}
	return s.backend.doJSON(ctx, http.MethodDelete, "/v1/storage/"+url.PathEscape(s.bucket), body, nil)
}

func (s *httpStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out struct {
		Objects []ObjectInfo `json:"objects"`
	}
	path := "/v1/storage/" + url.PathEscape(s.bucket)
	if prefix != "" {
		path += "?prefix=" + url.QueryEscape(prefix)
	}
	if err := s.backend.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Objects, nil
}

func (s *httpStorage) PublicURL(path string) string {
	return s.backend.baseURL + "/public/" + url.PathEscape(s.bucket) + "/" + strings.TrimPrefix(path, "/")
}

func (s *httpStorage) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	var out struct {
		SignedURL string `json:"signed_url"`
	}
	body := map[string]any{"path": path, "expires_in": int(ttl / time.Second)}
	if err := s.backend.doJSON(ctx, http.MethodPost, "/v1/storage/"+url.PathEscape(s.bucket)+"/sign", body, &out); err != nil {
		return "", err
	}
	return out.SignedURL, nil
}

type httpFunctions struct {
	backend *HTTPBackend
}

func (f *httpFunctions) Invoke(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	var out struct {
		Data json.RawMessage `json:"data"`
	}
	if err := f.backend.doJSON(ctx, http.MethodPost, "/v1/functions/"+url.PathEscape(name), payload, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

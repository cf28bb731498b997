package targets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"service-catalog/core/reconcile"
	"service-catalog/core/resilient"
	"service-catalog/core/utils"
	"service-catalog/feature/catalog/models"
	"service-catalog/feature/catalog/normalize"

	"go.uber.org/zap"
)

// ErrUnauthorized is returned when the remote API rejects the credentials.
var ErrUnauthorized = errors.New("remote api rejected credentials")

// StatusError is a non-2xx response from the remote API.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: remote returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return e.Code >= 500
}

// isRetryableRemote classifies remote failures. Network errors follow
// resilient.IsRetryable.
func isRetryableRemote(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return resilient.IsRetryable(err)
}

// RemoteTarget reconciles into a production instance over its HTTP API.
type RemoteTarget struct {
	baseURL  string
	email    string
	password string
	http     *http.Client
	retrier  resilient.Retrier
	logger   *zap.Logger

	token string
}

var (
	_ reconcile.Target[models.ServiceRecord] = (*RemoteTarget)(nil)
	_ reconcile.Preparer                     = (*RemoteTarget)(nil)
)

// NewRemoteTarget creates a remote target. Failed requests are retried
// under policy.
func NewRemoteTarget(cfg RemoteConfig, policy resilient.Policy, logger *zap.Logger) *RemoteTarget {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	return &RemoteTarget{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		email:    cfg.Email,
		password: cfg.Password,
		http:     &http.Client{Timeout: time.Duration(timeout) * time.Second},
		retrier:  resilient.Retrier{Policy: policy, Logger: logger, Classify: isRetryableRemote},
		logger:   logger,
	}
}

// Name returns "remote".
func (t *RemoteTarget) Name() string {
	return string(reconcile.KindRemote)
}

// Prepare logs in and keeps the bearer token for the run.
func (t *RemoteTarget) Prepare(ctx context.Context, _ reconcile.ReconcileOptions) error {
	t.token = ""
	if t.baseURL == "" {
		return errors.New("remote base url is not configured")
	}

	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": t.email, "password": t.password}

	err := t.do(ctx, http.MethodPost, "/api/auth/login", body, &resp)
	var se *StatusError
	if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
		return fmt.Errorf("%w: %d", ErrUnauthorized, se.Code)
	}
	if err != nil {
		return err
	}
	if resp.Token == "" {
		return fmt.Errorf("%w: login returned no token", ErrUnauthorized)
	}

	t.token = resp.Token
	t.logger.Debug("Remote login succeeded", zap.String("base_url", t.baseURL))
	return nil
}

// List fetches every remote record.
func (t *RemoteTarget) List(ctx context.Context) ([]reconcile.Item[models.ServiceRecord], error) {
	var raw json.RawMessage
	if err := t.do(ctx, http.MethodGet, "/api/services", nil, &raw); err != nil {
		return nil, err
	}
	return listItems(raw)
}

func listItems(raw json.RawMessage) ([]reconcile.Item[models.ServiceRecord], error) {
	entries, err := decodeList(raw)
	if err != nil {
		return nil, err
	}

	items := make([]reconcile.Item[models.ServiceRecord], 0, len(entries))
	for _, entry := range entries {
		rawRec, err := models.DecodeRaw(entry)
		if err != nil {
			return nil, err
		}
		items = append(items, reconcile.Item[models.ServiceRecord]{
			ID:    utils.ToString(entry["id"]),
			Value: normalize.ToCanonical(rawRec),
		})
	}
	return items, nil
}

// Create posts rec and returns the id assigned by the remote. POST is not
// idempotent: before a retry the remote is listed again and a record with
// the same name, created by a failed-looking earlier attempt, is adopted.
func (t *RemoteTarget) Create(ctx context.Context, rec models.ServiceRecord) (string, error) {
	body, err := json.Marshal(payload(rec))
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	var id string
	attempt := 0
	fields := resilient.Fields{"method": http.MethodPost, "path": "/api/services", "name": rec.Name}
	err = t.retrier.Do(ctx, "remote.post", fields, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			found, err := t.findID(ctx, rec.Name)
			if err != nil {
				return err
			}
			if found != "" {
				t.logger.Info("Adopted record created by an earlier attempt",
					zap.String("name", rec.Name),
					zap.String("id", found),
				)
				id = found
				return nil
			}
		}

		var created map[string]any
		if err := t.send(ctx, http.MethodPost, "/api/services", body, &created); err != nil {
			return err
		}
		id = utils.ToString(unwrapData(created)["id"])
		return nil
	}, nil)
	if err != nil {
		return "", err
	}
	return id, nil
}

// findID returns the id of the remote record named name, or "".
func (t *RemoteTarget) findID(ctx context.Context, name string) (string, error) {
	var raw json.RawMessage
	if err := t.send(ctx, http.MethodGet, "/api/services", nil, &raw); err != nil {
		return "", err
	}
	items, err := listItems(raw)
	if err != nil {
		return "", err
	}
	for _, item := range items {
		if item.Value.Name == name {
			return item.ID, nil
		}
	}
	return "", nil
}

// Update replaces the remote record with id.
func (t *RemoteTarget) Update(ctx context.Context, id string, rec models.ServiceRecord) error {
	return t.do(ctx, http.MethodPut, "/api/services/"+url.PathEscape(id), payload(rec), nil)
}

// Delete removes the remote record with id.
func (t *RemoteTarget) Delete(ctx context.Context, id string) error {
	return t.do(ctx, http.MethodDelete, "/api/services/"+url.PathEscape(id), nil, nil)
}

// do performs one API call under the retry policy and decodes a JSON
// response into out when out is non-nil.
func (t *RemoteTarget) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	fields := resilient.Fields{"method": method, "path": path}
	return t.retrier.Do(ctx, "remote."+strings.ToLower(method), fields, func(ctx context.Context) error {
		return t.send(ctx, method, path, body, out)
	}, nil)
}

// send performs a single request.
func (t *RemoteTarget) send(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resilient.Temporary(fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: truncate(string(data), 200)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func payload(rec models.ServiceRecord) models.LegacyRecord {
	legacy := normalize.ToLegacyFlat(rec)
	legacy.ID = ""
	return legacy
}

// decodeList accepts a bare array or an object wrapping it in "data" or "services".
func decodeList(raw json.RawMessage) ([]map[string]any, error) {
	dec := func(b []byte, v any) error {
		d := json.NewDecoder(bytes.NewReader(b))
		d.UseNumber()
		return d.Decode(v)
	}

	var list []map[string]any
	if err := dec(raw, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Data     []map[string]any `json:"data"`
		Services []map[string]any `json:"services"`
	}
	if err := dec(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected service list response: %w", err)
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return wrapped.Services, nil
}

func unwrapData(m map[string]any) map[string]any {
	if inner, ok := m["data"].(map[string]any); ok {
		return inner
	}
	return m
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

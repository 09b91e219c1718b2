package users

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/notematic/internal/common"
	"github.com/dmitrijs2005/notematic/internal/server/models"
)

const (
	designDocID     = "_design/users"
	byUsernameView  = "by_username"
	claimDocType    = "username_claim"
	claimIDPrefix   = "username:"
	byUsernameMapFn = `function (doc) { if (doc.type === "user" && doc.username) { emit(doc.username, null); } }`
)

// CouchDBRepository talks to a CouchDB database over its HTTP API.
// Usernames are kept unique by a claim document whose _id is derived from
// the username, so two concurrent registrations cannot both succeed.
type CouchDBRepository struct {
	baseURL  string
	database string
	user     string
	password string
	client   *http.Client
}

// CouchDBOption customises a CouchDBRepository.
type CouchDBOption func(*CouchDBRepository)

// WithHTTPClient replaces the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) CouchDBOption {
	return func(r *CouchDBRepository) { r.client = c }
}

// NewCouchDBRepository returns a gateway for database at baseURL that
// authenticates with the given credentials. timeout bounds every request.
func NewCouchDBRepository(baseURL, database, user, password string, timeout time.Duration, opts ...CouchDBOption) *CouchDBRepository {
	r := &CouchDBRepository{
		baseURL:  strings.TrimRight(baseURL, "/"),
		database: database,
		user:     user,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type viewRow struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
	Doc   json.RawMessage `json:"doc"`
}

type viewResponse struct {
	Rows []viewRow `json:"rows"`
}

type writeResponse struct {
	OK     bool   `json:"ok"`
	ID     string `json:"id"`
	Rev    string `json:"rev"`
	AltID  string `json:"_id"`
	AltRev string `json:"_rev"`
}

type usernameClaim struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// FindByUsername queries the by_username view. Any non-2xx answer, including
// a missing view, is reported as unavailable rather than as not found.
func (r *CouchDBRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	key, err := json.Marshal(username)
	if err != nil {
		return nil, fmt.Errorf("%w: encode key: %w", common.ErrStoreUnavailable, err)
	}
	q := url.Values{}
	q.Set("key", string(key))
	q.Set("include_docs", "true")

	resp, err := r.do(ctx, http.MethodGet, q, nil, r.database, "_design", "users", "_view", byUsernameView)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if !isSuccess(resp.StatusCode) {
		return nil, statusError("view by_username", resp.StatusCode)
	}

	var body viewResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode view response: %w", common.ErrStoreUnavailable, err)
	}
	if len(body.Rows) == 0 {
		return nil, common.ErrorNotFound
	}

	row := body.Rows[0]
	raw := row.Doc
	if len(raw) == 0 || string(raw) == "null" {
		raw = row.Value
	}

	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("%w: decode user: %w", common.ErrStoreUnavailable, err)
	}
	if u.ID == "" {
		u.ID = row.ID
	}
	return &u, nil
}

// Create claims the username and then stores the user document. The
// returned user carries the id and revision assigned by CouchDB.
func (r *CouchDBRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	claimRev, err := r.claimUsername(ctx, user.Username, user.CreatedAt)
	if err != nil {
		return nil, err
	}

	doc := *user
	doc.ID = ""
	doc.Rev = ""
	doc.Type = models.UserDocType

	resp, err := r.do(ctx, http.MethodPost, nil, doc, r.database)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusConflict:
		r.releaseClaim(ctx, user.Username, claimRev)
		return nil, fmt.Errorf("%w: user document", common.ErrStoreConflict)
	case !isSuccess(resp.StatusCode):
		r.releaseClaim(ctx, user.Username, claimRev)
		return nil, statusError("create user", resp.StatusCode)
	}

	var wr writeResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("%w: decode create response: %w", common.ErrStoreUnavailable, err)
	}

	doc.ID = firstNonEmpty(wr.ID, wr.AltID)
	doc.Rev = firstNonEmpty(wr.Rev, wr.AltRev)
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: create response without id", common.ErrStoreUnavailable)
	}
	return &doc, nil
}

func (r *CouchDBRepository) claimUsername(ctx context.Context, username string, at time.Time) (string, error) {
	claim := usernameClaim{Type: claimDocType, Username: username, CreatedAt: at}

	resp, err := r.do(ctx, http.MethodPut, nil, claim, r.database, claimIDPrefix+username)
	if err != nil {
		return "", err
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusConflict:
		return "", fmt.Errorf("%w: username %q already claimed", common.ErrStoreConflict, username)
	case !isSuccess(resp.StatusCode):
		return "", statusError("claim username", resp.StatusCode)
	}

	var wr writeResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", fmt.Errorf("%w: decode claim response: %w", common.ErrStoreUnavailable, err)
	}
	return firstNonEmpty(wr.Rev, wr.AltRev), nil
}

// releaseClaim is best effort; a leftover claim only blocks the username.
func (r *CouchDBRepository) releaseClaim(ctx context.Context, username, rev string) {
	if rev == "" {
		return
	}
	q := url.Values{}
	q.Set("rev", rev)
	resp, err := r.do(context.WithoutCancel(ctx), http.MethodDelete, q, nil, r.database, claimIDPrefix+username)
	if err != nil {
		return
	}
	drain(resp)
}

// EnsureDatabase creates the database if it does not exist yet.
func (r *CouchDBRepository) EnsureDatabase(ctx context.Context) error {
	resp, err := r.do(ctx, http.MethodPut, nil, nil, r.database)
	if err != nil {
		return err
	}
	defer drain(resp)

	if isSuccess(resp.StatusCode) || resp.StatusCode == http.StatusPreconditionFailed {
		return nil
	}
	return statusError("create database", resp.StatusCode)
}

// EnsureDesignDoc installs the by_username view when it is missing.
func (r *CouchDBRepository) EnsureDesignDoc(ctx context.Context) error {
	resp, err := r.do(ctx, http.MethodGet, nil, nil, r.database, "_design", "users")
	if err != nil {
		return err
	}
	drain(resp)

	switch {
	case isSuccess(resp.StatusCode):
		return nil
	case resp.StatusCode != http.StatusNotFound:
		return statusError("get design doc", resp.StatusCode)
	}

	design := map[string]any{
		"_id":      designDocID,
		"language": "javascript",
		"views": map[string]any{
			byUsernameView: map[string]string{"map": byUsernameMapFn},
		},
	}
	resp, err = r.do(ctx, http.MethodPut, nil, design, r.database, "_design", "users")
	if err != nil {
		return err
	}
	defer drain(resp)

	if isSuccess(resp.StatusCode) || resp.StatusCode == http.StatusConflict {
		return nil
	}
	return statusError("put design doc", resp.StatusCode)
}

// Ping checks that the CouchDB server answers.
func (r *CouchDBRepository) Ping(ctx context.Context) error {
	resp, err := r.do(ctx, http.MethodGet, nil, nil)
	if err != nil {
		return err
	}
	defer drain(resp)

	if !isSuccess(resp.StatusCode) {
		return statusError("ping", resp.StatusCode)
	}
	return nil
}

func (r *CouchDBRepository) endpoint(query url.Values, segments ...string) string {
	var b strings.Builder
	b.WriteString(r.baseURL)
	b.WriteByte('/')
	for i, s := range segments {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(url.PathEscape(s))
	}
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}

func (r *CouchDBRepository) do(ctx context.Context, method string, query url.Values, body any, segments ...string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode body: %w", common.ErrStoreUnavailable, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.endpoint(query, segments...), reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", common.ErrStoreUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.user != "" {
		req.SetBasicAuth(r.user, r.password)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", common.ErrStoreUnavailable, method, redact(req.URL), err)
	}
	return resp, nil
}

func redact(u *url.URL) string {
	c := *u
	c.User = nil
	c.RawQuery = ""
	return c.String()
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func statusError(op string, code int) error {
	return fmt.Errorf("%w: couchdb %s: status %d", common.ErrStoreUnavailable, op, code)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ Repository = (*CouchDBRepository)(nil)

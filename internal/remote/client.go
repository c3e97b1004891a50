// Package remote talks to the cloud store over its JSON/HTTP contract:
// watermark-bounded pulls, idempotent batch upserts, asset uploads, and the
// balance verification endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/balance"
	"github.com/tallyapp/tally/internal/models"
)

// Client is the remote store surface the sync engine and migration service
// depend on. Upserts are idempotent: repeating a batch is always safe.
type Client interface {
	PullPersons(ctx context.Context, since time.Time) ([]*models.Person, error)
	UpsertPersons(ctx context.Context, rows []*models.Person) error

	PullGroups(ctx context.Context, since time.Time) ([]*models.Group, error)
	UpsertGroups(ctx context.Context, rows []*models.Group) error

	PullGroupMembers(ctx context.Context, since time.Time) ([]*models.GroupMember, error)
	UpsertGroupMembers(ctx context.Context, rows []*models.GroupMember) error

	PullTransactions(ctx context.Context, since time.Time) ([]*models.Transaction, error)
	UpsertTransactions(ctx context.Context, rows []*models.Transaction) error

	PullSplits(ctx context.Context, since time.Time) ([]*models.Split, error)
	UpsertSplits(ctx context.Context, rows []*models.Split) error

	PullPayers(ctx context.Context, since time.Time) ([]*models.Payer, error)
	UpsertPayers(ctx context.Context, rows []*models.Payer) error

	PullSettlements(ctx context.Context, since time.Time) ([]*models.Settlement, error)
	UpsertSettlements(ctx context.Context, rows []*models.Settlement) error

	PullReminders(ctx context.Context, since time.Time) ([]*models.Reminder, error)
	UpsertReminders(ctx context.Context, rows []*models.Reminder) error

	// UploadAsset stores a binary asset (a person photo) and returns the
	// remote URL assigned to it.
	UploadAsset(ctx context.Context, filename string, data []byte) (string, error)

	// VerifyBalance asks the server to run its own netting over the synced
	// data, as a cross-check against the local engine.
	VerifyBalance(ctx context.Context, personID uuid.UUID) (*balance.Report, error)
}

// Error is a non-2xx response from the remote store.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote: %d %s", e.Status, e.Message)
}

// Temporary reports whether retrying could help. Server-side failures and
// throttling are transient; 4xx rejections are permanent.
func (e *Error) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// IsTemporary classifies an error from this package for retry decisions.
// Anything that is not an explicit permanent rejection (a 4xx Error) is
// treated as transient: network failures, timeouts, 5xx.
func IsTemporary(err error) bool {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Temporary()
	}
	return true
}

// HTTPClient implements Client against a tallyd server.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient creates a client for the given base URL, authenticating
// with the given bearer token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) PullPersons(ctx context.Context, since time.Time) ([]*models.Person, error) {
	return pull[*models.Person](c, ctx, models.EntityPersons, since)
}

func (c *HTTPClient) UpsertPersons(ctx context.Context, rows []*models.Person) error {
	return push(c, ctx, models.EntityPersons, rows)
}

func (c *HTTPClient) PullGroups(ctx context.Context, since time.Time) ([]*models.Group, error) {
	return pull[*models.Group](c, ctx, models.EntityGroups, since)
}

func (c *HTTPClient) UpsertGroups(ctx context.Context, rows []*models.Group) error {
	return push(c, ctx, models.EntityGroups, rows)
}

func (c *HTTPClient) PullGroupMembers(ctx context.Context, since time.Time) ([]*models.GroupMember, error) {
	return pull[*models.GroupMember](c, ctx, models.EntityGroupMembers, since)
}

func (c *HTTPClient) UpsertGroupMembers(ctx context.Context, rows []*models.GroupMember) error {
	return push(c, ctx, models.EntityGroupMembers, rows)
}

func (c *HTTPClient) PullTransactions(ctx context.Context, since time.Time) ([]*models.Transaction, error) {
	return pull[*models.Transaction](c, ctx, models.EntityTransactions, since)
}

func (c *HTTPClient) UpsertTransactions(ctx context.Context, rows []*models.Transaction) error {
	return push(c, ctx, models.EntityTransactions, rows)
}

func (c *HTTPClient) PullSplits(ctx context.Context, since time.Time) ([]*models.Split, error) {
	return pull[*models.Split](c, ctx, models.EntitySplits, since)
}

func (c *HTTPClient) UpsertSplits(ctx context.Context, rows []*models.Split) error {
	return push(c, ctx, models.EntitySplits, rows)
}

func (c *HTTPClient) PullPayers(ctx context.Context, since time.Time) ([]*models.Payer, error) {
	return pull[*models.Payer](c, ctx, models.EntityPayers, since)
}

func (c *HTTPClient) UpsertPayers(ctx context.Context, rows []*models.Payer) error {
	return push(c, ctx, models.EntityPayers, rows)
}

func (c *HTTPClient) PullSettlements(ctx context.Context, since time.Time) ([]*models.Settlement, error) {
	return pull[*models.Settlement](c, ctx, models.EntitySettlements, since)
}

func (c *HTTPClient) UpsertSettlements(ctx context.Context, rows []*models.Settlement) error {
	return push(c, ctx, models.EntitySettlements, rows)
}

func (c *HTTPClient) PullReminders(ctx context.Context, since time.Time) ([]*models.Reminder, error) {
	return pull[*models.Reminder](c, ctx, models.EntityReminders, since)
}

func (c *HTTPClient) UpsertReminders(ctx context.Context, rows []*models.Reminder) error {
	return push(c, ctx, models.EntityReminders, rows)
}

// UploadAsset posts the raw bytes and returns the assigned URL.
func (c *HTTPClient) UploadAsset(ctx context.Context, filename string, data []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/assets?filename=%s", c.baseURL, url.QueryEscape(filename))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build asset request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var result struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

// VerifyBalance calls POST /balance with the person ID.
func (c *HTTPClient) VerifyBalance(ctx context.Context, personID uuid.UUID) (*balance.Report, error) {
	body, err := json.Marshal(map[string]string{"person_id": personID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode balance request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/balance", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build balance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	report := &balance.Report{}
	if err := c.do(req, report); err != nil {
		return nil, err
	}
	return report, nil
}

// pull fetches rows changed after the watermark, tombstones included.
func pull[T any](c *HTTPClient, ctx context.Context, entity models.EntityType, since time.Time) ([]T, error) {
	endpoint := fmt.Sprintf("%s/sync/%s?updated_at=%s",
		c.baseURL, entity, url.QueryEscape(since.UTC().Format(time.RFC3339Nano)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build pull request: %w", err)
	}

	var rows []T
	if err := c.do(req, &rows); err != nil {
		return nil, fmt.Errorf("failed to pull %s: %w", entity, err)
	}
	return rows, nil
}

// push upserts a batch of rows. An empty batch is a no-op.
func push[T any](c *HTTPClient, ctx context.Context, entity models.EntityType, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode %s batch: %w", entity, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/sync/%s", c.baseURL, entity), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("failed to push %s: %w", entity, err)
	}
	return nil
}

// do sends the request with auth, maps non-2xx responses to *Error, and
// decodes the response body into out when given.
func (c *HTTPClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Status: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

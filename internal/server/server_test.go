package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tallyapp/tally/internal/auth"
	"github.com/tallyapp/tally/internal/ledger"
	"github.com/tallyapp/tally/internal/models"
	"github.com/tallyapp/tally/internal/remote"
	"github.com/tallyapp/tally/internal/storage/sqlite"
)

type testEnv struct {
	store   *sqlite.Store
	server  *httptest.Server
	client  *remote.HTTPClient
	account uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	jwtManager := auth.NewManager("test-secret", time.Hour)
	srv := New(store, jwtManager, filepath.Join(t.TempDir(), "assets"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	account := uuid.New()
	token, err := jwtManager.Generate(account)
	require.NoError(t, err)

	return &testEnv{
		store:   store,
		server:  ts,
		client:  remote.NewHTTPClient(ts.URL, token),
		account: account,
	}
}

func (e *testEnv) person(name string) *models.Person {
	p := &models.Person{Name: name}
	p.ID = uuid.New()
	p.OwnerID = e.account
	p.Touch()
	return p
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header"},
		{name: "malformed header", header: "Token abc"},
		{name: "garbage token", header: "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, env.server.URL+"/sync/persons", nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestPushPullRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.person("Alice")
	require.NoError(t, env.client.UpsertPersons(ctx, []*models.Person{p}))

	rows, err := env.client.PullPersons(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Alice", rows[0].Name)
	require.True(t, rows[0].UpdatedAt.Equal(p.UpdatedAt))

	// The watermark bound is strict: nothing at or before it comes back.
	rows, err = env.client.PullPersons(ctx, p.UpdatedAt)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestPullIncludesTombstones(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.person("Doomed")
	p.MarkDeleted()
	require.NoError(t, env.client.UpsertPersons(ctx, []*models.Person{p}))

	rows, err := env.client.PullPersons(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Deleted())
}

func TestPushRejectsForeignOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.person("Intruder")
	p.OwnerID = uuid.New()

	err := env.client.UpsertPersons(ctx, []*models.Person{p})
	require.Error(t, err)

	var remoteErr *remote.Error
	require.True(t, errors.As(err, &remoteErr))
	require.Equal(t, http.StatusForbidden, remoteErr.Status)
	require.False(t, remoteErr.Temporary())
}

func TestPushRejectsNullRows(t *testing.T) {
	env := newTestEnv(t)

	// A null batch element must come back as a 400, not tear down the
	// connection.
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/sync/persons", strings.NewReader(`[null]`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+authToken(t, env))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	rows, err := env.client.PullPersons(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Empty(t, rows, "a rejected batch must not write anything")
}

func TestUnknownEntityIs404(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/sync/widgets", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+authToken(t, env))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func authToken(t *testing.T, env *testEnv) string {
	t.Helper()
	token, err := auth.NewManager("test-secret", time.Hour).Generate(env.account)
	require.NoError(t, err)
	return token
}

func TestVerifyBalanceMatchesLocalNetting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Post-migration the self person's ID equals the account ID.
	self := &models.Person{Name: "Me"}
	self.ID = env.account
	self.OwnerID = env.account
	self.Touch()
	require.NoError(t, env.store.UpsertPerson(ctx, self))

	friend := env.person("Frida")
	require.NoError(t, env.store.UpsertPerson(ctx, friend))

	tx := &models.Transaction{Title: "Dinner", AmountMinor: 1000, Currency: "USD", Method: models.SplitEqual, Date: time.Now().UTC()}
	tx.ID = uuid.New()
	tx.OwnerID = env.account
	tx.Touch()
	require.NoError(t, env.store.UpsertTransaction(ctx, tx))

	for person, owed := range map[uuid.UUID]int64{env.account: 500, friend.ID: 500} {
		s := &models.Split{TransactionID: tx.ID, PersonID: person, OwedMinor: owed}
		s.ID = uuid.New()
		s.OwnerID = env.account
		s.Touch()
		require.NoError(t, env.store.UpsertSplit(ctx, s))
	}
	payer := &models.Payer{TransactionID: tx.ID, PersonID: env.account, PaidMinor: 1000}
	payer.ID = uuid.New()
	payer.OwnerID = env.account
	payer.Touch()
	require.NoError(t, env.store.UpsertPayer(ctx, payer))

	report, err := env.client.VerifyBalance(ctx, friend.ID)
	require.NoError(t, err)
	require.False(t, report.IsSettled)
	require.Equal(t, 5.0, report.Balances["USD"])
	require.Equal(t, "USD", report.PrimaryCurrency)

	// The server runs the same computation the client-side query does.
	local, err := ledger.BalanceBetween(ctx, env.store, env.account, env.account, friend.ID)
	require.NoError(t, err)
	require.Equal(t, local.Balances, report.Balances)
	require.Equal(t, local.PrimaryAmount, report.PrimaryAmount)
}

func TestVerifyBalanceUnknownPerson(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.VerifyBalance(context.Background(), uuid.New())
	require.Error(t, err)

	var remoteErr *remote.Error
	require.True(t, errors.As(err, &remoteErr))
	require.Equal(t, http.StatusNotFound, remoteErr.Status)
}

func TestAssetUploadAndServe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	url, err := env.client.UploadAsset(ctx, "photo.jpg", []byte("jpeg bytes"))
	require.NoError(t, err)
	require.Equal(t, "/assets/"+env.account.String()+"/photo.jpg", url)

	resp, err := http.Get(env.server.URL + url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

package migration

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tallyapp/tally/internal/models"
	"github.com/tallyapp/tally/internal/remote"
	"github.com/tallyapp/tally/internal/storage/sqlite"
)

type fixture struct {
	store   *sqlite.Store
	fake    *remote.Fake
	oldSelf uuid.UUID
	account uuid.UUID
	friend  uuid.UUID
}

// seed builds a pre-migration dataset: a local-only self, a friend, one
// transaction paid by self and split across both, and a settlement.
func seed(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := fixture{
		store:   store,
		fake:    remote.NewFake(),
		oldSelf: uuid.New(),
		account: uuid.New(),
		friend:  uuid.New(),
	}

	self := &models.Person{Name: "Sam"}
	self.ID = f.oldSelf
	self.OwnerID = f.oldSelf
	self.Touch()
	require.NoError(t, store.UpsertPerson(ctx, self))

	friend := &models.Person{Name: "Frida"}
	friend.ID = f.friend
	friend.OwnerID = f.oldSelf
	friend.Touch()
	require.NoError(t, store.UpsertPerson(ctx, friend))

	tx := &models.Transaction{
		Title:       "Dinner",
		AmountMinor: 1000,
		Currency:    "USD",
		Method:      models.SplitEqual,
		Date:        time.Now().UTC(),
	}
	tx.ID = uuid.New()
	tx.OwnerID = f.oldSelf
	tx.Touch()
	require.NoError(t, store.UpsertTransaction(ctx, tx))

	for person, owed := range map[uuid.UUID]int64{f.oldSelf: 500, f.friend: 500} {
		s := &models.Split{TransactionID: tx.ID, PersonID: person, OwedMinor: owed}
		s.ID = uuid.New()
		s.OwnerID = f.oldSelf
		s.Touch()
		require.NoError(t, store.UpsertSplit(ctx, s))
	}
	payer := &models.Payer{TransactionID: tx.ID, PersonID: f.oldSelf, PaidMinor: 1000}
	payer.ID = uuid.New()
	payer.OwnerID = f.oldSelf
	payer.Touch()
	require.NoError(t, store.UpsertPayer(ctx, payer))

	settlement := &models.Settlement{
		FromPersonID: f.friend,
		ToPersonID:   f.oldSelf,
		AmountMinor:  250,
		Currency:     "USD",
		Date:         time.Now().UTC(),
	}
	settlement.ID = uuid.New()
	settlement.OwnerID = f.oldSelf
	settlement.Touch()
	require.NoError(t, store.UpsertSettlement(ctx, settlement))

	return f
}

func TestRunRemapsAndUploads(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	svc := New(f.store, f.fake, nil)
	require.NoError(t, svc.Run(ctx, f.oldSelf, f.account))

	// The old self row is gone; the new self carries the account ID and the
	// old profile.
	old, err := f.store.GetPerson(ctx, f.oldSelf)
	require.NoError(t, err)
	require.Nil(t, old)

	self, err := f.store.GetPerson(ctx, f.account)
	require.NoError(t, err)
	require.NotNil(t, self)
	require.Equal(t, "Sam", self.Name)
	require.True(t, self.IsSelf())

	// Person references in child rows now point at the account ID.
	settlements, err := f.store.SettlementsBetween(ctx, f.account, f.account, f.friend)
	require.NoError(t, err)
	require.Len(t, settlements, 1)
	require.Equal(t, f.account, settlements[0].ToPersonID)

	// Everything reached the remote store.
	require.Equal(t, 2, f.fake.Count(models.EntityPersons))
	require.Equal(t, 1, f.fake.Count(models.EntityTransactions))
	require.Equal(t, 2, f.fake.Count(models.EntitySplits))
	require.Equal(t, 1, f.fake.Count(models.EntityPayers))
	require.Equal(t, 1, f.fake.Count(models.EntitySettlements))

	done, err := svc.Complete(ctx)
	require.NoError(t, err)
	require.True(t, done)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	svc := New(f.store, f.fake, nil)
	require.NoError(t, svc.Run(ctx, f.oldSelf, f.account))

	countsBefore, err := f.store.EntityCounts(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Run(ctx, f.oldSelf, f.account))

	countsAfter, err := f.store.EntityCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, countsBefore, countsAfter)
	require.Equal(t, 2, f.fake.Count(models.EntityPersons))
}

func TestRunResumesAfterFailure(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	injected := &remote.Error{Status: http.StatusServiceUnavailable, Message: "down"}
	f.fake.FailPush[models.EntityTransactions] = injected

	svc := New(f.store, f.fake, nil)
	err := svc.Run(ctx, f.oldSelf, f.account)
	require.Error(t, err)
	require.True(t, errors.Is(err, injected))

	// Steps before the failure are recorded; nothing after it ran.
	require.Equal(t, 2, f.fake.Count(models.EntityPersons))
	require.Equal(t, 0, f.fake.Count(models.EntitySplits))

	// The retry skips completed steps and finishes the rest.
	delete(f.fake.FailPush, models.EntityTransactions)
	require.NoError(t, svc.Run(ctx, f.oldSelf, f.account))

	require.Equal(t, 1, f.fake.Count(models.EntityTransactions))
	require.Equal(t, 2, f.fake.Count(models.EntitySplits))

	done, err := svc.Complete(ctx)
	require.NoError(t, err)
	require.True(t, done)
}

func TestRunUploadsPhotos(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	friend, err := f.store.GetPerson(ctx, f.friend)
	require.NoError(t, err)
	friend.PhotoPath = "/photos/frida.jpg"
	friend.Touch()
	require.NoError(t, f.store.UpsertPerson(ctx, friend))

	assets := func(path string) ([]byte, error) {
		require.Equal(t, "/photos/frida.jpg", path)
		return []byte("jpeg bytes"), nil
	}

	svc := New(f.store, f.fake, assets)
	require.NoError(t, svc.Run(ctx, f.oldSelf, f.account))

	wantName := f.friend.String() + ".jpg"
	require.Contains(t, f.fake.Assets, wantName)

	got, err := f.store.GetPerson(ctx, f.friend)
	require.NoError(t, err)
	require.Equal(t, "/assets/"+wantName, got.PhotoURL)
}

func TestAssetUploadFailureIsRetriedOnResume(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	friend, err := f.store.GetPerson(ctx, f.friend)
	require.NoError(t, err)
	friend.PhotoPath = "/photos/frida.jpg"
	friend.Touch()
	require.NoError(t, f.store.UpsertPerson(ctx, friend))

	injected := &remote.Error{Status: http.StatusServiceUnavailable, Message: "down"}
	f.fake.FailPush[models.EntityPersons] = injected

	assets := func(path string) ([]byte, error) { return []byte("jpeg bytes"), nil }
	svc := New(f.store, f.fake, assets)

	err = svc.uploadAssets(ctx, f.oldSelf)
	require.Error(t, err)
	require.ErrorIs(t, err, injected)

	// The URL is recorded locally only once the remote has it, so the
	// resumed step re-attempts this person instead of skipping it.
	got, err := f.store.GetPerson(ctx, f.friend)
	require.NoError(t, err)
	require.Empty(t, got.PhotoURL)

	delete(f.fake.FailPush, models.EntityPersons)
	require.NoError(t, svc.uploadAssets(ctx, f.oldSelf))

	got, err = f.store.GetPerson(ctx, f.friend)
	require.NoError(t, err)
	require.Equal(t, "/assets/"+f.friend.String()+".jpg", got.PhotoURL)
}

func TestStatusListsSteps(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	svc := New(f.store, f.fake, nil)
	steps, err := svc.Status(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	for _, step := range steps {
		require.False(t, step.Done, "step %s should start incomplete", step.Name)
	}

	require.NoError(t, svc.Run(ctx, f.oldSelf, f.account))

	steps, err = svc.Status(ctx)
	require.NoError(t, err)
	for _, step := range steps {
		require.True(t, step.Done, "step %s should be recorded", step.Name)
	}
}

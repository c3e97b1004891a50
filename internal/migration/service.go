// Package migration moves a local-only dataset onto a cloud account: it
// rewrites the provisional self identifier to the account identifier, then
// uploads every entity through the same idempotent upserts the sync engine
// uses. Each step is recorded in the store, so a crashed or interrupted run
// resumes where it stopped instead of starting over.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
	"github.com/tallyapp/tally/internal/remote"
	"github.com/tallyapp/tally/internal/storage"
)

const (
	stepCreateSelf   = "create_self"
	stepRemap        = "remap_identity"
	stepUploadAssets = "upload_assets"
	stepComplete     = "complete"
)

func uploadStep(entity models.EntityType) string {
	return "upload_" + string(entity)
}

// AssetReader loads a person photo from local storage. Defaults to
// os.ReadFile; injectable for tests.
type AssetReader func(path string) ([]byte, error)

// Service runs the one-time identity migration.
type Service struct {
	store  storage.Store
	remote remote.Client
	assets AssetReader
	log    *slog.Logger
}

// New creates a migration Service. assets may be nil to read photos from
// the local filesystem.
func New(store storage.Store, client remote.Client, assets AssetReader) *Service {
	if assets == nil {
		assets = os.ReadFile
	}
	return &Service{
		store:  store,
		remote: client,
		assets: assets,
		log:    slog.Default().With("component", "migration"),
	}
}

// Complete reports whether the migration already ran to the end.
func (s *Service) Complete(ctx context.Context) (bool, error) {
	return s.store.MigrationStepDone(ctx, stepComplete)
}

// Step is one unit of migration work.
type Step struct {
	Name string
	Done bool
	run  func(ctx context.Context) error
}

// Run migrates the dataset from the provisional local identifier to the
// account identifier. Every step is idempotent and recorded on success;
// calling Run again after a failure re-executes only the unfinished steps.
// On error the dataset is left in a consistent intermediate state and Run
// reports which step halted it.
func (s *Service) Run(ctx context.Context, oldSelfID, accountID uuid.UUID) error {
	done, err := s.Complete(ctx)
	if err != nil {
		return fmt.Errorf("failed to check migration state: %w", err)
	}
	if done {
		s.log.Info("migration already complete, nothing to do")
		return nil
	}

	steps := s.plan(oldSelfID, accountID)
	for i, step := range steps {
		finished, err := s.store.MigrationStepDone(ctx, step.Name)
		if err != nil {
			return fmt.Errorf("failed to check step %q: %w", step.Name, err)
		}
		if finished {
			s.log.Debug("skipping completed step", "step", step.Name)
			continue
		}

		s.log.Info("running migration step", "step", step.Name, "progress", fmt.Sprintf("%d/%d", i+1, len(steps)))
		if err := step.run(ctx); err != nil {
			return fmt.Errorf("migration halted at step %q: %w", step.Name, err)
		}
		if err := s.store.MarkMigrationStep(ctx, step.Name); err != nil {
			return fmt.Errorf("failed to record step %q: %w", step.Name, err)
		}
	}

	if err := s.store.MarkMigrationStep(ctx, stepComplete); err != nil {
		return fmt.Errorf("failed to record migration completion: %w", err)
	}
	s.log.Info("migration complete", "account_id", accountID)
	return nil
}

// Status lists every planned step with its completion marker, for the CLI.
func (s *Service) Status(ctx context.Context) ([]Step, error) {
	steps := s.plan(uuid.Nil, uuid.Nil)
	steps = append(steps, Step{Name: stepComplete})
	for i := range steps {
		done, err := s.store.MigrationStepDone(ctx, steps[i].Name)
		if err != nil {
			return nil, err
		}
		steps[i].Done = done
		steps[i].run = nil
	}
	return steps, nil
}

func (s *Service) plan(oldSelfID, accountID uuid.UUID) []Step {
	steps := []Step{
		{Name: stepCreateSelf, run: func(ctx context.Context) error {
			return s.createSelf(ctx, oldSelfID, accountID)
		}},
		{Name: stepRemap, run: func(ctx context.Context) error {
			return s.store.RemapIdentity(ctx, oldSelfID, accountID)
		}},
	}
	for _, entity := range models.SyncOrder {
		steps = append(steps, Step{
			Name: uploadStep(entity),
			run:  s.uploader(entity, accountID),
		})
	}
	steps = append(steps, Step{Name: stepUploadAssets, run: func(ctx context.Context) error {
		return s.uploadAssets(ctx, accountID)
	}})
	return steps
}

// createSelf writes the new self person row under the account identifier,
// carrying over the old self's profile. It runs before the remap so person
// references never point at a missing row.
func (s *Service) createSelf(ctx context.Context, oldSelfID, accountID uuid.UUID) error {
	old, err := s.store.GetPerson(ctx, oldSelfID)
	if err != nil {
		return fmt.Errorf("failed to load old self person: %w", err)
	}

	self := &models.Person{Name: "Me"}
	if old != nil {
		self.Name = old.Name
		self.PhotoPath = old.PhotoPath
		self.PhotoURL = old.PhotoURL
	}
	self.ID = accountID
	self.OwnerID = accountID
	self.Touch()
	if err := s.store.UpsertPerson(ctx, self); err != nil {
		return fmt.Errorf("failed to create self person: %w", err)
	}
	return nil
}

// uploader returns the upload step for one entity type. The whole dataset
// is pushed (the changed-since-zero query returns every row, tombstones
// included), in dependency order so the remote never sees a child before
// its parent.
func (s *Service) uploader(entity models.EntityType, owner uuid.UUID) func(ctx context.Context) error {
	switch entity {
	case models.EntityPersons:
		return upload(s, owner, s.store.ChangedPersons, s.remote.UpsertPersons)
	case models.EntityGroups:
		return upload(s, owner, s.store.ChangedGroups, s.remote.UpsertGroups)
	case models.EntityGroupMembers:
		return upload(s, owner, s.store.ChangedGroupMembers, s.remote.UpsertGroupMembers)
	case models.EntityTransactions:
		return upload(s, owner, s.store.ChangedTransactions, s.remote.UpsertTransactions)
	case models.EntitySplits:
		return upload(s, owner, s.store.ChangedSplits, s.remote.UpsertSplits)
	case models.EntityPayers:
		return upload(s, owner, s.store.ChangedPayers, s.remote.UpsertPayers)
	case models.EntitySettlements:
		return upload(s, owner, s.store.ChangedSettlements, s.remote.UpsertSettlements)
	case models.EntityReminders:
		return upload(s, owner, s.store.ChangedReminders, s.remote.UpsertReminders)
	default:
		return func(context.Context) error {
			return fmt.Errorf("unknown entity type %q", entity)
		}
	}
}

func upload[T any](
	s *Service,
	owner uuid.UUID,
	changed func(ctx context.Context, owner uuid.UUID, since time.Time) ([]T, error),
	upsert func(ctx context.Context, rows []T) error,
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		rows, err := changed(ctx, owner, time.Time{})
		if err != nil {
			return fmt.Errorf("failed to load rows: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := upsert(ctx, rows); err != nil {
			return fmt.Errorf("failed to upload %d rows: %w", len(rows), err)
		}
		s.log.Debug("uploaded batch", "rows", len(rows))
		return nil
	}
}

// uploadAssets pushes local person photos to the remote asset store and
// records the assigned URLs. Filenames are derived from the person ID, so
// re-running overwrites rather than duplicates.
func (s *Service) uploadAssets(ctx context.Context, owner uuid.UUID) error {
	persons, err := s.store.ListPersons(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to list persons: %w", err)
	}

	for _, p := range persons {
		if p.PhotoPath == "" || p.PhotoURL != "" {
			continue
		}
		data, err := s.assets(p.PhotoPath)
		if err != nil {
			if os.IsNotExist(err) {
				s.log.Warn("photo file missing, skipping", "person_id", p.ID, "path", p.PhotoPath)
				continue
			}
			return fmt.Errorf("failed to read photo for %s: %w", p.ID, err)
		}

		name := p.ID.String() + filepath.Ext(p.PhotoPath)
		url, err := s.remote.UploadAsset(ctx, name, data)
		if err != nil {
			return fmt.Errorf("failed to upload photo for %s: %w", p.ID, err)
		}

		p.PhotoURL = url
		p.Touch()
		// Remote first: if the run dies between the two writes, the local
		// PhotoURL is still empty and a resumed run re-attempts this person.
		if err := s.remote.UpsertPersons(ctx, []*models.Person{p}); err != nil {
			return fmt.Errorf("failed to push photo url for %s: %w", p.ID, err)
		}
		if err := s.store.UpsertPerson(ctx, p); err != nil {
			return fmt.Errorf("failed to save photo url for %s: %w", p.ID, err)
		}
	}
	return nil
}

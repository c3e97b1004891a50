package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tally/internal/models"
)

const groupColumns = "id, owner_id, name, updated_at, deleted_at"

// UpsertGroup inserts the group or updates the existing row with the same ID.
func (s *Store) UpsertGroup(ctx context.Context, g *models.Group) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (id, owner_id, name, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   owner_id = excluded.owner_id,
		   name = excluded.name,
		   updated_at = excluded.updated_at,
		   deleted_at = excluded.deleted_at`,
		g.ID, g.OwnerID, g.Name, toNanos(g.UpdatedAt), nullNanos(g.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID. Returns (nil, nil) when absent.
func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	g := &models.Group{}
	var updated int64
	var deleted sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE id = ?", id,
	).Scan(&g.ID, &g.OwnerID, &g.Name, &updated, &deleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	g.UpdatedAt = fromNanos(updated)
	g.DeletedAt = nanosPtr(deleted)
	return g, nil
}

// DeleteGroup removes the row physically.
func (s *Store) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

// ChangedGroups returns rows changed after the watermark, tombstones included.
func (s *Store) ChangedGroups(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE owner_id = ? AND updated_at > ? ORDER BY updated_at",
		owner, toNanos(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query changed groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		g := &models.Group{}
		var updated int64
		var deleted sql.NullInt64
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Name, &updated, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		g.UpdatedAt = fromNanos(updated)
		g.DeletedAt = nanosPtr(deleted)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

const groupMemberColumns = "id, owner_id, group_id, person_id, updated_at, deleted_at"

// UpsertGroupMember inserts the membership or updates the row with the same ID.
func (s *Store) UpsertGroupMember(ctx context.Context, m *models.GroupMember) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_members (id, owner_id, group_id, person_id, updated_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   owner_id = excluded.owner_id,
		   group_id = excluded.group_id,
		   person_id = excluded.person_id,
		   updated_at = excluded.updated_at,
		   deleted_at = excluded.deleted_at`,
		m.ID, m.OwnerID, m.GroupID, m.PersonID, toNanos(m.UpdatedAt), nullNanos(m.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert group member: %w", err)
	}
	return nil
}

// GetGroupMember retrieves a membership by ID. Returns (nil, nil) when absent.
func (s *Store) GetGroupMember(ctx context.Context, id uuid.UUID) (*models.GroupMember, error) {
	m := &models.GroupMember{}
	var updated int64
	var deleted sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT "+groupMemberColumns+" FROM group_members WHERE id = ?", id,
	).Scan(&m.ID, &m.OwnerID, &m.GroupID, &m.PersonID, &updated, &deleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group member: %w", err)
	}
	m.UpdatedAt = fromNanos(updated)
	m.DeletedAt = nanosPtr(deleted)
	return m, nil
}

// DeleteGroupMember removes the row physically.
func (s *Store) DeleteGroupMember(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM group_members WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete group member: %w", err)
	}
	return nil
}

// ChangedGroupMembers returns rows changed after the watermark, tombstones included.
func (s *Store) ChangedGroupMembers(ctx context.Context, owner uuid.UUID, since time.Time) ([]*models.GroupMember, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+groupMemberColumns+" FROM group_members WHERE owner_id = ? AND updated_at > ? ORDER BY updated_at",
		owner, toNanos(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query changed group members: %w", err)
	}
	defer rows.Close()

	var members []*models.GroupMember
	for rows.Next() {
		m := &models.GroupMember{}
		var updated int64
		var deleted sql.NullInt64
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.GroupID, &m.PersonID, &updated, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		m.UpdatedAt = fromNanos(updated)
		m.DeletedAt = nanosPtr(deleted)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}
	return members, nil
}

// Package server is the cloud side of the sync protocol: watermark-bounded
// pulls, idempotent batch upserts, asset storage, and the balance
// verification endpoint. Every route is scoped to the authenticated account.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tallyapp/tally/internal/auth"
	"github.com/tallyapp/tally/internal/ledger"
	"github.com/tallyapp/tally/internal/models"
	"github.com/tallyapp/tally/internal/storage"
)

const maxBodyBytes = 10 << 20

// Server handles the HTTP surface of the remote store.
type Server struct {
	store     storage.Store
	jwt       *auth.Manager
	assetsDir string
}

// New creates a Server backed by the given store.
func New(store storage.Store, jwt *auth.Manager, assetsDir string) *Server {
	return &Server{store: store, jwt: jwt, assetsDir: assetsDir}
}

// Handler builds the full route table with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("GET /sync/{entity}", s.requireAuth(s.handlePull))
	mux.Handle("POST /sync/{entity}", s.requireAuth(s.handlePush))
	mux.Handle("POST /balance", s.requireAuth(s.handleBalance))
	mux.Handle("POST /assets", s.requireAuth(s.handleAssetUpload))
	mux.HandleFunc("GET /assets/{owner}/{name}", s.handleAssetGet)

	return loggingMiddleware(corsMiddleware(mux))
}

// handlePull returns every row of the entity type with updated_at strictly
// after the updated_at query parameter, tombstones included. An absent
// parameter means "everything".
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	entity := models.EntityType(r.PathValue("entity"))
	if !models.KnownEntity(entity) {
		http.Error(w, fmt.Sprintf("unknown entity type %q", entity), http.StatusNotFound)
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("updated_at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "invalid updated_at", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	switch entity {
	case models.EntityPersons:
		servePull(w, r, owner, since, s.store.ChangedPersons)
	case models.EntityGroups:
		servePull(w, r, owner, since, s.store.ChangedGroups)
	case models.EntityGroupMembers:
		servePull(w, r, owner, since, s.store.ChangedGroupMembers)
	case models.EntityTransactions:
		servePull(w, r, owner, since, s.store.ChangedTransactions)
	case models.EntitySplits:
		servePull(w, r, owner, since, s.store.ChangedSplits)
	case models.EntityPayers:
		servePull(w, r, owner, since, s.store.ChangedPayers)
	case models.EntitySettlements:
		servePull(w, r, owner, since, s.store.ChangedSettlements)
	case models.EntityReminders:
		servePull(w, r, owner, since, s.store.ChangedReminders)
	}
}

// handlePush applies a batch of rows with insert-or-update semantics keyed
// on ID. Rows claiming a different owner are rejected wholesale.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	entity := models.EntityType(r.PathValue("entity"))
	if !models.KnownEntity(entity) {
		http.Error(w, fmt.Sprintf("unknown entity type %q", entity), http.StatusNotFound)
		return
	}

	switch entity {
	case models.EntityPersons:
		servePush(w, r, owner, s.store.UpsertPerson)
	case models.EntityGroups:
		servePush(w, r, owner, s.store.UpsertGroup)
	case models.EntityGroupMembers:
		servePush(w, r, owner, s.store.UpsertGroupMember)
	case models.EntityTransactions:
		servePush(w, r, owner, s.store.UpsertTransaction)
	case models.EntitySplits:
		servePush(w, r, owner, s.store.UpsertSplit)
	case models.EntityPayers:
		servePush(w, r, owner, s.store.UpsertPayer)
	case models.EntitySettlements:
		servePush(w, r, owner, s.store.UpsertSettlement)
	case models.EntityReminders:
		servePush(w, r, owner, s.store.UpsertReminder)
	}
}

// record is satisfied by every entity through the embedded sync metadata.
type record interface {
	Meta() models.SyncMeta
}

func servePull[T any](
	w http.ResponseWriter,
	r *http.Request,
	owner uuid.UUID,
	since time.Time,
	fetch func(ctx context.Context, owner uuid.UUID, since time.Time) ([]T, error),
) {
	rows, err := fetch(r.Context(), owner, since)
	if err != nil {
		slog.Error("pull query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []T{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func servePush[T record](
	w http.ResponseWriter,
	r *http.Request,
	owner uuid.UUID,
	upsert func(ctx context.Context, row T) error,
) {
	var rows []T
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&rows); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	for _, row := range rows {
		// A JSON null element decodes to a nil pointer; reject it before
		// touching the metadata.
		var zero T
		if any(row) == any(zero) {
			http.Error(w, "row is null", http.StatusBadRequest)
			return
		}
		meta := row.Meta()
		if meta.ID == uuid.Nil {
			http.Error(w, "row is missing an id", http.StatusBadRequest)
			return
		}
		if meta.OwnerID != owner {
			http.Error(w, "row owner does not match token", http.StatusForbidden)
			return
		}
	}
	for _, row := range rows {
		if err := upsert(r.Context(), row); err != nil {
			slog.Error("push upsert failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"upserted": len(rows)})
}

// handleBalance runs the server's own netting over the synced data as a
// cross-check against the client engine.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())

	var req struct {
		PersonID string `json:"person_id"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	personID, err := uuid.Parse(req.PersonID)
	if err != nil {
		http.Error(w, "invalid person_id", http.StatusBadRequest)
		return
	}

	person, err := s.store.GetPerson(r.Context(), personID)
	if err != nil {
		slog.Error("person lookup failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if person == nil || person.OwnerID != owner || person.Deleted() {
		http.Error(w, "person not found", http.StatusNotFound)
		return
	}

	// The self person row carries the account identifier as its ID.
	report, err := ledger.BalanceBetween(r.Context(), s.store, owner, owner, personID)
	if err != nil {
		slog.Error("balance computation failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleAssetUpload stores the raw body under a per-account directory and
// returns the URL. The name is deterministic, so re-uploading the same
// filename overwrites rather than accumulates.
func (s *Server) handleAssetUpload(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())

	filename := filepath.Base(r.URL.Query().Get("filename"))
	if filename == "" || filename == "." || filename == "/" {
		http.Error(w, "missing filename", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	dir := filepath.Join(s.assetsDir, owner.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("failed to create asset dir", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0o644); err != nil {
		slog.Error("failed to write asset", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"url": fmt.Sprintf("/assets/%s/%s", owner, filename),
	})
}

func (s *Server) handleAssetGet(w http.ResponseWriter, r *http.Request) {
	owner := filepath.Base(r.PathValue("owner"))
	name := filepath.Base(r.PathValue("name"))
	http.ServeFile(w, r, filepath.Join(s.assetsDir, owner, name))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

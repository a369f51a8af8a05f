package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vbonduro/viatico/internal/domain"
)

// DraftStore persists request drafts as a JSON document per draft.
type DraftStore struct {
	db *sql.DB
}

func NewDraftStore(db *sql.DB) *DraftStore {
	return &DraftStore{db: db}
}

func (s *DraftStore) Get(ctx context.Context, id string) (*domain.Draft, error) {
	draft := &domain.Draft{}
	var state string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, state, updated_at FROM drafts WHERE id = ?
	`, id).Scan(&draft.ID, &state, &draft.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	if err := json.Unmarshal([]byte(state), &draft.State); err != nil {
		return nil, fmt.Errorf("failed to decode draft %s: %w", id, err)
	}
	return draft, nil
}

// Save inserts the draft or replaces its state.
func (s *DraftStore) Save(ctx context.Context, id string, state domain.RequestState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (id, state, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, id, string(data))
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (s *DraftStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

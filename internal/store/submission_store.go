package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vbonduro/viatico/internal/domain"
)

type SubmissionStore struct {
	db *sql.DB
}

func NewSubmissionStore(db *sql.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func (s *SubmissionStore) Create(ctx context.Context, sub *domain.Submission) (*domain.Submission, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (draft_id, recipient, subject, status, error, archive_key)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sub.DraftID, sub.Recipient, sub.Subject, string(sub.Status), sub.Error, sub.ArchiveKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *SubmissionStore) GetByID(ctx context.Context, id int64) (*domain.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, `
		SELECT id, draft_id, recipient, subject, status, error, archive_key, created_at
		FROM submissions WHERE id = ?
	`, id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

// List returns all submissions, newest first.
func (s *SubmissionStore) List(ctx context.Context) ([]*domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, draft_id, recipient, subject, status, error, archive_key, created_at
		FROM submissions ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return subs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*domain.Submission, error) {
	sub := &domain.Submission{}
	var status string
	if err := row.Scan(&sub.ID, &sub.DraftID, &sub.Recipient, &sub.Subject,
		&status, &sub.Error, &sub.ArchiveKey, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.Status = domain.SubmissionStatus(status)
	return sub, nil
}

package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/viatico/internal/archive"
	"github.com/vbonduro/viatico/internal/catalog"
	"github.com/vbonduro/viatico/internal/domain"
	"github.com/vbonduro/viatico/internal/export"
	"github.com/vbonduro/viatico/internal/memo"
	"github.com/vbonduro/viatico/internal/metrics"
	"github.com/vbonduro/viatico/internal/notify"
	"github.com/vbonduro/viatico/internal/request"
)

// draftRepository is the subset of store.DraftStore that RequestService requires.
type draftRepository interface {
	Get(ctx context.Context, id string) (*domain.Draft, error)
	Save(ctx context.Context, id string, state domain.RequestState) error
	Delete(ctx context.Context, id string) error
}

// submissionRepository is the subset of store.SubmissionStore that RequestService requires.
type submissionRepository interface {
	Create(ctx context.Context, sub *domain.Submission) (*domain.Submission, error)
	GetByID(ctx context.Context, id int64) (*domain.Submission, error)
	List(ctx context.Context) ([]*domain.Submission, error)
}

// MailSettings addresses the request email.
type MailSettings struct {
	To      string
	Subject string
}

type RequestService struct {
	// mu serialises load, mutate and save of drafts.
	mu sync.Mutex

	cat         catalog.Catalog
	drafts      draftRepository
	submissions submissionRepository
	mailer      notify.Mailer
	memo        memo.Writer
	archive     archive.Archive
	metrics     *metrics.Metrics
	mail        MailSettings
	logger      *slog.Logger
}

func NewRequestService(
	cat catalog.Catalog,
	drafts draftRepository,
	submissions submissionRepository,
	mailer notify.Mailer,
	memoWriter memo.Writer,
	arch archive.Archive,
	m *metrics.Metrics,
	mail MailSettings,
	logger *slog.Logger,
) *RequestService {
	return &RequestService{
		cat:         cat,
		drafts:      drafts,
		submissions: submissions,
		mailer:      mailer,
		memo:        memoWriter,
		archive:     arch,
		metrics:     m,
		mail:        mail,
		logger:      logger,
	}
}

func (s *RequestService) Catalog() catalog.Catalog {
	return s.cat
}

// Draft returns the draft with the given id. A new draft is started when id
// is empty or malformed, when no draft is stored under it, or when the stored
// state no longer matches the catalog. Callers must use the returned ID.
func (s *RequestService) Draft(ctx context.Context, id string) (*domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, id, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Draft{ID: id, State: r.State(), UpdatedAt: time.Now()}, nil
}

func (s *RequestService) AddToCrew(ctx context.Context, draftID string, personID int64) error {
	return s.apply(ctx, draftID, "add_to_crew", func(r *request.Request) error {
		return r.AddToCrew(personID)
	})
}

func (s *RequestService) RemoveFromCrew(ctx context.Context, draftID string, personID int64) error {
	return s.apply(ctx, draftID, "remove_from_crew", func(r *request.Request) error {
		return r.RemoveFromCrew(personID)
	})
}

func (s *RequestService) SetRoles(ctx context.Context, draftID string, personID int64, roles []string) error {
	return s.apply(ctx, draftID, "set_roles", func(r *request.Request) error {
		return r.SetRoles(personID, roles)
	})
}

// SetZone returns an error wrapping domain.ErrUnknownZone for anything but
// the three known zones; the draft is left untouched in that case.
func (s *RequestService) SetZone(ctx context.Context, draftID, zone string) error {
	z, err := domain.ParseZone(zone)
	if err != nil {
		return err
	}
	return s.apply(ctx, draftID, "set_zone", func(r *request.Request) error {
		return r.SetZone(z)
	})
}

func (s *RequestService) AddRow(ctx context.Context, draftID string) error {
	return s.apply(ctx, draftID, "add_row", func(r *request.Request) error {
		r.AddRow()
		return nil
	})
}

func (s *RequestService) RemoveRow(ctx context.Context, draftID, rowID string) error {
	return s.apply(ctx, draftID, "remove_row", func(r *request.Request) error {
		r.RemoveRow(rowID)
		return nil
	})
}

func (s *RequestService) SetRowType(ctx context.Context, draftID, rowID, expenseType string) error {
	return s.apply(ctx, draftID, "set_row_type", func(r *request.Request) error {
		r.SetRowType(rowID, expenseType)
		return nil
	})
}

// SetValue stores the digits of raw as the amount of one cell.
func (s *RequestService) SetValue(ctx context.Context, draftID, rowID string, personID int64, raw string) error {
	amount := request.SanitizeAmount(raw)
	return s.apply(ctx, draftID, "set_value", func(r *request.Request) error {
		r.SetValue(rowID, personID, amount)
		return nil
	})
}

func (s *RequestService) RepeatFirstValue(ctx context.Context, draftID, rowID string) error {
	return s.apply(ctx, draftID, "repeat_first_value", func(r *request.Request) error {
		r.RepeatFirstValue(rowID)
		return nil
	})
}

func (s *RequestService) ResetRow(ctx context.Context, draftID, rowID string) error {
	return s.apply(ctx, draftID, "reset_row", func(r *request.Request) error {
		r.ResetRow(rowID)
		return nil
	})
}

// Reset discards the draft and starts over under the same id.
func (s *RequestService) Reset(ctx context.Context, draftID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.drafts.Delete(ctx, draftID); err != nil {
		return fmt.Errorf("failed to reset draft: %w", err)
	}
	if _, _, err := s.load(ctx, draftID); err != nil {
		return err
	}
	s.metrics.Mutation("reset")
	s.logger.Info("draft reset", "draft_id", draftID)
	return nil
}

func (s *RequestService) ExportJSON(ctx context.Context, draftID string) ([]byte, error) {
	st, err := s.snapshot(ctx, draftID)
	if err != nil {
		return nil, err
	}
	return export.JSON(st.Crew, st.Rows)
}

// Preview renders the email body Send would deliver.
func (s *RequestService) Preview(ctx context.Context, draftID string) (string, error) {
	st, err := s.snapshot(ctx, draftID)
	if err != nil {
		return "", err
	}
	return s.composeBody(ctx, st)
}

// Send emails the request once and records the attempt. A delivery failure
// returns both the failed submission and the error. When a delivered request
// cannot be recorded, the unrecorded submission (ID 0) is returned without an
// error so callers do not send it again.
func (s *RequestService) Send(ctx context.Context, draftID string) (*domain.Submission, error) {
	st, err := s.snapshot(ctx, draftID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("send request started", "draft_id", draftID, "crew", len(st.Crew), "rows", len(st.Rows))

	body, err := s.composeBody(ctx, st)
	if err != nil {
		return nil, err
	}

	key, err := s.archive.Save(ctx, draftID, "text/html; charset=utf-8", strings.NewReader(body))
	if err != nil {
		s.logger.Warn("failed to archive request body", "draft_id", draftID, "error", err)
		key = ""
	}

	sub := &domain.Submission{
		DraftID:    draftID,
		Recipient:  s.mail.To,
		Subject:    s.mail.Subject,
		Status:     domain.SubmissionSent,
		ArchiveKey: key,
	}

	sendErr := s.mailer.Send(ctx, notify.Message{To: s.mail.To, Subject: s.mail.Subject, HTMLBody: body})
	if sendErr != nil {
		sub.Status = domain.SubmissionFailed
		sub.Error = sendErr.Error()
		s.logger.Error("send request failed", "draft_id", draftID, "error", sendErr)
	} else {
		s.logger.Info("send request complete", "draft_id", draftID, "to", s.mail.To)
	}
	s.metrics.Submission(string(sub.Status))

	// Record the attempt even if the caller has gone away.
	recorded, err := s.submissions.Create(context.WithoutCancel(ctx), sub)
	if err != nil {
		s.logger.Error("failed to record submission", "draft_id", draftID, "status", sub.Status, "error", err)
		s.discardArchive(context.WithoutCancel(ctx), sub)
		if sendErr != nil {
			return nil, fmt.Errorf("failed to record submission: %w", err)
		}
		return sub, nil
	}
	if sendErr != nil {
		return recorded, fmt.Errorf("failed to send request: %w", sendErr)
	}
	return recorded, nil
}

func (s *RequestService) ListSubmissions(ctx context.Context) ([]*domain.Submission, error) {
	return s.submissions.List(ctx)
}

func (s *RequestService) GetSubmission(ctx context.Context, id int64) (*domain.Submission, error) {
	return s.submissions.GetByID(ctx, id)
}

// ArchivedBody opens the stored email body of a submission.
func (s *RequestService) ArchivedBody(ctx context.Context, sub *domain.Submission) (io.ReadCloser, string, error) {
	if sub.ArchiveKey == "" {
		return nil, "", fmt.Errorf("submission %d has no archived body", sub.ID)
	}
	return s.archive.Get(ctx, sub.ArchiveKey)
}

// discardArchive removes an archived body no submission refers to.
func (s *RequestService) discardArchive(ctx context.Context, sub *domain.Submission) {
	if sub.ArchiveKey == "" {
		return
	}
	if err := s.archive.Delete(ctx, sub.ArchiveKey); err != nil {
		s.logger.Warn("failed to delete orphaned archive", "key", sub.ArchiveKey, "error", err)
	}
	sub.ArchiveKey = ""
}

// apply runs one mutation against the stored draft and saves the result.
func (s *RequestService) apply(ctx context.Context, draftID, op string, fn func(*request.Request) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, id, err := s.load(ctx, draftID)
	if err != nil {
		return err
	}
	if err := fn(r); err != nil {
		return err
	}

	st := r.State()
	if err := s.drafts.Save(ctx, id, st); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	s.metrics.Mutation(op)
	s.logger.Debug("draft updated", "draft_id", id, "op", op, "state", st)
	return nil
}

func (s *RequestService) snapshot(ctx context.Context, draftID string) (domain.RequestState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, _, err := s.load(ctx, draftID)
	if err != nil {
		return domain.RequestState{}, err
	}
	return r.State(), nil
}

// load must be called with mu held.
func (s *RequestService) load(ctx context.Context, id string) (*request.Request, string, error) {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	} else {
		d, err := s.drafts.Get(ctx, id)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load draft: %w", err)
		}
		if d != nil {
			r, err := request.Restore(s.cat, d.State)
			if err == nil {
				return r, id, nil
			}
			s.logger.Warn("discarding stored draft", "draft_id", id, "error", err)
		}
	}

	r := request.New(s.cat)
	if err := s.drafts.Save(ctx, id, r.State()); err != nil {
		return nil, "", fmt.Errorf("failed to create draft: %w", err)
	}
	s.logger.Info("draft created", "draft_id", id)
	return r, id, nil
}

func (s *RequestService) composeBody(ctx context.Context, st domain.RequestState) (string, error) {
	note, err := s.memo.Write(ctx, memo.Summary{Zone: st.Zone, Crew: st.Crew, Rows: st.Rows})
	if err != nil {
		s.logger.Warn("failed to write cover note, sending without it", "error", err)
		note = ""
	}

	body, err := export.EmailBody(st.Crew, st.Rows, note)
	if err != nil {
		return "", fmt.Errorf("failed to render email body: %w", err)
	}
	return body, nil
}


package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/viatico/internal/catalog"
	"github.com/vbonduro/viatico/internal/db"
	"github.com/vbonduro/viatico/internal/domain"
	"github.com/vbonduro/viatico/internal/memo"
	"github.com/vbonduro/viatico/internal/metrics"
	"github.com/vbonduro/viatico/internal/notify"
	"github.com/vbonduro/viatico/internal/store"
)

// stubMailer records messages and fails with err when set.
type stubMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *stubMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

type stubMemo struct {
	note string
	err  error
}

func (s stubMemo) Write(context.Context, memo.Summary) (string, error) {
	return s.note, s.err
}

// stubArchive is a minimal in-memory archive.Archive for tests.
type stubArchive struct {
	saved   map[string][]byte
	saveErr error
}

func newStubArchive() *stubArchive {
	return &stubArchive{saved: make(map[string][]byte)}
}

func (a *stubArchive) Save(_ context.Context, prefix, _ string, r io.Reader) (string, error) {
	if a.saveErr != nil {
		return "", a.saveErr
	}
	data, _ := io.ReadAll(r)
	key := prefix + ".html"
	a.saved[key] = data
	return key, nil
}

func (a *stubArchive) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	data, ok := a.saved[key]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), "text/html; charset=utf-8", nil
}

func (a *stubArchive) Delete(_ context.Context, key string) error {
	delete(a.saved, key)
	return nil
}

type fixture struct {
	svc     *RequestService
	drafts  *store.DraftStore
	mailer  *stubMailer
	archive *stubArchive
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, w memo.Writer) *fixture {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	f := &fixture{
		drafts:  store.NewDraftStore(d),
		mailer:  &stubMailer{},
		archive: newStubArchive(),
		metrics: metrics.New(),
	}
	f.svc = NewRequestService(
		catalog.Default(),
		f.drafts,
		store.NewSubmissionStore(d),
		f.mailer,
		w,
		f.archive,
		f.metrics,
		MailSettings{To: "viaticos@example.com", Subject: "Solicitud de Viático"},
		slog.Default(),
	)
	return f
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func newDraftID(t *testing.T, svc *RequestService) string {
	t.Helper()
	d, err := svc.Draft(context.Background(), "")
	require.NoError(t, err)
	return d.ID
}

func currentState(t *testing.T, svc *RequestService, id string) domain.RequestState {
	t.Helper()
	d, err := svc.Draft(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, d.ID)
	return d.State
}

func TestDraftCreatesAndPersists(t *testing.T) {
	f := newFixture(t, memo.None{})
	ctx := context.Background()

	d, err := f.svc.Draft(ctx, "")
	require.NoError(t, err)
	_, err = uuid.Parse(d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Zone1, d.State.Zone)
	assert.Len(t, d.State.Pool, 3)
	assert.Empty(t, d.State.Crew)

	stored, err := f.drafts.Get(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	again, err := f.svc.Draft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, again.ID)
}

func TestDraftMalformedIDStartsNewDraft(t *testing.T) {
	f := newFixture(t, memo.None{})

	d, err := f.svc.Draft(context.Background(), "../../not-a-uuid")
	require.NoError(t, err)
	assert.NotEqual(t, "../../not-a-uuid", d.ID)
	_, err = uuid.Parse(d.ID)
	assert.NoError(t, err)
}

func TestDraftStaleStateStartsOver(t *testing.T) {
	f := newFixture(t, memo.None{})
	ctx := context.Background()
	id := uuid.NewString()

	stale := domain.RequestState{
		Zone: domain.Zone2,
		Pool: []domain.Person{{ID: 99, Name: "Nadie"}},
	}
	require.NoError(t, f.drafts.Save(ctx, id, stale))

	st := currentState(t, f.svc, id)
	assert.Equal(t, domain.Zone1, st.Zone)
	assert.Len(t, st.Pool, 3)
}

func TestAddToCrewSeedsRowsAndPersists(t *testing.T) {
	f := newFixture(t, memo.None{})
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	require.NoError(t, f.svc.AddToCrew(ctx, id, 1))

	st := currentState(t, f.svc, id)
	require.Len(t, st.Crew, 1)
	assert.Equal(t, "Juan Pérez", st.Crew[0].Name)
	assert.Equal(t, []string{"Jefe de Grupo"}, st.Crew[0].SelectedRoles)
	assert.Len(t, st.Pool, 2)
	require.Len(t, st.Rows, 4)
	assert.Equal(t, "Pensión", st.Rows[0].Type)
	assert.Equal(t, int64(0), st.Rows[0].Values[1])
	assert.Contains(t, scrape(t, f.metrics), `viatico_request_mutations_total{op="add_to_crew"} 1`)
}

func TestSetZoneAndRolesDriveDefaults(t *testing.T) {
	f := newFixture(t, memo.None{})
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	require.NoError(t, f.svc.AddToCrew(ctx, id, 1))
	require.NoError(t, f.svc.SetZone(ctx, id, "Zona 2"))

	st := currentState(t, f.svc, id)
	assert.Equal(t, domain.Zone2, st.Zone)
	assert.Equal(t, int64(42000), st.Rows[0].Values[1])
	assert.Equal(t, int64(0), st.Rows[1].Values[1])

	require.NoError(t, f.svc.SetRoles(ctx, id, 1, []string{"Chofer", "Piloto"}))

	st = currentState(t, f.svc, id)
	assert.Equal(t, []string{"Chofer"}, st.Crew[0].SelectedRoles)
	assert.Equal(t, int64(5000), st.Rows[1].Values[1])
}

func TestSetZoneUnknown(t *testing.T) {
	f := newFixture(t, memo.None{})
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	err := f.svc.SetZone(ctx, id, "Zona 9")
	assert.ErrorIs(t, err, domain.ErrUnknownZone)
	assert.Equal(t, domain.Zone1, currentState(t, f.svc, id).Zone)
}

func TestGridOperations(t *testing.T) {
	f := newFixture(t, memo.None{})
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	require.NoError(t, f.svc.AddToCrew(ctx, id, 1))
	require.NoError(t, f.svc.AddToCrew(ctx, id, 2))
	st := currentState(t, f.svc, id)
	rowID := st.Rows[2].ID

	require.NoError(t, f.svc.SetValue(ctx, id, rowID, 1, "$12.500"))
	assert.Equal(t, int64(12500), currentState(t, f.svc, id).Rows[2].Values[1])

	require.NoError(t, f.svc.RepeatFirstValue(ctx, id, rowID))
	assert.Equal(t, int64(12500), currentState(t, f.svc, id).Rows[2].Values[2])

	require.NoError(t, f.svc.SetRowType(ctx, id, rowID, "Almuerzo"))
	assert.Equal(t, "Almuerzo", currentState(t, f.svc, id).Rows[2].Type)

	require.NoError(t, f.svc.ResetRow(ctx, id, rowID))
	assert.Equal(t, map[int64]int64{1: 0, 2: 0}, currentState(t, f.svc, id).Rows[2].Values)

	require.NoError(t, f.svc.AddRow(ctx, id))
	st = currentState(t, f.svc, id)
	require.Len(t, st.Rows, 5)
	assert.Equal(t, "Almuerzo", st.Rows[4].Type)

	require.NoError(t, f.svc.RemoveRow(ctx, id, rowID))
	assert.Len(t, currentState(t, f.svc, id).Rows, 4)

	require.NoError(t, f.svc.RemoveFromCrew(ctx, id, 2))
	st = currentState(t, f.svc, id)
	assert.Len(t, st.Crew, 1)
	for _, row := range st.Rows {
		assert.NotContains(t, row.Values, int64(2))
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t, memo.None{})
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	require.NoError(t, f.svc.AddToCrew(ctx, id, 1))
	require.NoError(t, f.svc.SetZone(ctx, id, "Zona 3"))
	require.NoError(t, f.svc.Reset(ctx, id))

	st := currentState(t, f.svc, id)
	assert.Equal(t, domain.Zone1, st.Zone)
	assert.Empty(t, st.Crew)
	assert.Empty(t, st.Rows)
	assert.Len(t, st.Pool, 3)
}

func TestConcurrentMutationsAreSerialised(t *testing.T) {
	f := newFixture(t, memo.None{})
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.AddRow(ctx, id))
		}()
	}
	wg.Wait()

	assert.Len(t, currentState(t, f.svc, id).Rows, n)
}

func TestExportJSON(t *testing.T) {
	f := newFixture(t, memo.None{})
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	require.NoError(t, f.svc.AddToCrew(ctx, id, 1))
	require.NoError(t, f.svc.SetRoles(ctx, id, 1, []string{"Chofer"}))
	require.NoError(t, f.svc.SetZone(ctx, id, "Zona 2"))

	data, err := f.svc.ExportJSON(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type": "Peaje"`)
	assert.Contains(t, string(data), `"role": "Chofer"`)
	assert.Contains(t, string(data), `"value": 5000`)
}

func TestPreviewIncludesMemo(t *testing.T) {
	f := newFixture(t, stubMemo{note: "Viaje a **terreno**."})
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	body, err := f.svc.Preview(ctx, id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body, "<div><h3>Solicitud de Viático</h3>"))
	assert.Contains(t, body, "<strong>terreno</strong>")
	assert.Empty(t, f.mailer.sent, "preview does not send")
}

func TestSend(t *testing.T) {
	f := newFixture(t, memo.Static{})
	ctx := context.Background()
	id := newDraftID(t, f.svc)
	require.NoError(t, f.svc.AddToCrew(ctx, id, 1))

	sub, err := f.svc.Send(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sub)

	assert.NotZero(t, sub.ID)
	assert.Equal(t, domain.SubmissionSent, sub.Status)
	assert.Equal(t, "viaticos@example.com", sub.Recipient)
	assert.NotEmpty(t, sub.ArchiveKey)

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, "viaticos@example.com", msg.To)
	assert.Equal(t, "Solicitud de Viático", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Juan Pérez (Jefe de Grupo)")
	assert.Contains(t, msg.HTMLBody, "Zona 1")
	assert.Equal(t, msg.HTMLBody, string(f.archive.saved[sub.ArchiveKey]))

	rc, contentType, err := f.svc.ArchivedBody(ctx, sub)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "text/html; charset=utf-8", contentType)

	subs, err := f.svc.ListSubmissions(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	assert.Contains(t, scrape(t, f.metrics), `viatico_submissions_total{status="sent"} 1`)
}

func TestSendFailureIsRecorded(t *testing.T) {
	f := newFixture(t, memo.None{})
	f.mailer.err = errors.New("status 503")
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	sub, err := f.svc.Send(ctx, id)
	require.Error(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, domain.SubmissionFailed, sub.Status)
	assert.Equal(t, "status 503", sub.Error)
	assert.Len(t, f.mailer.sent, 1, "no retry")

	got, err := f.svc.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionFailed, got.Status)
}

func TestSendSurvivesMemoAndArchiveFailures(t *testing.T) {
	f := newFixture(t, stubMemo{err: errors.New("model unavailable")})
	f.archive.saveErr = errors.New("disk full")
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	sub, err := f.svc.Send(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionSent, sub.Status)
	assert.Empty(t, sub.ArchiveKey)
	require.Len(t, f.mailer.sent, 1)
	assert.True(t, strings.HasPrefix(f.mailer.sent[0].HTMLBody, "<div><h3>Solicitud de Viático</h3><table"))

	_, _, err = f.svc.ArchivedBody(ctx, sub)
	assert.Error(t, err)
}

// failingSubmissions cannot record anything.
type failingSubmissions struct{}

func (failingSubmissions) Create(context.Context, *domain.Submission) (*domain.Submission, error) {
	return nil, errors.New("disk full")
}

func (failingSubmissions) GetByID(context.Context, int64) (*domain.Submission, error) {
	return nil, nil
}

func (failingSubmissions) List(context.Context) ([]*domain.Submission, error) {
	return nil, nil
}

func withFailingSubmissions(f *fixture) {
	f.svc = NewRequestService(
		catalog.Default(),
		f.drafts,
		failingSubmissions{},
		f.mailer,
		memo.None{},
		f.archive,
		f.metrics,
		MailSettings{To: "viaticos@example.com", Subject: "Solicitud de Viático"},
		slog.Default(),
	)
}

func TestSendDeliveredButNotRecorded(t *testing.T) {
	f := newFixture(t, memo.None{})
	withFailingSubmissions(f)
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	sub, err := f.svc.Send(ctx, id)
	require.NoError(t, err, "a delivered request must not be reported as failed")
	require.NotNil(t, sub)
	assert.Equal(t, domain.SubmissionSent, sub.Status)
	assert.Zero(t, sub.ID)
	assert.Empty(t, sub.ArchiveKey)

	assert.Len(t, f.mailer.sent, 1)
	assert.Empty(t, f.archive.saved, "orphaned archive is removed")
}

func TestSendFailedAndNotRecorded(t *testing.T) {
	f := newFixture(t, memo.None{})
	withFailingSubmissions(f)
	f.mailer.err = errors.New("status 503")
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	sub, err := f.svc.Send(ctx, id)
	assert.Error(t, err)
	assert.Nil(t, sub)
	assert.Empty(t, f.archive.saved)
}

func TestResetReplacesStoredDraft(t *testing.T) {
	f := newFixture(t, memo.None{})
	ctx := context.Background()
	id := newDraftID(t, f.svc)

	require.NoError(t, f.svc.AddToCrew(ctx, id, 1))
	require.NoError(t, f.svc.Reset(ctx, id))

	stored, err := f.drafts.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored, "reset leaves a fresh draft under the same id")
	assert.Empty(t, stored.State.Crew)
	assert.Len(t, stored.State.Pool, 3)
}

package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/vbonduro/viatico/internal/domain"
)

const draftCookie = "viatico_draft"

var notices = map[string]string{
	"sent":        "Solicitud enviada.",
	"send-failed": "No se pudo enviar la solicitud. Inténtelo nuevamente.",
}

type roleOption struct {
	Name    string
	Checked bool
}

type crewView struct {
	domain.CrewMember
	Roles []roleOption
}

type cellView struct {
	PersonID int64
	Amount   int64
}

type rowView struct {
	ID    string
	Type  string
	Cells []cellView
	Total int64
}

type requestPage struct {
	Draft        *domain.Draft
	Zones        []domain.Zone
	ExpenseTypes []string
	Crew         []crewView
	Rows         []rowView
	ColumnTotals []int64
	GrandTotal   int64
	Notice       string
	NoticeError  bool
	ActiveNav    string
}

func (s *Server) handleRequestPage(w http.ResponseWriter, r *http.Request) {
	draft, err := s.currentDraft(w, r)
	if err != nil {
		http.Error(w, "failed to load request", http.StatusInternalServerError)
		s.logger.Error("load draft error", "error", err)
		return
	}

	page := s.buildRequestPage(draft)
	notice := r.URL.Query().Get("notice")
	page.Notice = notices[notice]
	page.NoticeError = notice == "send-failed"

	if err := s.renderPage(w, page, "base.html", "pages/request.html"); err != nil {
		s.logger.Error("render page error", "error", err)
	}
}

func (s *Server) buildRequestPage(draft *domain.Draft) *requestPage {
	cat := s.service.Catalog()
	st := draft.State
	page := &requestPage{
		Draft:        draft,
		Zones:        domain.Zones,
		ExpenseTypes: cat.ExpenseTypes,
		ColumnTotals: make([]int64, len(st.Crew)),
		ActiveNav:    "request",
	}

	for _, m := range st.Crew {
		cv := crewView{CrewMember: m}
		for _, role := range cat.Roles {
			checked := false
			for _, sel := range m.SelectedRoles {
				if sel == role {
					checked = true
					break
				}
			}
			cv.Roles = append(cv.Roles, roleOption{Name: role, Checked: checked})
		}
		page.Crew = append(page.Crew, cv)
	}

	for _, row := range st.Rows {
		rv := rowView{ID: row.ID, Type: row.Type}
		for i, m := range st.Crew {
			amount := row.Values[m.ID]
			rv.Cells = append(rv.Cells, cellView{PersonID: m.ID, Amount: amount})
			rv.Total += amount
			page.ColumnTotals[i] += amount
		}
		page.GrandTotal += rv.Total
		page.Rows = append(page.Rows, rv)
	}
	return page
}

func (s *Server) handleAddToCrew(w http.ResponseWriter, r *http.Request) {
	personID, err := strconv.ParseInt(r.FormValue("person_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid person id", http.StatusBadRequest)
		return
	}
	s.mutate(w, r, "add to crew", func(ctx context.Context, draftID string) error {
		return s.service.AddToCrew(ctx, draftID, personID)
	})
}

func (s *Server) handleRemoveFromCrew(w http.ResponseWriter, r *http.Request) {
	personID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid person id", http.StatusBadRequest)
		return
	}
	s.mutate(w, r, "remove from crew", func(ctx context.Context, draftID string) error {
		return s.service.RemoveFromCrew(ctx, draftID, personID)
	})
}

func (s *Server) handleSetRoles(w http.ResponseWriter, r *http.Request) {
	personID, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid person id", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	roles := r.PostForm["role"]
	s.mutate(w, r, "set roles", func(ctx context.Context, draftID string) error {
		return s.service.SetRoles(ctx, draftID, personID, roles)
	})
}

func (s *Server) handleSetZone(w http.ResponseWriter, r *http.Request) {
	zone := r.FormValue("zone")
	s.mutate(w, r, "set zone", func(ctx context.Context, draftID string) error {
		return s.service.SetZone(ctx, draftID, zone)
	})
}

func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "add row", s.service.AddRow)
}

func (s *Server) handleRemoveRow(w http.ResponseWriter, r *http.Request) {
	rowID := r.PathValue("id")
	s.mutate(w, r, "remove row", func(ctx context.Context, draftID string) error {
		return s.service.RemoveRow(ctx, draftID, rowID)
	})
}

func (s *Server) handleSetRowType(w http.ResponseWriter, r *http.Request) {
	rowID := r.PathValue("id")
	expenseType := r.FormValue("type")
	s.mutate(w, r, "set row type", func(ctx context.Context, draftID string) error {
		return s.service.SetRowType(ctx, draftID, rowID, expenseType)
	})
}

func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request) {
	rowID := r.PathValue("id")
	personID, err := strconv.ParseInt(r.PathValue("person"), 10, 64)
	if err != nil {
		http.Error(w, "invalid person id", http.StatusBadRequest)
		return
	}
	raw := r.FormValue("amount")
	s.mutate(w, r, "set value", func(ctx context.Context, draftID string) error {
		return s.service.SetValue(ctx, draftID, rowID, personID, raw)
	})
}

func (s *Server) handleRepeatFirstValue(w http.ResponseWriter, r *http.Request) {
	rowID := r.PathValue("id")
	s.mutate(w, r, "repeat first value", func(ctx context.Context, draftID string) error {
		return s.service.RepeatFirstValue(ctx, draftID, rowID)
	})
}

func (s *Server) handleResetRow(w http.ResponseWriter, r *http.Request) {
	rowID := r.PathValue("id")
	s.mutate(w, r, "reset row", func(ctx context.Context, draftID string) error {
		return s.service.ResetRow(ctx, draftID, rowID)
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "reset", s.service.Reset)
}

// mutate applies one edit to the caller's draft and redirects back to the form.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, draftID string) error) {
	draft, err := s.currentDraft(w, r)
	if err != nil {
		http.Error(w, "failed to load request", http.StatusInternalServerError)
		s.logger.Error("load draft error", "error", err)
		return
	}

	if err := fn(r.Context(), draft.ID); err != nil {
		if errors.Is(err, domain.ErrUnknownZone) {
			http.Error(w, "unknown zone", http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to "+op, http.StatusInternalServerError)
		s.logger.Error(op+" error", "draft_id", draft.ID, "error", err)
		return
	}

	http.Redirect(w, r, "/request", http.StatusSeeOther)
}

// currentDraft resolves the caller's draft from its cookie, issuing a new
// cookie when a new draft had to be started.
func (s *Server) currentDraft(w http.ResponseWriter, r *http.Request) (*domain.Draft, error) {
	var id string
	if c, err := r.Cookie(draftCookie); err == nil {
		id = c.Value
	}

	draft, err := s.service.Draft(r.Context(), id)
	if err != nil {
		return nil, err
	}

	if draft.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     draftCookie,
			Value:    draft.ID,
			Path:     "/",
			MaxAge:   30 * 24 * 60 * 60,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return draft, nil
}

// parseID extracts the {id} path variable and returns it as int64.
func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

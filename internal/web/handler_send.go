package web

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/vbonduro/viatico/internal/export"
)

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	draft, err := s.currentDraft(w, r)
	if err != nil {
		http.Error(w, "failed to load request", http.StatusInternalServerError)
		s.logger.Error("load draft error", "error", err)
		return
	}

	data, err := s.service.ExportJSON(r.Context(), draft.ID)
	if err != nil {
		http.Error(w, "failed to export request", http.StatusInternalServerError)
		s.logger.Error("export error", "draft_id", draft.ID, "error", err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write export error", "error", err)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	draft, err := s.currentDraft(w, r)
	if err != nil {
		http.Error(w, "failed to load request", http.StatusInternalServerError)
		s.logger.Error("load draft error", "error", err)
		return
	}

	body, err := s.service.Preview(r.Context(), draft.ID)
	if err != nil {
		http.Error(w, "failed to render preview", http.StatusInternalServerError)
		s.logger.Error("preview error", "draft_id", draft.ID, "error", err)
		return
	}

	// The body is produced by our own templates and a markdown renderer that
	// drops raw HTML.
	if err := s.renderPage(w,
		map[string]any{"Body": template.HTML(body), "ActiveNav": "request"},
		"base.html", "pages/preview.html",
	); err != nil {
		s.logger.Error("render page error", "error", err)
	}
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	draft, err := s.currentDraft(w, r)
	if err != nil {
		http.Error(w, "failed to load request", http.StatusInternalServerError)
		s.logger.Error("load draft error", "error", err)
		return
	}

	sub, err := s.service.Send(r.Context(), draft.ID)
	switch {
	case err != nil && sub == nil:
		http.Error(w, "failed to send request", http.StatusInternalServerError)
		s.logger.Error("send error", "draft_id", draft.ID, "error", err)
	case err != nil:
		http.Redirect(w, r, "/request?notice=send-failed", http.StatusSeeOther)
	default:
		http.Redirect(w, r, "/request?notice=sent", http.StatusSeeOther)
	}
}

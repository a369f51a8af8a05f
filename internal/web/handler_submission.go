package web

import (
	"io"
	"net/http"
)

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.service.ListSubmissions(r.Context())
	if err != nil {
		http.Error(w, "failed to list submissions", http.StatusInternalServerError)
		s.logger.Error("list submissions error", "error", err)
		return
	}

	if err := s.renderPage(w,
		map[string]any{"Submissions": subs, "ActiveNav": "submissions"},
		"base.html", "pages/submissions.html",
	); err != nil {
		s.logger.Error("render page error", "error", err)
	}
}

// handleGetSubmission serves the archived email body of one submission.
func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid submission id", http.StatusBadRequest)
		return
	}

	sub, err := s.service.GetSubmission(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to get submission", http.StatusInternalServerError)
		s.logger.Error("get submission error", "submission_id", id, "error", err)
		return
	}
	if sub == nil || sub.ArchiveKey == "" {
		http.NotFound(w, r)
		return
	}

	rc, contentType, err := s.service.ArchivedBody(r.Context(), sub)
	if err != nil {
		http.NotFound(w, r)
		s.logger.Warn("archived body unavailable", "submission_id", id, "error", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Error("write archived body error", "submission_id", id, "error", err)
	}
}

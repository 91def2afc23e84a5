package server

import (
	"net/http"

	"github.com/cwbudde/docdenoise/internal/ui"
)

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	jobs := s.jobManager.ListJobs()
	items := make([]ui.JobListItem, len(jobs))
	for i, job := range jobs {
		items[i] = ui.JobListItem{
			ID:          job.ID,
			Kind:        job.Config.Kind,
			State:       string(job.State),
			Filter:      job.Config.Filter,
			InputDir:    job.Config.InputDir,
			Done:        job.Done,
			Total:       job.Total,
			RMSE:        job.RMSE,
			InitialRMSE: job.InitialRMSE,
			StartTime:   job.StartTime,
			EndTime:     job.EndTime,
			Error:       job.Error,
		}
	}

	if err := ui.JobList(items).Render(r.Context(), w); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
}

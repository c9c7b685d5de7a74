package api

import (
	"net/http"

	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
)

// RunAccepted is returned when a run is triggered.
type RunAccepted struct {
	ID string `json:"id"`
}

var errNoRuns = errors.NotFoundError("no backup run has finished yet").Build()

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	id, err := s.backend.TriggerRun("api")
	if err != nil {
		s.Error(w, r, err)
		return
	}
	s.Success(w, http.StatusAccepted, RunAccepted{ID: id})
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.backend.LastRun()
	if !ok {
		s.Error(w, r, errNoRuns)
		return
	}
	s.Success(w, http.StatusOK, run)
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	infos, err := s.backend.Backups(r.Context())
	if err != nil {
		s.Error(w, r, err)
		return
	}
	s.Success(w, http.StatusOK, infos)
}

package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Scheduler string `json:"scheduler"`
	Store     string `json:"store"`
	Observers int    `json:"observers"`
	Tasks     int    `json:"tasks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	sched := "not_started"
	if s.started {
		sched = "running"
	}
	storeState := "ok"
	if _, err := s.store.MaxSeq(r.Context()); err != nil {
		storeState = "error"
	}
	status := "healthy"
	if storeState != "ok" {
		status = "degraded"
	}

	respondOK(w, reqID, healthResponse{
		Status:    status,
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Scheduler: sched,
		Store:     storeState,
		Observers: s.hub.Len(),
		Tasks:     len(s.engine.Tasks()),
	})
}

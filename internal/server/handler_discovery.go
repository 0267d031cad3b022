package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "shopfloor API",
		Version:     "v1",
		Description: "Machine task scheduler: one job per machine, per-task countdowns, live state sync",
		Endpoints: []endpointInfo{
			{"/ws", []string{"GET"}, "WebSocket: full state on connect and on every change; accepts create/update/delete commands"},
			{"/api/v1/tasks", []string{"GET", "POST"}, "Task table. GET accepts ?sort=<column>&order=asc|desc"},
			{"/api/v1/tasks/{id}", []string{"GET", "PATCH", "DELETE"}, "Single task operations"},
			{"/api/v1/machines", []string{"GET"}, "Machine catalog with live busy state and queue length"},
			{"/api/v1/sse/tasks", []string{"GET"}, "Server-Sent Events stream of state messages"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
			{"/metrics", []string{"GET"}, "Prometheus metrics"},
		},
	})
}

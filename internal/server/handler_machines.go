package server

import "net/http"

type machineResponse struct {
	Name         string   `json:"name"`
	Tool         string   `json:"tool"`
	Materials    []string `json:"materials"`
	ExpectedTime int      `json:"expected_time"`
	Busy         bool     `json:"busy"`
	Running      string   `json:"running,omitempty"`
	Next         string   `json:"next,omitempty"`
	Queued       int      `json:"queued"`
}

// handleListMachines lists catalog machines in catalog order with their
// live queue state. Machines that only appear in the task table (for
// example after a catalog change) are listed after them.
func (s *Server) handleListMachines(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	queues := s.engine.Queues()

	out := make([]machineResponse, 0, len(s.catalog.Machines))
	seen := make(map[string]bool)
	for _, m := range s.catalog.Machines {
		q := queues[m.Name]
		seen[m.Name] = true
		out = append(out, machineResponse{
			Name:         m.Name,
			Tool:         m.ToolType(),
			Materials:    m.Materials,
			ExpectedTime: m.ExpectedTime,
			Busy:         q.Busy,
			Running:      q.Running,
			Next:         q.Next,
			Queued:       q.Queued,
		})
	}
	for name, q := range queues {
		if seen[name] {
			continue
		}
		out = append(out, machineResponse{
			Name:    name,
			Busy:    q.Busy,
			Running: q.Running,
			Next:    q.Next,
			Queued:  q.Queued,
		})
	}

	respondOK(w, reqID, out)
}

package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/me/shopfloor/pkg/model"
)

const maxBodyBytes = 64 << 10

// handleListTasks returns the committed table, sorted by any column.
// Legacy display names such as "Time left" are accepted for sort.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	if sort := r.URL.Query().Get("sort"); sort != "" {
		opts.SortBy = sort
		if col, ok := model.ColumnFor(sort); ok {
			opts.SortBy = col
		}
		if !opts.Normalize() {
			respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid sort column",
				model.FieldError{Field: "sort", Message: "unknown column " + sort}))
			return
		}
	}
	switch strings.ToLower(r.URL.Query().Get("order")) {
	case "", "asc":
	case "desc":
		opts.Desc = true
	default:
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid order",
			model.FieldError{Field: "order", Message: "must be asc or desc"}))
		return
	}

	tasks, err := s.store.ListTasks(r.Context(), opts)
	if err != nil {
		respondErr(w, reqID, model.NewStoreError("list tasks", err))
		return
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}

	respondList(w, reqID, tasks, &model.Pagination{
		Total:   len(tasks),
		Limit:   len(tasks),
		Offset:  0,
		HasMore: false,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	task, ok := s.engine.Get(id)
	if !ok {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", id))
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	body, err := readBody(r)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	reply := s.handler.Apply(r.Context(), model.Command{
		Action:    model.ActionCreate,
		Params:    body,
		RequestID: reqID,
	})
	if task, ok := s.commandTask(w, reqID, reply); ok {
		respondCreated(w, reqID, task)
	}
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	body, err := readBody(r)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	// The path names the task; a task_id in the body is ignored.
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("malformed body: "+err.Error()))
		return
	}
	fields["task_id"], _ = json.Marshal(id)
	params, _ := json.Marshal(fields)

	reply := s.handler.Apply(r.Context(), model.Command{
		Action:    model.ActionUpdate,
		Params:    params,
		RequestID: reqID,
	})
	if task, ok := s.commandTask(w, reqID, reply); ok {
		respondOK(w, reqID, task)
	}
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	params, _ := json.Marshal(map[string]string{"task_id": chi.URLParam(r, "id")})

	reply := s.handler.Apply(r.Context(), model.Command{
		Action:    model.ActionDelete,
		Params:    params,
		RequestID: reqID,
	})
	if err := reply.Err(); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"id": reply.TaskID, "status": "deleted"})
}

// commandTask returns the task a successful command touched, as it is
// now. On failure it writes the error response and returns false.
func (s *Server) commandTask(w http.ResponseWriter, reqID string, reply model.ReplyMessage) (*model.Task, bool) {
	if err := reply.Err(); err != nil {
		respondErr(w, reqID, err)
		return nil, false
	}
	task, ok := s.engine.Get(reply.TaskID)
	if !ok {
		// Deleted by a concurrent command.
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", reply.TaskID))
		return nil, false
	}
	return task, true
}

func readBody(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, model.NewValidationError("read body: " + err.Error())
	}
	if len(body) > maxBodyBytes {
		return nil, model.NewValidationError("request body too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, model.NewValidationError("request body is required")
	}
	return body, nil
}

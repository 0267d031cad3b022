// Package protocol decodes client commands and applies them to the
// scheduling engine.
package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/me/shopfloor/internal/logging"
	"github.com/me/shopfloor/internal/metrics"
	"github.com/me/shopfloor/internal/validate"
	"github.com/me/shopfloor/pkg/model"
)

// Engine is the task table the handler mutates.
type Engine interface {
	Create(ctx context.Context, nt model.NewTask) (*model.Task, error)
	Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, id string) error
}

// Durations resolves the job duration of a machine when a create command
// does not carry one.
type Durations interface {
	ExpectedSeconds(machine string) (int, bool)
}

// Handler applies create, update and delete commands. The engine
// broadcasts the resulting table; the handler only builds the reply for
// the sender.
type Handler struct {
	engine    Engine
	durations Durations
	logger    *slog.Logger
}

// NewHandler creates a handler. durations may be nil, in which case a
// create without an explicit duration gets zero.
func NewHandler(engine Engine, durations Durations, logger *slog.Logger) *Handler {
	return &Handler{
		engine:    engine,
		durations: durations,
		logger:    logging.Component(logger, "protocol"),
	}
}

// HandleMessage decodes one raw client message and applies it. It always
// returns a reply, an error reply when the message cannot be decoded.
func (h *Handler) HandleMessage(ctx context.Context, raw []byte) model.ReplyMessage {
	var cmd model.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		h.logger.Debug("undecodable message", "error", err)
		return errorReply(cmd, model.NewValidationError("malformed message: "+err.Error()))
	}
	return h.Apply(ctx, cmd)
}

// Apply executes one decoded command.
func (h *Handler) Apply(ctx context.Context, cmd model.Command) model.ReplyMessage {
	var (
		taskID string
		err    error
	)
	switch cmd.Action {
	case model.ActionCreate:
		taskID, err = h.create(ctx, cmd.Params)
	case model.ActionUpdate:
		taskID, err = h.update(ctx, cmd.Params)
	case model.ActionDelete:
		taskID, err = h.delete(ctx, cmd.Params)
	default:
		err = model.NewValidationError(fmt.Sprintf("unknown action %q", cmd.Action),
			model.FieldError{Field: "action", Message: "must be create, update or delete"})
	}

	if err != nil {
		code := model.CodeOf(err)
		metrics.CommandsTotal.WithLabelValues(actionLabel(cmd.Action), string(code)).Inc()
		if code == model.ErrStore || code == model.ErrInternal {
			h.logger.Error("command failed", "action", cmd.Action, "task_id", taskID, "code", code, "error", err)
		} else {
			h.logger.Debug("command rejected", "action", cmd.Action, "task_id", taskID, "code", code, "error", err)
		}
		reply := errorReply(cmd, err)
		reply.TaskID = taskID
		return reply
	}

	metrics.CommandsTotal.WithLabelValues(cmd.Action, "ok").Inc()
	return model.ReplyMessage{
		Type:      model.MessageResult,
		RequestID: cmd.RequestID,
		Action:    cmd.Action,
		TaskID:    taskID,
	}
}

func actionLabel(action string) string {
	switch action {
	case model.ActionCreate, model.ActionUpdate, model.ActionDelete:
		return action
	}
	return "unknown"
}

func errorReply(cmd model.Command, err error) model.ReplyMessage {
	apiErr := model.AsAPIError(err)
	return model.ReplyMessage{
		Type:      model.MessageError,
		RequestID: cmd.RequestID,
		Action:    cmd.Action,
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Details:   apiErr.Details,
	}
}

// decodeParams decodes command params keeping numbers as json.Number so
// that numeric strings and numbers go through the same parser.
func decodeParams(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return model.NewValidationError("missing params",
			model.FieldError{Field: "params", Message: "params object is required"})
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("malformed params: "+err.Error(),
			model.FieldError{Field: "params", Message: "must be an object"})
	}
	return nil
}

// CreateParams are the fields of a create command. time_left is the legacy
// name of duration_seconds.
type CreateParams struct {
	Machine         string `json:"machine"`
	Material        string `json:"material"`
	Speed           any    `json:"speed"`
	DurationSeconds any    `json:"duration_seconds,omitempty"`
	TimeLeft        any    `json:"time_left,omitempty"`
}

// UpdateParams are the fields of an update command. new_speed is the
// legacy name of speed; old_speed is accepted and ignored.
type UpdateParams struct {
	TaskID   string  `json:"task_id"`
	Machine  *string `json:"machine,omitempty"`
	Material *string `json:"material,omitempty"`
	Speed    any     `json:"speed,omitempty"`
	NewSpeed any     `json:"new_speed,omitempty"`
	OldSpeed any     `json:"old_speed,omitempty"`
}

// DeleteParams are the fields of a delete command.
type DeleteParams struct {
	TaskID string `json:"task_id"`
}

func requireTaskID(id string) error {
	if id == "" {
		return model.NewValidationError("missing task id",
			model.FieldError{Field: "task_id", Message: "task_id is required"})
	}
	return nil
}

func (h *Handler) create(ctx context.Context, raw json.RawMessage) (string, error) {
	var p CreateParams
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	nt, err := h.NewTask(p)
	if err != nil {
		return "", err
	}
	task, err := h.engine.Create(ctx, nt)
	if err != nil {
		return "", err
	}
	return task.ID, nil
}

// NewTask turns create params into engine input, filling in the machine's
// configured duration when none is given.
func (h *Handler) NewTask(p CreateParams) (model.NewTask, error) {
	if p.Machine == "" {
		return model.NewTask{}, model.NewValidationError("invalid task",
			model.FieldError{Field: "machine", Message: "machine is required"})
	}
	speed, err := validate.ParseSpeed(p.Speed)
	if err != nil {
		return model.NewTask{}, err
	}

	nt := model.NewTask{Machine: p.Machine, Material: p.Material, Speed: speed}
	rawDuration := p.DurationSeconds
	if rawDuration == nil {
		rawDuration = p.TimeLeft
	}
	switch {
	case rawDuration != nil:
		if nt.DurationSeconds, err = validate.ParseWhole("duration_seconds", rawDuration); err != nil {
			return model.NewTask{}, err
		}
	case h.durations != nil:
		nt.DurationSeconds, _ = h.durations.ExpectedSeconds(p.Machine)
	}
	return nt, nil
}

func (h *Handler) update(ctx context.Context, raw json.RawMessage) (string, error) {
	var p UpdateParams
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	patch, err := Patch(p)
	if err != nil {
		return p.TaskID, err
	}
	if _, err := h.engine.Update(ctx, p.TaskID, patch); err != nil {
		return p.TaskID, err
	}
	return p.TaskID, nil
}

// Patch turns update params into an engine patch.
func Patch(p UpdateParams) (model.TaskPatch, error) {
	if err := requireTaskID(p.TaskID); err != nil {
		return model.TaskPatch{}, err
	}
	patch := model.TaskPatch{Machine: p.Machine, Material: p.Material}
	rawSpeed := p.Speed
	if rawSpeed == nil {
		rawSpeed = p.NewSpeed
	}
	if rawSpeed != nil {
		speed, err := validate.ParseSpeed(rawSpeed)
		if err != nil {
			return model.TaskPatch{}, err
		}
		patch.Speed = &speed
	}
	return patch, nil
}

func (h *Handler) delete(ctx context.Context, raw json.RawMessage) (string, error) {
	var p DeleteParams
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	if err := requireTaskID(p.TaskID); err != nil {
		return "", err
	}
	return p.TaskID, h.engine.Delete(ctx, p.TaskID)
}

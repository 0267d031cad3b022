// Package client is a WebSocket client for the shopfloor scheduler. It
// sends commands, matches their replies by request id, and exposes the
// stream of state broadcasts.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/me/shopfloor/internal/logging"
	"github.com/me/shopfloor/pkg/model"
)

// ErrClosed is returned by calls made after the connection ended.
var ErrClosed = errors.New("client: connection closed")

// stateBuffer is how many unread state messages States keeps. Older ones
// are dropped first.
const stateBuffer = 16

// CreateParams are the fields of a create command.
type CreateParams struct {
	Machine         string `json:"machine"`
	Material        string `json:"material"`
	Speed           int    `json:"speed"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
}

// UpdateParams are the fields of an update command. Nil fields are left
// unchanged.
type UpdateParams struct {
	TaskID   string  `json:"task_id"`
	Machine  *string `json:"machine,omitempty"`
	Material *string `json:"material,omitempty"`
	Speed    *int    `json:"speed,omitempty"`
}

// Client is one WebSocket connection to the scheduler.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan model.ReplyMessage
	latest  []model.Record
	synced  chan struct{} // closed on the first state message
	err     error

	states chan []model.Record
	done   chan struct{}
}

// WSURL turns a server address into its WebSocket endpoint. http(s) is
// mapped to ws(s), a bare host gets ws://, and an empty path becomes /ws.
func WSURL(server string) (string, error) {
	if !strings.Contains(server, "://") {
		server = "ws://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// Dial connects to server and starts reading messages.
func Dial(ctx context.Context, server string, logger *slog.Logger) (*Client, error) {
	wsURL, err := WSURL(server)
	if err != nil {
		return nil, err
	}
	logger = logging.Component(logger, "client")
	logger.Debug("dialing", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	c := &Client{
		conn:    conn,
		logger:  logger,
		pending: make(map[string]chan model.ReplyMessage),
		synced:  make(chan struct{}),
		states:  make(chan []model.Record, stateBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close ends the connection. Pending calls fail with ErrClosed.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// States delivers every state broadcast. If the reader falls behind, the
// oldest unread tables are dropped. The channel is closed with the
// connection.
func (c *Client) States() <-chan []model.Record {
	return c.states
}

// Latest waits for the first state message and returns the most recent
// table.
func (c *Client) Latest(ctx context.Context) ([]model.Record, error) {
	select {
	case <-c.synced:
	case <-c.done:
		return nil, c.closedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Record, len(c.latest))
	copy(out, c.latest)
	return out, nil
}

// Create adds a task and returns its id.
func (c *Client) Create(ctx context.Context, p CreateParams) (string, error) {
	reply, err := c.Do(ctx, model.ActionCreate, p)
	if err != nil {
		return "", err
	}
	return reply.TaskID, nil
}

// Update edits a task.
func (c *Client) Update(ctx context.Context, p UpdateParams) error {
	_, err := c.Do(ctx, model.ActionUpdate, p)
	return err
}

// Delete removes a task.
func (c *Client) Delete(ctx context.Context, taskID string) error {
	_, err := c.Do(ctx, model.ActionDelete, map[string]string{"task_id": taskID})
	return err
}

// Do sends one command and waits for its reply. An error reply is
// returned as a *model.APIError.
func (c *Client) Do(ctx context.Context, action string, params any) (model.ReplyMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return model.ReplyMessage{}, fmt.Errorf("marshal params: %w", err)
	}
	reqID := "req_" + strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan model.ReplyMessage, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return model.ReplyMessage{}, c.closedErr()
	}
	c.pending[reqID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
	}()

	cmd := model.Command{Action: action, Params: raw, RequestID: reqID}
	c.logger.Debug("send command", "action", action, "request_id", reqID)
	c.writeMu.Lock()
	err = c.conn.WriteJSON(cmd)
	c.writeMu.Unlock()
	if err != nil {
		return model.ReplyMessage{}, fmt.Errorf("send %s: %w", action, err)
	}

	select {
	case reply := <-ch:
		return reply, reply.Err()
	case <-c.done:
		return model.ReplyMessage{}, c.closedErr()
	case <-ctx.Done():
		return model.ReplyMessage{}, ctx.Err()
	}
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil && !errors.Is(c.err, ErrClosed) {
		return fmt.Errorf("%w: %v", ErrClosed, c.err)
	}
	return ErrClosed
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.states)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = ErrClosed
			}
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			c.logger.Debug("connection ended", "error", err)
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("undecodable message", "error", err)
			continue
		}
		switch env.Type {
		case model.MessageState:
			c.onState(env.Tasks)
		case model.MessageResult, model.MessageError:
			c.onReply(env.ReplyMessage)
		default:
			c.logger.Debug("unknown message type", "type", env.Type)
		}
	}
}

func (c *Client) onState(records []model.Record) {
	if records == nil {
		records = []model.Record{}
	}
	c.mu.Lock()
	first := c.latest == nil
	c.latest = records
	c.mu.Unlock()
	if first {
		close(c.synced)
	}

	for {
		select {
		case c.states <- records:
			return
		default:
		}
		select {
		case <-c.states:
		default:
		}
	}
}

func (c *Client) onReply(reply model.ReplyMessage) {
	c.mu.Lock()
	ch, ok := c.pending[reply.RequestID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("reply without caller", "request_id", reply.RequestID)
		return
	}
	ch <- reply
}

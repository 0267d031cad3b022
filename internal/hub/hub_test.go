package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/me/shopfloor/internal/logging"
	"github.com/me/shopfloor/pkg/model"
)

type fakeObserver struct {
	id   string
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (o *fakeObserver) ID() string { return o.id }

func (o *fakeObserver) Send(msg []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *fakeObserver) received() []model.StateMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []model.StateMessage
	for _, m := range o.msgs {
		var sm model.StateMessage
		json.Unmarshal(m, &sm)
		out = append(out, sm)
	}
	return out
}

func records(ids ...string) []model.Record {
	var out []model.Record
	for _, id := range ids {
		out = append(out, model.Record{
			ID:        id,
			CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
			Machine:   "M1",
			Status:    model.Queued(),
		})
	}
	return out
}

func TestPublish_DeliversToAll(t *testing.T) {
	h := New(logging.NewDiscardLogger())
	a := &fakeObserver{id: "a"}
	b := &fakeObserver{id: "b"}
	h.Add(a)
	h.Add(b)

	h.Publish(1, records("t1", "t2"))

	for _, o := range []*fakeObserver{a, b} {
		got := o.received()
		if len(got) != 2 {
			t.Fatalf("%s received %d messages, want initial state plus broadcast", o.id, len(got))
		}
		if got[1].Type != model.MessageState || len(got[1].Tasks) != 2 || got[1].Tasks[1].ID != "t2" {
			t.Errorf("%s received %+v", o.id, got[1])
		}
	}
}

func TestPublish_FailedObserverRemoved(t *testing.T) {
	h := New(logging.NewDiscardLogger())
	good := &fakeObserver{id: "good"}
	bad := &fakeObserver{id: "bad"}
	h.Add(good)
	h.Add(bad)

	bad.err = errors.New("broken pipe")
	h.Publish(1, records("t1"))

	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
	if len(good.received()) != 2 {
		t.Error("healthy observer missed the broadcast")
	}

	h.Publish(2, records("t1", "t2"))
	if len(good.received()) != 3 {
		t.Error("healthy observer missed the second broadcast")
	}
}

func TestPublish_StaleVersionDropped(t *testing.T) {
	h := New(logging.NewDiscardLogger())
	o := &fakeObserver{id: "o"}
	h.Add(o)

	h.Publish(5, records("t1", "t2"))
	h.Publish(4, records("t1"))
	h.Publish(5, records())

	got := o.received()
	if len(got) != 2 {
		t.Fatalf("received %d messages, want 2", len(got))
	}
	version, latest := h.Latest()
	if version != 5 {
		t.Errorf("version = %d, want 5", version)
	}
	var sm model.StateMessage
	json.Unmarshal(latest, &sm)
	if len(sm.Tasks) != 2 {
		t.Errorf("latest has %d tasks, want 2", len(sm.Tasks))
	}
}

func TestAdd_SendsLatestState(t *testing.T) {
	h := New(logging.NewDiscardLogger())

	early := &fakeObserver{id: "early"}
	if err := h.Add(early); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := early.received(); len(got) != 1 || got[0].Type != model.MessageState || got[0].Tasks == nil || len(got[0].Tasks) != 0 {
		t.Errorf("before any publish, early observer received %+v, want one empty state", got)
	}

	h.Publish(1, records("t1"))
	late := &fakeObserver{id: "late"}
	h.Add(late)
	got := late.received()
	if len(got) != 1 || got[0].Tasks[0].ID != "t1" {
		t.Errorf("late observer received %+v", got)
	}

	broken := &fakeObserver{id: "broken", err: errors.New("closed")}
	err := h.Add(broken)
	if model.CodeOf(err) != model.ErrTransport {
		t.Errorf("Add broken code = %q, want TRANSPORT_ERROR", model.CodeOf(err))
	}
	if h.Len() != 2 {
		t.Errorf("Len() = %d, want 2", h.Len())
	}
}

func TestPublish_EmptyTableEncodesArray(t *testing.T) {
	h := New(nil)
	o := &fakeObserver{id: "o"}
	h.Add(o)
	h.Publish(1, nil)

	o.mu.Lock()
	defer o.mu.Unlock()
	for i, m := range o.msgs {
		if string(m) != `{"type":"state","tasks":[]}` {
			t.Errorf("message %d = %s", i, m)
		}
	}
}

func TestRefresh_UpdatesLatestWithoutBroadcast(t *testing.T) {
	h := New(nil)
	existing := &fakeObserver{id: "existing"}
	h.Add(existing)
	h.Publish(1, records("t1"))

	h.Refresh(2, records("t1", "t2"))
	if got := existing.received(); len(got) != 2 {
		t.Errorf("existing observer received %d messages, want 2 (refresh is not broadcast)", len(got))
	}

	joiner := &fakeObserver{id: "joiner"}
	h.Add(joiner)
	got := joiner.received()
	if len(got) != 1 || len(got[0].Tasks) != 2 {
		t.Fatalf("joiner received %+v, want the refreshed table", got)
	}

	// Older versions never replace a newer table.
	h.Refresh(1, records())
	h.Publish(2, records())
	if version, _ := h.Latest(); version != 2 {
		t.Errorf("version = %d, want 2", version)
	}
	late := &fakeObserver{id: "late"}
	h.Add(late)
	if got := late.received(); len(got[0].Tasks) != 2 {
		t.Errorf("late observer got %d tasks, want 2", len(got[0].Tasks))
	}
}

func TestRemoveAndClose(t *testing.T) {
	h := New(nil)
	p := NewPeer("p", 0)
	h.Add(p)
	h.Add(&fakeObserver{id: "f"})

	if !h.Remove("f") || h.Remove("f") {
		t.Error("Remove should succeed once")
	}

	h.Close()
	if h.Len() != 0 {
		t.Errorf("Len() after Close = %d", h.Len())
	}
	select {
	case <-p.Done():
	default:
		t.Error("peer mailbox not closed")
	}
}

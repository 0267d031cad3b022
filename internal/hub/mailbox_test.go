package hub

import (
	"context"
	"errors"
	"testing"
	"time"
)

func drain(t *testing.T, m *Mailbox, n int) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var out []string
	for i := 0; i < n; i++ {
		msg, err := m.Next(ctx)
		if err != nil {
			t.Fatalf("Next #%d: %v", i, err)
		}
		out = append(out, string(msg))
	}
	return out
}

func TestMailbox_Order(t *testing.T) {
	tests := []struct {
		name string
		puts []string // "s:" state, "r:" reply
		want []string
	}{
		{"fifo replies", []string{"r:1", "r:2"}, []string{"1", "2"}},
		{"state then reply", []string{"s:a", "r:1"}, []string{"a", "1"}},
		{"pending state coalesces in place", []string{"s:a", "r:1", "s:b", "r:2", "s:c"}, []string{"c", "1", "2"}},
		{"reply then states", []string{"r:1", "s:a", "s:b"}, []string{"1", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMailbox(10)
			for _, p := range tt.puts {
				var err error
				if p[0] == 's' {
					err = m.PutState([]byte(p[2:]))
				} else {
					err = m.PutReply([]byte(p[2:]))
				}
				if err != nil {
					t.Fatalf("put %s: %v", p, err)
				}
			}
			got := drain(t, m, len(tt.want))
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestMailbox_StateAfterDrainIsQueuedAgain(t *testing.T) {
	m := NewMailbox(1)
	m.PutReply([]byte("1"))
	m.PutState([]byte("a"))
	drain(t, m, 2)

	m.PutState([]byte("b"))
	m.PutReply([]byte("2"))
	m.PutState([]byte("c"))
	if got := drain(t, m, 2); got[0] != "c" || got[1] != "2" {
		t.Errorf("got %v, want [c 2]", got)
	}
}

func TestMailbox_ReplyLimit(t *testing.T) {
	m := NewMailbox(2)
	m.PutReply([]byte("1"))
	m.PutReply([]byte("2"))
	if err := m.PutReply([]byte("3")); !errors.Is(err, ErrFull) {
		t.Errorf("third reply err = %v, want ErrFull", err)
	}
	// States are never refused for lack of space.
	if err := m.PutState([]byte("s")); err != nil {
		t.Errorf("PutState: %v", err)
	}
	drain(t, m, 1)
	if err := m.PutReply([]byte("3")); err != nil {
		t.Errorf("reply after drain: %v", err)
	}
}

func TestMailbox_NextBlocksUntilPut(t *testing.T) {
	m := NewMailbox(0)
	got := make(chan string, 1)
	go func() {
		msg, err := m.Next(context.Background())
		if err == nil {
			got <- string(msg)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	m.PutState([]byte("late"))

	select {
	case msg := <-got:
		if msg != "late" {
			t.Errorf("msg = %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up")
	}
}

func TestMailbox_Close(t *testing.T) {
	m := NewMailbox(0)
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	m.Close()
	m.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Next err = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Close")
	}
	if err := m.PutState([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("PutState after Close = %v", err)
	}
	if err := m.PutReply([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("PutReply after Close = %v", err)
	}
}

func TestMailbox_NextContextDone(t *testing.T) {
	m := NewMailbox(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := m.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next err = %v, want DeadlineExceeded", err)
	}
}

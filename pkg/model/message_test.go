package model

import (
	"encoding/json"
	"testing"
)

func TestNewStateMessage_EmptyTable(t *testing.T) {
	data, err := json.Marshal(NewStateMessage(nil))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"type":"state","tasks":[]}` {
		t.Errorf("got %s", data)
	}
}

func TestEnvelope_Decode(t *testing.T) {
	var state Envelope
	raw := `{"type":"state","tasks":[["task_1","2026-03-01 08:30:00.000000","M1","Steel",10,"queued",0,""]]}`
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		t.Fatalf("Unmarshal state: %v", err)
	}
	if state.Type != MessageState || len(state.Tasks) != 1 {
		t.Fatalf("state = %+v", state)
	}

	var reply Envelope
	raw = `{"type":"error","request_id":"r1","action":"update","code":"IMMUTABLE_FIELD","message":"nope"}`
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		t.Fatalf("Unmarshal reply: %v", err)
	}
	if reply.Type != MessageError || reply.RequestID != "r1" {
		t.Fatalf("reply = %+v", reply)
	}
	if got := CodeOf(reply.Err()); got != ErrImmutableField {
		t.Errorf("CodeOf(reply.Err()) = %q, want %q", got, ErrImmutableField)
	}
}

func TestReplyMessage_ErrNilForResult(t *testing.T) {
	m := ReplyMessage{Type: MessageResult, Action: ActionCreate, TaskID: "task_1"}
	if m.Err() != nil {
		t.Errorf("Err() = %v, want nil", m.Err())
	}
}

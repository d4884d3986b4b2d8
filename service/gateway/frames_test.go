package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bazario/pushgate/tools/errs"
)

func TestParseFrame(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
		typ     string
		conv    string
		content string
	}{
		{name: "chat message", raw: `{"type":"chat_message","conversation_id":"abc","content":"hi"}`,
			typ: FrameChatMessage, conv: "abc", content: "hi"},
		{name: "numeric conversation id", raw: `{"type":"chat_message","conversation_id":17,"content":"hi"}`,
			typ: FrameChatMessage, conv: "17", content: "hi"},
		{name: "ping", raw: `{"type":"ping"}`, typ: FramePing},
		{name: "null conversation id", raw: `{"type":"chat_message","conversation_id":null,"content":"hi"}`,
			typ: FrameChatMessage, conv: "", content: "hi"},
		{name: "broken json", raw: `{"type":`, wantErr: true},
		{name: "not an object", raw: `[1,2]`, wantErr: true},
		{name: "missing type", raw: `{"conversation_id":"abc"}`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ParseFrame([]byte(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", f)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if f.Type != tc.typ {
				t.Errorf("type = %q, want %q", f.Type, tc.typ)
			}
			if string(f.ConversationID) != tc.conv {
				t.Errorf("conversation_id = %q, want %q", f.ConversationID, tc.conv)
			}
			if f.Content != tc.content {
				t.Errorf("content = %q, want %q", f.Content, tc.content)
			}
		})
	}
}

func TestBuildChatMessageEvent(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := BuildChatMessageEvent(&Message{ID: "m1", Sender: "alice", Content: "hi", CreatedAt: now})

	var out struct {
		Type    string `json:"type"`
		Message struct {
			ID        string    `json:"id"`
			Sender    string    `json:"sender"`
			Content   string    `json:"content"`
			IsRead    bool      `json:"is_read"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"message"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Type != "chat_message" || out.Message.ID != "m1" || out.Message.Sender != "alice" {
		t.Errorf("unexpected event: %s", b)
	}
	if out.Message.IsRead {
		t.Error("new message must not be read")
	}
	if !out.Message.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v", out.Message.CreatedAt)
	}
}

func TestBuildErrorEvent(t *testing.T) {
	b := BuildErrorEvent(errs.ErrForbidden.WithDetail("not a conversation member"))
	var out struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Type != "error" {
		t.Errorf("type = %q", out.Type)
	}
	if out.Message != "forbidden: not a conversation member" {
		t.Errorf("message = %q", out.Message)
	}
}

func TestBuildPong(t *testing.T) {
	if got := string(BuildPong()); got != `{"type":"pong"}` {
		t.Errorf("pong = %s", got)
	}
}

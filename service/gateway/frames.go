package gateway

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/bazario/pushgate/tools/errs"
)

// Inbound frame types. The set is closed; anything else is malformed.
const (
	FrameChatMessage = "chat_message"
	FramePing        = "ping"
)

// FlexID accepts both string and numeric JSON ids; older clients send the
// conversation id as a number.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// InboundFrame is the client envelope: {type, conversation_id?, content?}.
type InboundFrame struct {
	Type           string `json:"type"`
	ConversationID FlexID `json:"conversation_id"`
	Content        string `json:"content"`
}

func ParseFrame(raw []byte) (*InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "unmarshal frame")
	}
	if f.Type == "" {
		return nil, errors.New("frame has no type")
	}
	return &f, nil
}

// ---- outbound event builders ----

type chatMessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type pongEvent struct {
	Type string `json:"type"`
}

func BuildChatMessageEvent(m *Message) []byte {
	b, _ := json.Marshal(chatMessageEvent{Type: FrameChatMessage, Message: m})
	return b
}

func BuildErrorEvent(e *errs.CodeError) []byte {
	msg := e.Msg
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	b, _ := json.Marshal(errorEvent{Type: "error", Message: msg})
	return b
}

func BuildPong() []byte {
	b, _ := json.Marshal(pongEvent{Type: "pong"})
	return b
}

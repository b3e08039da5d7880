package channel

import (
	"encoding/json"
	"strings"
)

// Kind enumerates the inbound message types a client may send.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnect
	KindGenerate
	KindUserMessage
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindGenerate:
		return "generate"
	case KindUserMessage:
		return "user_message"
	default:
		return "unknown"
	}
}

// ParseKind maps the wire type onto a Kind. Anything unrecognised is KindUnknown.
func ParseKind(raw string) Kind {
	switch strings.TrimSpace(raw) {
	case "connect":
		return KindConnect
	case "generate":
		return KindGenerate
	case "user_message":
		return KindUserMessage
	default:
		return KindUnknown
	}
}

// Inbound is a message received from the client.
type Inbound struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Kind returns the parsed message kind.
func (m Inbound) Kind() Kind {
	return ParseKind(m.Type)
}

// Outbound event types.
const (
	EventConnected     = "connected"
	EventInProgress    = "agent_response_in_progress"
	EventCompleted     = "agent_response_completed"
	EventAgentResponse = "agent_response"
	EventResumeUpdated = "resume_updated"
	EventError         = "error"
)

// Outbound is an event pushed to the client.
type Outbound struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Data      string `json:"data,omitempty"`
}

// outboundJSON keeps the payload key of each event even when it is empty.
type outboundJSON struct {
	Type      string  `json:"type"`
	SessionID *string `json:"session_id,omitempty"`
	Message   *string `json:"message,omitempty"`
	Data      *string `json:"data,omitempty"`
}

func (o Outbound) MarshalJSON() ([]byte, error) {
	out := outboundJSON{Type: o.Type}
	if o.SessionID != "" || o.Type == EventConnected {
		out.SessionID = &o.SessionID
	}
	if o.Message != "" || o.Type == EventAgentResponse || o.Type == EventError {
		out.Message = &o.Message
	}
	if o.Data != "" || o.Type == EventResumeUpdated {
		out.Data = &o.Data
	}
	return json.Marshal(out)
}

func Connected(sessionID string) Outbound {
	return Outbound{Type: EventConnected, SessionID: sessionID}
}

func InProgress() Outbound {
	return Outbound{Type: EventInProgress}
}

func Completed() Outbound {
	return Outbound{Type: EventCompleted}
}

func AgentResponse(message string) Outbound {
	return Outbound{Type: EventAgentResponse, Message: message}
}

func ResumeUpdated(content string) Outbound {
	return Outbound{Type: EventResumeUpdated, Data: content}
}

func Error(message string) Outbound {
	return Outbound{Type: EventError, Message: message}
}

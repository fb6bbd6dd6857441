package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/polyglot-chat/polyglot-server/internal/ai"
)

// Role is the provider-side vocabulary for a message turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// PublicRole is the vocabulary exposed to API consumers. System and function
// turns never cross that boundary.
type PublicRole string

const (
	PublicRoleTutor PublicRole = "tutor"
	PublicRoleUser  PublicRole = "user"
)

// Public translates an internal role to the public vocabulary. Asking for a
// role with no public equivalent is a programming error and fails; there is
// deliberately no fallback.
func (r Role) Public() (PublicRole, error) {
	switch r {
	case RoleAssistant:
		return PublicRoleTutor, nil
	case RoleUser:
		return PublicRoleUser, nil
	default:
		return "", fmt.Errorf("chat: role %q has no public equivalent", r)
	}
}

// Message is one turn in a session history. Immutable once appended.
// ID and TimestampMS are assigned at append time and are never part of the
// payload sent to the completion provider.
type Message struct {
	Role         Role            `json:"role"`
	Content      string          `json:"content"`
	Name         string          `json:"name,omitempty"`
	FunctionCall json.RawMessage `json:"function_call,omitempty"`
	ID           string          `json:"id,omitempty"`
	TimestampMS  int64           `json:"timestamp_ms,omitempty"`
}

// toProvider strips the fields the completion API does not accept.
func (m Message) toProvider() ai.Message {
	return ai.Message{
		Role:         string(m.Role),
		Content:      m.Content,
		FunctionCall: m.FunctionCall,
	}
}

func fromProvider(m ai.Message) Message {
	return Message{
		Role:         Role(m.Role),
		Content:      m.Content,
		FunctionCall: m.FunctionCall,
	}
}

func toProviderMessages(msgs []Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.toProvider())
	}
	return out
}

// stamp assigns the identity and timestamp a message receives when it enters
// a history.
func stamp(m Message, at time.Time) Message {
	m.ID = uuid.NewString()
	m.TimestampMS = at.UnixMilli()
	return m
}

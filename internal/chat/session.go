package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/polyglot-chat/polyglot-server/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultMaxTokens   = 200
	DefaultMaxMessages = 100
)

// ErrHistoryTooLong is returned when the composed prompt for a session would
// exceed its max_messages ceiling. Nothing is mutated and no provider call is
// made when this fires.
var ErrHistoryTooLong = errors.New("chat: message history too long")

// Session is one conversation between a user and a tutor. The session row
// owns the full ordered message history as a single JSON value; updates
// replace the whole column, never mutate it in place.
type Session struct {
	ID             uuid.UUID                     `gorm:"type:char(36);primaryKey" json:"id"`
	UserID         uuid.UUID                     `gorm:"type:char(36);index;not null" json:"user_id"`
	User           models.User                   `gorm:"foreignKey:UserID" json:"-"`
	TutorID        uuid.UUID                     `gorm:"type:char(36);index;not null" json:"tutor_id"`
	MessageHistory datatypes.JSONSlice[Message]  `gorm:"not null" json:"message_history"`
	MaxTokens      int                           `gorm:"not null;default:200" json:"-"`
	MaxMessages    int                           `gorm:"not null;default:100" json:"-"`
	CreatedAt      time.Time                     `json:"created_at"`
	UpdatedAt      time.Time                     `json:"updated_at"`
	DeletedAt      gorm.DeletedAt                `gorm:"index" json:"-"`
}

func (Session) TableName() string { return "chat_sessions" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	if s.MaxMessages <= 0 {
		s.MaxMessages = DefaultMaxMessages
	}
	if s.MessageHistory == nil {
		s.MessageHistory = datatypes.JSONSlice[Message]{}
	}
	return nil
}

// appendHistory builds a fresh slice holding old plus turns. Callers holding
// a reference to the old history never see the new turns.
func appendHistory(old []Message, turns ...Message) datatypes.JSONSlice[Message] {
	out := make([]Message, 0, len(old)+len(turns))
	out = append(out, old...)
	out = append(out, turns...)
	return out
}

package tutor

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultSystemPrompt is the template every new tutor starts from. The
// {name}, {language} and {student_name} placeholders are substituted when
// the prompt is composed for a session.
const DefaultSystemPrompt = `You are a friendly language tutor named {name} who can help a student named {student_name} improve their conversational skills in {language}.
The student is a non-native speaker who is learning {language} as a second language.
You open the conversation by greeting the student and introducing yourself, then talk about a variety of topics and ask conversational questions to keep the conversation going.
You hold conversations with the student about various topics, to help them improve their conversational skills.
`

// Tutor is an AI language-tutor persona: a templated system prompt plus the
// model it runs on.
type Tutor struct {
	ID                uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Name              string    `gorm:"type:varchar(64);not null" json:"name"`
	Visible           bool      `gorm:"not null;default:true" json:"visible"`
	Language          string    `gorm:"type:varchar(32);not null;default:english" json:"language"`
	AvatarURL         string    `gorm:"type:varchar(512);not null;default:''" json:"avatar_url"`
	SystemPrompt      string    `gorm:"type:text;not null" json:"-"`
	PersonalityPrompt string    `gorm:"type:text;not null" json:"-"`
	Model             ModelName `gorm:"type:varchar(32);not null" json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Tutor) TableName() string { return "tutors" }

func (t *Tutor) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.SystemPrompt == "" {
		t.SystemPrompt = DefaultSystemPrompt
	}
	if t.Model == "" {
		t.Model = ModelGPT35Turbo
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// SystemPromptFor composes the full system prompt for a session: template
// plus personality fragment, with placeholders substituted. An unknown
// placeholder in the template is an error, never silently left in place.
func (t *Tutor) SystemPromptFor(studentName string) (string, error) {
	values := map[string]string{
		"name":         t.Name,
		"language":     t.Language,
		"student_name": studentName,
	}

	prompt := t.SystemPrompt + t.PersonalityPrompt

	var substErr error
	out := placeholderRe.ReplaceAllStringFunc(prompt, func(ph string) string {
		key := placeholderRe.FindStringSubmatch(ph)[1]
		v, ok := values[key]
		if !ok {
			if substErr == nil {
				substErr = fmt.Errorf("tutor: no value for placeholder %q in system prompt", key)
			}
			return ph
		}
		return v
	})
	if substErr != nil {
		return "", substErr
	}
	return out, nil
}

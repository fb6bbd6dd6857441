package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/polyglot-chat/polyglot-server/internal/ai"
	"github.com/polyglot-chat/polyglot-server/internal/models"
	"github.com/polyglot-chat/polyglot-server/internal/tutor"
)

// Generation parameters fixed for the tutoring use case. The temperature is
// kept low so tutors stay on persona; the opener uses the default token
// budget regardless of the session's own budget.
const (
	temperature     = 0.2
	openerMaxTokens = DefaultMaxTokens
)

// Engine owns the message history of chat sessions: it composes prompts from
// the tutor persona and the stored history, enforces the history ceiling,
// calls the completion provider, and appends the exchange.
//
// Mutating operations are serialized per session id, and committed ones
// re-read the stored history under the lock before composing. Mutation
// happens only after a successful provider response, so a cancelled or
// failed call always leaves the session exactly as it was loaded.
type Engine struct {
	repo         *Repo
	registry     *ai.Registry
	providerName string
	locks        *sessionLocks
}

func NewEngine(repo *Repo, registry *ai.Registry, providerName string) *Engine {
	if providerName == "" {
		providerName = "openai"
	}
	return &Engine{
		repo:         repo,
		registry:     registry,
		providerName: providerName,
		locks:        newSessionLocks(),
	}
}

// Start creates a session with an empty history and immediately generates
// and persists its conversation opener.
func (e *Engine) Start(ctx context.Context, user *models.User, t *tutor.Tutor) (*Session, error) {
	s := &Session{
		UserID:  user.ID,
		TutorID: t.ID,
	}
	if err := e.repo.Create(ctx, s); err != nil {
		return nil, err
	}
	if _, err := e.ConversationOpener(ctx, s, user, t, true); err != nil {
		return nil, err
	}
	return s, nil
}

// ConversationOpener asks the tutor to open the conversation: the prompt is
// the system message alone, and only the assistant reply is stored. The
// system message itself never enters the history. When commit is false the
// appended turn lives only on the in-memory session.
func (e *Engine) ConversationOpener(ctx context.Context, s *Session, user *models.User, t *tutor.Tutor, commit bool) (Message, error) {
	release := e.locks.acquire(s.ID)
	defer release()

	if commit {
		if err := e.refresh(ctx, s); err != nil {
			return Message{}, err
		}
	}

	system, err := e.systemMessage(user, t)
	if err != nil {
		return Message{}, err
	}

	reply, err := e.complete(ctx, t, []Message{system}, openerMaxTokens)
	if err != nil {
		return Message{}, err
	}

	opener := stamp(reply, time.Now())
	s.MessageHistory = appendHistory(s.MessageHistory, opener)

	if commit {
		if err := e.repo.Save(ctx, s); err != nil {
			return Message{}, err
		}
	}
	return opener, nil
}

// GetResponse runs one exchange: it composes [system] + history + [user
// turn], rejects the call before any provider traffic if that composed
// prompt would exceed the session's message ceiling, and on success appends
// the user turn and the assistant reply in a single history update so the
// pair can never be split.
func (e *Engine) GetResponse(ctx context.Context, s *Session, user *models.User, t *tutor.Tutor, content string, commit bool) (Message, error) {
	release := e.locks.acquire(s.ID)
	defer release()

	if commit {
		if err := e.refresh(ctx, s); err != nil {
			return Message{}, err
		}
	}

	system, err := e.systemMessage(user, t)
	if err != nil {
		return Message{}, err
	}
	userTurn := stamp(Message{
		Role:    RoleUser,
		Content: content,
		Name:    user.FirstName,
	}, time.Now())

	composed := make([]Message, 0, len(s.MessageHistory)+2)
	composed = append(composed, system)
	composed = append(composed, s.MessageHistory...)
	composed = append(composed, userTurn)

	if len(composed) > s.MaxMessages {
		return Message{}, fmt.Errorf("%w: max messages is %d", ErrHistoryTooLong, s.MaxMessages)
	}

	reply, err := e.complete(ctx, t, composed, s.MaxTokens)
	if err != nil {
		return Message{}, err
	}

	assistant := stamp(reply, time.Now())
	s.MessageHistory = appendHistory(s.MessageHistory, userTurn, assistant)

	if commit {
		if err := e.repo.Save(ctx, s); err != nil {
			return Message{}, err
		}
	}
	return assistant, nil
}

// refresh reloads the session's history and ceilings from the store. Commits
// must start from the stored truth, not from whatever the caller loaded
// before taking the lock: two requests holding the same stale copy would
// otherwise each append to it and the later save would drop the earlier
// exchange.
func (e *Engine) refresh(ctx context.Context, s *Session) error {
	fresh, err := e.repo.Get(ctx, s.ID)
	if err != nil {
		return err
	}
	s.MessageHistory = fresh.MessageHistory
	s.MaxTokens = fresh.MaxTokens
	s.MaxMessages = fresh.MaxMessages
	return nil
}

func (e *Engine) systemMessage(user *models.User, t *tutor.Tutor) (Message, error) {
	prompt, err := t.SystemPromptFor(user.FirstName)
	if err != nil {
		return Message{}, err
	}
	return Message{Role: RoleSystem, Content: prompt}, nil
}

func (e *Engine) complete(ctx context.Context, t *tutor.Tutor, prompt []Message, maxTokens int) (Message, error) {
	provider, err := e.registry.Get(ctx, e.providerName, string(t.Model))
	if err != nil {
		return Message{}, err
	}
	reply, err := provider.Chat(ctx, ai.ChatRequest{
		Model:       string(t.Model),
		Messages:    toProviderMessages(prompt),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return Message{}, err
	}
	return fromProvider(reply), nil
}

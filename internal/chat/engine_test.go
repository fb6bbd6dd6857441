package chat

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/polyglot-chat/polyglot-server/internal/ai"
	"github.com/polyglot-chat/polyglot-server/internal/models"
	"github.com/polyglot-chat/polyglot-server/internal/tutor"
	"gorm.io/gorm"
)

type fakeProvider struct {
	reply string
	err   error
	calls int
	last  ai.ChatRequest
}

func (p *fakeProvider) Chat(ctx context.Context, req ai.ChatRequest) (ai.Message, error) {
	_ = ctx
	p.calls++
	// copy to avoid mutations
	req.Messages = append([]ai.Message(nil), req.Messages...)
	p.last = req
	if p.err != nil {
		return ai.Message{}, p.err
	}
	return ai.Message{Role: "assistant", Content: p.reply}, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &tutor.Tutor{}, &Session{}, &Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUserAndTutor(t *testing.T, db *gorm.DB, language string) (*models.User, *tutor.Tutor) {
	t.Helper()
	user := &models.User{
		Email:        uuid.NewString() + "@example.com",
		Username:     uuid.NewString()[:8],
		PasswordHash: "x",
		FirstName:    "Ada",
		LastName:     "Lovelace",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	tut := &tutor.Tutor{
		Name:     "Marie",
		Language: language,
		Model:    tutor.ModelGPT35Turbo,
	}
	if err := db.Create(tut).Error; err != nil {
		t.Fatalf("create tutor: %v", err)
	}
	return user, tut
}

func newTestEngine(t *testing.T, db *gorm.DB, prov *fakeProvider) (*Engine, *Repo) {
	t.Helper()
	repo := NewRepo(db)
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		_ = model
		return prov, nil
	})
	return NewEngine(repo, reg, "fake"), repo
}

func TestConversationOpener_AppendsOneAssistantTurn(t *testing.T) {
	db := openTestDB(t)
	user, tut := seedUserAndTutor(t, db, "french")

	prov := &fakeProvider{reply: "Bonjour, je m'appelle Marie!"}
	engine, repo := newTestEngine(t, db, prov)

	session := &Session{UserID: user.ID, TutorID: tut.ID}
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	opener, err := engine.ConversationOpener(context.Background(), session, user, tut, true)
	if err != nil {
		t.Fatalf("opener: %v", err)
	}
	if opener.Role != RoleAssistant {
		t.Fatalf("expected assistant opener, got role %q", opener.Role)
	}
	if opener.ID == "" || opener.TimestampMS == 0 {
		t.Fatalf("opener not stamped: id=%q ts=%d", opener.ID, opener.TimestampMS)
	}

	// the prompt sent to the provider is the system message alone
	if len(prov.last.Messages) != 1 || prov.last.Messages[0].Role != string(RoleSystem) {
		t.Fatalf("unexpected provider prompt: %+v", prov.last.Messages)
	}

	// only the assistant reply is stored; the system message never enters history
	stored, err := repo.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if len(stored.MessageHistory) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(stored.MessageHistory))
	}
	if stored.MessageHistory[0].Role != RoleAssistant || stored.MessageHistory[0].Content != prov.reply {
		t.Fatalf("unexpected stored opener: %+v", stored.MessageHistory[0])
	}
}

func TestConversationOpener_NoCommitLeavesStoreUntouched(t *testing.T) {
	db := openTestDB(t)
	user, tut := seedUserAndTutor(t, db, "french")

	prov := &fakeProvider{reply: "Salut!"}
	engine, repo := newTestEngine(t, db, prov)

	session := &Session{UserID: user.ID, TutorID: tut.ID}
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := engine.ConversationOpener(context.Background(), session, user, tut, false); err != nil {
		t.Fatalf("opener: %v", err)
	}
	if len(session.MessageHistory) != 1 {
		t.Fatalf("expected in-memory history of 1, got %d", len(session.MessageHistory))
	}

	stored, err := repo.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if len(stored.MessageHistory) != 0 {
		t.Fatalf("expected empty stored history, got %d", len(stored.MessageHistory))
	}
}

func TestGetResponse_AppendsUserAndAssistantPair(t *testing.T) {
	db := openTestDB(t)
	user, tut := seedUserAndTutor(t, db, "spanish")

	prov := &fakeProvider{reply: "Hola Ada!"}
	engine, repo := newTestEngine(t, db, prov)

	session := &Session{UserID: user.ID, TutorID: tut.ID}
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	reply, err := engine.GetResponse(context.Background(), session, user, tut, "Hola", true)
	if err != nil {
		t.Fatalf("get response: %v", err)
	}
	if reply.Content != "Hola Ada!" {
		t.Fatalf("unexpected reply: %q", reply.Content)
	}

	stored, err := repo.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if len(stored.MessageHistory) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(stored.MessageHistory))
	}
	if stored.MessageHistory[0].Role != RoleUser || stored.MessageHistory[0].Content != "Hola" {
		t.Fatalf("unexpected user turn: %+v", stored.MessageHistory[0])
	}
	if stored.MessageHistory[0].Name != user.FirstName {
		t.Fatalf("user turn should carry the speaker's name, got %q", stored.MessageHistory[0].Name)
	}
	if stored.MessageHistory[1].Role != RoleAssistant || stored.MessageHistory[1].Content != "Hola Ada!" {
		t.Fatalf("unexpected assistant turn: %+v", stored.MessageHistory[1])
	}

	// composed prompt is [system] + history + [user turn]
	if len(prov.last.Messages) != 2 {
		t.Fatalf("expected provider to get 2 messages, got %d", len(prov.last.Messages))
	}
	if prov.last.Messages[0].Role != string(RoleSystem) {
		t.Fatalf("first provider message should be system, got %q", prov.last.Messages[0].Role)
	}
	if prov.last.Messages[1].Role != string(RoleUser) || prov.last.Messages[1].Content != "Hola" {
		t.Fatalf("last provider message should be the new user turn, got %+v", prov.last.Messages[1])
	}
	// stamped fields never reach the provider
	if prov.last.Messages[1].Name != "" {
		t.Fatalf("provider payload should not carry the name field, got %q", prov.last.Messages[1].Name)
	}
	if prov.last.MaxTokens != session.MaxTokens {
		t.Fatalf("expected max_tokens %d, got %d", session.MaxTokens, prov.last.MaxTokens)
	}
}

func TestGetResponse_HistoryTooLong(t *testing.T) {
	db := openTestDB(t)
	user, tut := seedUserAndTutor(t, db, "french")

	prov := &fakeProvider{reply: "never"}
	engine, repo := newTestEngine(t, db, prov)

	seeded := make([]Message, 0, 10)
	for i := 0; i < 10; i++ {
		seeded = append(seeded, Message{Role: RoleUser, Content: "Hello"})
	}
	session := &Session{
		UserID:         user.ID,
		TutorID:        tut.ID,
		MaxMessages:    10,
		MessageHistory: seeded,
	}
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	before := append([]Message(nil), session.MessageHistory...)

	_, err := engine.GetResponse(context.Background(), session, user, tut, "one more", true)
	if !errors.Is(err, ErrHistoryTooLong) {
		t.Fatalf("expected ErrHistoryTooLong, got %v", err)
	}
	if prov.calls != 0 {
		t.Fatalf("provider must not be called when the ceiling is hit, got %d calls", prov.calls)
	}
	if !reflect.DeepEqual([]Message(session.MessageHistory), before) {
		t.Fatalf("history mutated on rejected call")
	}

	stored, err := repo.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if len(stored.MessageHistory) != 10 {
		t.Fatalf("stored history changed: %d messages", len(stored.MessageHistory))
	}
}

func TestGetResponse_StaleCopyDoesNotLoseTurns(t *testing.T) {
	db := openTestDB(t)
	user, tut := seedUserAndTutor(t, db, "french")

	prov := &fakeProvider{reply: "Oui!"}
	engine, repo := newTestEngine(t, db, prov)

	session := &Session{UserID: user.ID, TutorID: tut.ID}
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	// two handlers load the same session before either responds
	first, err := repo.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("load first copy: %v", err)
	}
	second, err := repo.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("load second copy: %v", err)
	}

	if _, err := engine.GetResponse(context.Background(), first, user, tut, "first", true); err != nil {
		t.Fatalf("first response: %v", err)
	}
	if _, err := engine.GetResponse(context.Background(), second, user, tut, "second", true); err != nil {
		t.Fatalf("second response: %v", err)
	}

	stored, err := repo.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if len(stored.MessageHistory) != 4 {
		t.Fatalf("stored history has %d messages, want 4", len(stored.MessageHistory))
	}
	contents := []string{
		stored.MessageHistory[0].Content,
		stored.MessageHistory[1].Content,
		stored.MessageHistory[2].Content,
		stored.MessageHistory[3].Content,
	}
	want := []string{"first", "Oui!", "second", "Oui!"}
	if !reflect.DeepEqual(contents, want) {
		t.Fatalf("unexpected history order: %v", contents)
	}
}

func TestGetResponse_ProviderFailureLeavesHistoryUnchanged(t *testing.T) {
	db := openTestDB(t)
	user, tut := seedUserAndTutor(t, db, "french")

	provErr := errors.New("upstream unavailable")
	prov := &fakeProvider{err: provErr}
	engine, repo := newTestEngine(t, db, prov)

	session := &Session{UserID: user.ID, TutorID: tut.ID}
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	_, err := engine.GetResponse(context.Background(), session, user, tut, "Hello", true)
	if !errors.Is(err, provErr) {
		t.Fatalf("expected provider error to propagate untouched, got %v", err)
	}
	if len(session.MessageHistory) != 0 {
		t.Fatalf("history mutated on provider failure: %d messages", len(session.MessageHistory))
	}
}

func TestStart_ThenRespond(t *testing.T) {
	db := openTestDB(t)
	user, tut := seedUserAndTutor(t, db, "french")

	prov := &fakeProvider{reply: "Bonjour Ada!"}
	engine, repo := newTestEngine(t, db, prov)

	session, err := engine.Start(context.Background(), user, tut)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(session.MessageHistory) != 1 || session.MessageHistory[0].Role != RoleAssistant {
		t.Fatalf("expected a one-message opener history, got %+v", session.MessageHistory)
	}

	prov.reply = "Bien, merci!"
	reply, err := engine.GetResponse(context.Background(), session, user, tut, "Bonjour", true)
	if err != nil {
		t.Fatalf("get response: %v", err)
	}

	stored, err := repo.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if len(stored.MessageHistory) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(stored.MessageHistory))
	}
	roles := []Role{stored.MessageHistory[0].Role, stored.MessageHistory[1].Role, stored.MessageHistory[2].Role}
	want := []Role{RoleAssistant, RoleUser, RoleAssistant}
	if !reflect.DeepEqual(roles, want) {
		t.Fatalf("unexpected role order: %v", roles)
	}
	if stored.MessageHistory[2].Content != reply.Content {
		t.Fatalf("returned reply %q does not match stored turn %q", reply.Content, stored.MessageHistory[2].Content)
	}

	// the system prompt carried the tutor's persona
	if len(prov.last.Messages) == 0 {
		t.Fatalf("provider saw no messages")
	}
	system := prov.last.Messages[0].Content
	for _, needle := range []string{"Marie", "french", "Ada"} {
		if !strings.Contains(system, needle) {
			t.Fatalf("system prompt missing %q:\n%s", needle, system)
		}
	}
}

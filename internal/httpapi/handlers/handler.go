package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/polyglot-chat/polyglot-server/internal/ai"
	"github.com/polyglot-chat/polyglot-server/internal/chat"
	"github.com/polyglot-chat/polyglot-server/internal/common"
	"github.com/polyglot-chat/polyglot-server/internal/config"
	"github.com/polyglot-chat/polyglot-server/internal/email"
	"github.com/polyglot-chat/polyglot-server/internal/httpapi/middleware"
	"github.com/polyglot-chat/polyglot-server/internal/models"
	"github.com/polyglot-chat/polyglot-server/internal/store/rabbitmq"
	"github.com/polyglot-chat/polyglot-server/internal/store/redisstore"
	"github.com/polyglot-chat/polyglot-server/internal/tutor"
	"gorm.io/gorm"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Redis       *redisstore.Store
	Rabbit      *rabbitmq.Publisher
	SMTPSetting email.SMTPConfig
	Sessions    *chat.Repo
	Tutors      *tutor.Repo
	Engine      *chat.Engine
}

func NewHandler(db *gorm.DB, cfg config.Config, r *redisstore.Store, pub *rabbitmq.Publisher) *Handler {
	sessions := chat.NewRepo(db)
	tutors := tutor.NewRepo(db)

	reg := ai.NewRegistry()
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		_ = model
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		_ = model
		return ai.NewOllamaProvider(cfg.OllamaBaseURL), nil
	})

	engine := chat.NewEngine(sessions, reg, cfg.AIProvider)

	return &Handler{
		DB:     db,
		Cfg:    cfg,
		Redis:  r,
		Rabbit: pub,
		SMTPSetting: email.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		},
		Sessions: sessions,
		Tutors:   tutors,
		Engine:   engine,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"status": "ok"})
}

func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// currentUser loads the authenticated caller's user row.
func (h *Handler) currentUser(c *gin.Context) (*models.User, bool) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return nil, false
	}
	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, "id = ?", uid).Error; err != nil {
		common.Fail(c, http.StatusUnauthorized, 40103, "unknown user")
		return nil, false
	}
	return &user, true
}

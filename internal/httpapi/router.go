package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/polyglot-chat/polyglot-server/internal/common"
	"github.com/polyglot-chat/polyglot-server/internal/config"
	"github.com/polyglot-chat/polyglot-server/internal/httpapi/handlers"
	"github.com/polyglot-chat/polyglot-server/internal/httpapi/middleware"
	"github.com/polyglot-chat/polyglot-server/internal/store/rabbitmq"
	"github.com/polyglot-chat/polyglot-server/internal/store/redisstore"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, pub *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, pub)

	r.GET("/ping", h.Ping)

	// registration + auth
	r.POST("/captcha", h.SendCaptcha)
	r.POST("/users", h.CreateUser)
	r.POST("/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// tutors (mutations are superuser-gated in the handlers)
	authGroup.GET("/tutors", h.GetTutors)
	authGroup.POST("/tutor", h.CreateTutor)
	authGroup.GET("/tutor/:tutor_id", h.GetTutor)
	authGroup.PUT("/tutor/:tutor_id", h.UpdateTutor)
	authGroup.DELETE("/tutor/:tutor_id", h.DeleteTutor)

	// chat sessions
	authGroup.GET("/chats", h.ListChatSessions)
	authGroup.GET("/chat", h.StartChatSession)
	authGroup.GET("/chat/jobs/:job_id", h.GetChatJob)
	authGroup.GET("/chat/:chat_id", h.GetChatSession)
	authGroup.POST("/chat/:chat_id", h.PostChatMessage)
	authGroup.POST("/chat/:chat_id/async", h.SendChatMessageAsync)
	authGroup.DELETE("/chat/:chat_id", h.DeleteChatSession)

	return r
}

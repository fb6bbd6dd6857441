package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/polyglot-chat/polyglot-server/internal/chat"
	"github.com/polyglot-chat/polyglot-server/internal/common"
	"gorm.io/gorm"
)

type messageRead struct {
	Role    chat.PublicRole `json:"role"`
	Content string          `json:"content"`
}

type sessionRead struct {
	ID             uuid.UUID     `json:"id"`
	UserID         uuid.UUID     `json:"user_id"`
	TutorID        uuid.UUID     `json:"tutor_id"`
	MessageHistory []messageRead `json:"message_history"`
}

func toSessionRead(s *chat.Session) (sessionRead, error) {
	history := make([]messageRead, 0, len(s.MessageHistory))
	for _, m := range s.MessageHistory {
		role, err := m.Role.Public()
		if err != nil {
			return sessionRead{}, err
		}
		history = append(history, messageRead{Role: role, Content: m.Content})
	}
	return sessionRead{
		ID:             s.ID,
		UserID:         s.UserID,
		TutorID:        s.TutorID,
		MessageHistory: history,
	}, nil
}

// GET /chats
func (h *Handler) ListChatSessions(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	sessions, err := h.Sessions.GetByUserID(c.Request.Context(), user.ID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list chat sessions")
		return
	}

	reads := make([]sessionRead, 0, len(sessions))
	for i := range sessions {
		read, err := toSessionRead(&sessions[i])
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
		reads = append(reads, read)
	}
	common.OK(c, reads)
}

// GET /chat/:chat_id
func (h *Handler) GetChatSession(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("chat_id"))
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40404, "chat session not found")
		return
	}

	session, err := h.Sessions.GetByIDAndUserID(c.Request.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "chat session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	read, err := toSessionRead(session)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, read)
}

// GET /chat?tutor_id=...
// Creates a session for the caller and the given tutor, generates the
// conversation opener, and returns the session with its one-message history.
func (h *Handler) StartChatSession(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	tutorID, err := uuid.Parse(c.Query("tutor_id"))
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40403, "tutor not found")
		return
	}

	t, err := h.Tutors.Get(c.Request.Context(), tutorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "tutor not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	// hidden tutors are reachable only by superusers
	if !t.Visible && !user.IsSuperuser {
		common.Fail(c, http.StatusNotFound, 40403, "tutor not found")
		return
	}

	session, err := h.Engine.Start(c.Request.Context(), user, t)
	if err != nil {
		log.Printf("[StartChatSession] user=%s tutor=%s err=%v", user.ID, t.ID, err)
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to start chat session")
		return
	}

	read, err := toSessionRead(session)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, read)
}

type postMessageReq struct {
	Content string `json:"content" binding:"required"`
}

// POST /chat/:chat_id
func (h *Handler) PostChatMessage(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("chat_id"))
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40404, "chat session not found")
		return
	}

	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusUnprocessableEntity, 10005, "content required")
		return
	}

	session, err := h.Sessions.GetByIDAndUserID(c.Request.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "chat session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	t, err := h.Tutors.Get(c.Request.Context(), session.TutorID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	reply, err := h.Engine.GetResponse(c.Request.Context(), session, user, t, req.Content, true)
	if err != nil {
		if errors.Is(err, chat.ErrHistoryTooLong) {
			common.Fail(c, http.StatusBadRequest, 10030, "message history too long")
			return
		}
		log.Printf("[PostChatMessage] user=%s session=%s err=%v", user.ID, session.ID, err)
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to get response")
		return
	}

	role, err := reply.Role.Public()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, messageRead{Role: role, Content: reply.Content})
}

// DELETE /chat/:chat_id?hard=true
func (h *Handler) DeleteChatSession(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("chat_id"))
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40404, "chat session not found")
		return
	}

	session, err := h.Sessions.GetByIDAndUserID(c.Request.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "chat session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	soft := c.Query("hard") != "true"
	if err := h.Sessions.Delete(c.Request.Context(), session.ID, soft); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to delete chat session")
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /chat/:chat_id/async
// Queues the exchange instead of running it inline; the worker appends the
// user turn and the reply together once generation succeeds.
func (h *Handler) SendChatMessageAsync(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("chat_id"))
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40404, "chat session not found")
		return
	}

	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusUnprocessableEntity, 10005, "content required")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10006, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	if _, err := h.Sessions.GetByIDAndUserID(c.Request.Context(), id, user.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "chat session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	jobID, err := common.NewULID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	j := &chat.Job{
		ID:             jobID,
		UserID:         user.ID,
		SessionID:      id,
		Prompt:         req.Content,
		IdempotencyKey: idempoKeyPtr,
		Status:         chat.JobQueued,
	}

	j, created, err := h.Sessions.CreateJobOrGetExisting(c.Request.Context(), j)
	if err != nil {
		log.Printf("[SendChatMessageAsync] user=%s session=%s err=%v", user.ID, id, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// enqueue only when a new job was created
	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), j.ID); err != nil {
			log.Printf("[SendChatMessageAsync] publish user=%s session=%s job=%s err=%v", user.ID, id, j.ID, err)
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": j.ID})
}

// GET /chat/jobs/:job_id
func (h *Handler) GetChatJob(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.Sessions.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40405, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != user.ID {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40405, "job not found")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":                j.ID,
			"session_id":        j.SessionID,
			"status":            j.Status,
			"result_message_id": j.ResultMessageID,
			"error":             j.Error,
			"created_at":        j.CreatedAt,
			"updated_at":        j.UpdatedAt,
		},
	})
}

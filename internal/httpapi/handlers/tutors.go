package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/polyglot-chat/polyglot-server/internal/common"
	"github.com/polyglot-chat/polyglot-server/internal/models"
	"github.com/polyglot-chat/polyglot-server/internal/tutor"
	"gorm.io/gorm"
)

type tutorRead struct {
	ID        uuid.UUID             `json:"id"`
	Name      string                `json:"name"`
	Visible   bool                  `json:"visible"`
	Language  string                `json:"language"`
	AvatarURL string                `json:"avatar_url"`
	Model     tutor.PublicModelName `json:"model"`
}

func toTutorRead(t *tutor.Tutor) (tutorRead, error) {
	public, err := t.Model.Public()
	if err != nil {
		return tutorRead{}, err
	}
	return tutorRead{
		ID:        t.ID,
		Name:      t.Name,
		Visible:   t.Visible,
		Language:  t.Language,
		AvatarURL: t.AvatarURL,
		Model:     public,
	}, nil
}

// superuser gates the tutor management endpoints.
func (h *Handler) superuser(c *gin.Context) (*models.User, bool) {
	user, ok := h.currentUser(c)
	if !ok {
		return nil, false
	}
	if !user.IsSuperuser {
		common.Fail(c, http.StatusForbidden, 40301, "superuser required")
		return nil, false
	}
	return user, true
}

type tutorCreateReq struct {
	Name              string                `json:"name" binding:"required"`
	Language          string                `json:"language" binding:"required"`
	AvatarURL         string                `json:"avatar_url" binding:"omitempty,url"`
	Visible           *bool                 `json:"visible"`
	Model             tutor.PublicModelName `json:"model"`
	PersonalityPrompt string                `json:"personality_prompt"`
}

func (h *Handler) CreateTutor(c *gin.Context) {
	if _, ok := h.superuser(c); !ok {
		return
	}

	var req tutorCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	model := tutor.ModelGPT35Turbo
	if req.Model != "" {
		m, err := req.Model.Internal()
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10010, "unknown model name")
			return
		}
		model = m
	}

	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}

	t := &tutor.Tutor{
		Name:              req.Name,
		Language:          req.Language,
		AvatarURL:         req.AvatarURL,
		Visible:           visible,
		Model:             model,
		PersonalityPrompt: req.PersonalityPrompt,
	}
	if err := h.Tutors.Create(c.Request.Context(), t); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create tutor")
		return
	}

	read, err := toTutorRead(t)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, read)
}

func (h *Handler) GetTutors(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var (
		tutors []tutor.Tutor
		err    error
	)
	if user.IsSuperuser {
		tutors, err = h.Tutors.GetAll(c.Request.Context())
	} else {
		tutors, err = h.Tutors.GetVisible(c.Request.Context())
	}
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to list tutors")
		return
	}

	reads := make([]tutorRead, 0, len(tutors))
	for i := range tutors {
		read, err := toTutorRead(&tutors[i])
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
		reads = append(reads, read)
	}
	common.OK(c, reads)
}

func (h *Handler) GetTutor(c *gin.Context) {
	if _, ok := h.superuser(c); !ok {
		return
	}

	id, err := uuid.Parse(c.Param("tutor_id"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid tutor id")
		return
	}

	t, err := h.Tutors.Get(c.Request.Context(), id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40403, "tutor not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	read, err := toTutorRead(t)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, read)
}

type tutorUpdateReq struct {
	Name              *string                `json:"name"`
	Language          *string                `json:"language"`
	AvatarURL         *string                `json:"avatar_url"`
	Visible           *bool                  `json:"visible"`
	Model             *tutor.PublicModelName `json:"model"`
	PersonalityPrompt *string                `json:"personality_prompt"`
}

func (h *Handler) UpdateTutor(c *gin.Context) {
	if _, ok := h.superuser(c); !ok {
		return
	}

	id, err := uuid.Parse(c.Param("tutor_id"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid tutor id")
		return
	}

	var req tutorUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	t, err := h.Tutors.Get(c.Request.Context(), id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40403, "tutor not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.Language != nil {
		t.Language = *req.Language
	}
	if req.AvatarURL != nil {
		t.AvatarURL = *req.AvatarURL
	}
	if req.Visible != nil {
		t.Visible = *req.Visible
	}
	if req.Model != nil {
		m, err := req.Model.Internal()
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10010, "unknown model name")
			return
		}
		t.Model = m
	}
	if req.PersonalityPrompt != nil {
		t.PersonalityPrompt = *req.PersonalityPrompt
	}

	if err := h.Tutors.Save(c.Request.Context(), t); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to update tutor")
		return
	}

	read, err := toTutorRead(t)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, read)
}

func (h *Handler) DeleteTutor(c *gin.Context) {
	if _, ok := h.superuser(c); !ok {
		return
	}

	id, err := uuid.Parse(c.Param("tutor_id"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid tutor id")
		return
	}

	if _, err := h.Tutors.Get(c.Request.Context(), id); err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40403, "tutor not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	if err := h.Tutors.Delete(c.Request.Context(), id); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to delete tutor")
		return
	}
	c.Status(http.StatusNoContent)
}

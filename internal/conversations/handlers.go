package conversations

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/subhive/subhive/backend/internal/httpx"
	"github.com/subhive/subhive/backend/pkg/models"
	"github.com/subhive/subhive/backend/internal/storage"
	"github.com/subhive/subhive/backend/internal/utils"
)

type Service struct {
	Store storage.Store
}

type createReq struct {
	UserIDs []string `json:"userIds" binding:"required,min=2"`
}

type readReq struct {
	UserID string `json:"userId" binding:"required"`
}

func Register(rg *gin.RouterGroup, store storage.Store) {
	s := Service{Store: store}

	rg.POST("/conversations", s.getOrCreate)
	rg.GET("/conversations/user/:userId", s.listForUser)
	rg.PUT("/conversations/:id/read", s.markRead)
}

// getOrCreate resolves the conversation for a participant set. Calling
// it twice with the same set, in any order, yields the same conversation.
func (s Service) getOrCreate(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := s.Store.GetOrCreateConversation(c.Request.Context(), req.UserIDs)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "conversation lookup failed")
		return
	}
	httpx.OK(c, conv)
}

func (s Service) listForUser(c *gin.Context) {
	list, err := s.Store.ConversationsForUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "failed to fetch conversations")
		return
	}
	if list == nil {
		list = []models.Conversation{}
	}
	httpx.OK(c, list)
}

func (s Service) markRead(c *gin.Context) {
	var req readReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	err := s.Store.MarkConversationRead(c.Request.Context(), c.Param("id"), req.UserID)
	if err == storage.ErrNotFound {
		httpx.Err(c, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "mark read failed")
		return
	}
	httpx.OK(c, gin.H{"ok": true})
}

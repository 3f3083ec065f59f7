package messages

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/subhive/subhive/backend/internal/auth"
	"github.com/subhive/subhive/backend/internal/chat"
	"github.com/subhive/subhive/backend/internal/httpx"
	"github.com/subhive/subhive/backend/pkg/models"
	"github.com/subhive/subhive/backend/internal/storage"
	"github.com/subhive/subhive/backend/internal/utils"
)

type Service struct {
	Store  storage.Store
	Router *chat.Router
}

type sendReq struct {
	ConversationID string   `json:"conversationId"`
	Sender         string   `json:"sender" binding:"required"`
	Recipient      string   `json:"recipient" binding:"required"`
	Type           string   `json:"type" binding:"omitempty,oneof=text media link"`
	Content        string   `json:"content"`
	Media          []string `json:"media"`
}

func Register(rg *gin.RouterGroup, store storage.Store, router *chat.Router) {
	s := Service{Store: store, Router: router}

	rg.POST("/messages", s.send)
	rg.GET("/messages/conversation/:conversationId", s.list)
}

// send records the message, then pushes it live. Persistence always
// happens before the push: a message is never seen on the wire before
// it is durable.
func (s Service) send(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	// with the bearer guard active the token identity is the sender,
	// whatever the body claims
	if uid := auth.UserID(c); uid != "" {
		req.Sender = uid
	}

	convID := req.ConversationID
	if convID == "" {
		conv, err := s.Store.GetOrCreateConversation(c.Request.Context(), []string{req.Sender, req.Recipient})
		if err != nil {
			httpx.Err(c, http.StatusInternalServerError, "conversation lookup failed")
			return
		}
		convID = conv.ID
	}

	msgType := req.Type
	if msgType == "" {
		msgType = models.MessageText
	}

	m := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Sender:         req.Sender,
		Recipient:      req.Recipient,
		Type:           msgType,
		Content:        req.Content,
		Media:          req.Media,
		CreatedAt:      time.Now().UnixMilli(),
	}
	if err := s.Store.CreateMessage(c.Request.Context(), m); err != nil {
		if err == storage.ErrNotFound {
			httpx.Err(c, http.StatusNotFound, "conversation not found")
			return
		}
		httpx.Err(c, http.StatusInternalServerError, "create message failed")
		return
	}

	s.Router.NotifyMessage(m)

	httpx.Created(c, m)
}

func (s Service) list(c *gin.Context) {
	list, err := s.Store.MessagesForConversation(c.Request.Context(), c.Param("conversationId"))
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if list == nil {
		list = []models.Message{}
	}
	httpx.OK(c, list)
}

package notifications

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/subhive/subhive/backend/internal/chat"
	"github.com/subhive/subhive/backend/internal/httpx"
	"github.com/subhive/subhive/backend/internal/mailer"
	"github.com/subhive/subhive/backend/pkg/models"
	"github.com/subhive/subhive/backend/internal/storage"
	"github.com/subhive/subhive/backend/internal/utils"
)

type Service struct {
	Store  storage.Store
	Hub    *chat.Hub
	Router *chat.Router
	Mailer mailer.Mailer
}

type createReq struct {
	Type             string `json:"type" binding:"required,oneof=post_like post_comment comment_like comment_reply mention follow system"`
	Recipient        string `json:"recipient" binding:"required"`
	Sender           string `json:"sender"`
	Content          string `json:"content"`
	RelatedPostID    string `json:"relatedPostId"`
	RelatedCommentID string `json:"relatedCommentId"`
	// optional contact address for the offline email fallback
	Email string `json:"email" binding:"omitempty,email"`
}

func Register(rg *gin.RouterGroup, store storage.Store, hub *chat.Hub, router *chat.Router, m mailer.Mailer) {
	s := Service{Store: store, Hub: hub, Router: router, Mailer: m}

	rg.POST("/notifications", s.create)
	rg.GET("/notifications/user/:userId", s.listForUser)
	rg.PUT("/notifications/:id/read", s.markRead)
	rg.PUT("/notifications/user/:userId/read-all", s.markAllRead)
}

// create is the entry point for the external content service. The
// notification is recorded first; only then does it go out live.
func (s Service) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	n := &models.Notification{
		ID:               uuid.NewString(),
		Type:             req.Type,
		Recipient:        req.Recipient,
		Sender:           req.Sender,
		Content:          req.Content,
		RelatedPostID:    req.RelatedPostID,
		RelatedCommentID: req.RelatedCommentID,
		CreatedAt:        time.Now().UnixMilli(),
	}
	if err := s.Store.CreateNotification(c.Request.Context(), n); err != nil {
		httpx.Err(c, http.StatusInternalServerError, "create notification failed")
		return
	}

	live := len(s.Hub.ConnectionsFor(n.Recipient)) > 0
	s.Router.NotifyNotification(n)

	if !live && req.Email != "" && s.Mailer != nil {
		go func() {
			if err := s.Mailer.Send(req.Email, "You have a new notification", n.Content); err != nil {
				log.Printf("[notifications] fallback mail to %s failed: %v", req.Email, err)
			}
		}()
	}

	httpx.Created(c, n)
}

func (s Service) listForUser(c *gin.Context) {
	list, err := s.Store.NotificationsForUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "failed to fetch notifications")
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	httpx.OK(c, list)
}

func (s Service) markRead(c *gin.Context) {
	err := s.Store.MarkNotificationRead(c.Request.Context(), c.Param("id"))
	if err == storage.ErrNotFound {
		httpx.Err(c, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "mark read failed")
		return
	}
	httpx.OK(c, gin.H{"ok": true})
}

func (s Service) markAllRead(c *gin.Context) {
	if err := s.Store.MarkAllNotificationsRead(c.Request.Context(), c.Param("userId")); err != nil {
		httpx.Err(c, http.StatusInternalServerError, "mark all read failed")
		return
	}
	httpx.OK(c, gin.H{"ok": true})
}

package notifications

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/bazario/pushgate/logger"
	"github.com/bazario/pushgate/middleware"
	"github.com/bazario/pushgate/service/notify"
)

// Handler is the notification pull API: what a client reads after being
// offline, and how it clears the unread badge.
type Handler struct {
	store notify.Store
}

func NewHandler(store notify.Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the routes on an authenticated router group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/notifications", h.List)
	g.GET("/notifications/unread", h.ListUnread)
	g.POST("/notifications/:id/mark_read", h.MarkRead)
	g.POST("/notifications/mark_all_read", h.MarkAllRead)
}

func (h *Handler) List(c *gin.Context) {
	h.list(c, false)
}

func (h *Handler) ListUnread(c *gin.Context) {
	h.list(c, true)
}

func (h *Handler) list(c *gin.Context, unreadOnly bool) {
	user := middleware.UserFrom(c)
	items, err := h.store.ListByRecipient(c.Request.Context(), user, unreadOnly)
	if err != nil {
		logger.Errorf("[notifications] list user=%s: %v", user, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}
	if items == nil {
		items = []notify.Notification{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) MarkRead(c *gin.Context) {
	user := middleware.UserFrom(c)
	err := h.store.MarkRead(c.Request.Context(), c.Param("id"), user)
	switch {
	case errors.Is(err, ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"detail": "forbidden"})
	case err != nil:
		logger.Errorf("[notifications] mark read user=%s id=%s: %v", user, c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
	default:
		c.JSON(http.StatusOK, gin.H{"is_read": true})
	}
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	user := middleware.UserFrom(c)
	if err := h.store.MarkAllRead(c.Request.Context(), user); err != nil {
		logger.Errorf("[notifications] mark all read user=%s: %v", user, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "all notifications marked as read"})
}

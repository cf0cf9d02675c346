package carts

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"go_ticketbot/internal/httpx"
	"go_ticketbot/internal/store"
)

// Handler holds cart session endpoint dependencies
type Handler struct {
	store *store.Store
}

// NewHandler creates a carts handler
func NewHandler(st *store.Store) *Handler {
	return &Handler{store: st}
}

// List returns recent cart sessions newest-first
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sessions, err := h.store.ListCartSessions(limit)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to list cart sessions", err))
		return
	}
	httpx.OK(c, sessions)
}

package games

import (
	"sort"

	"github.com/gin-gonic/gin"

	"go_ticketbot/internal/httpx"
	"go_ticketbot/internal/model"
	"go_ticketbot/internal/scraper"
	"go_ticketbot/internal/store"
)

// GameResponse is a catalog game with its schedule status
type GameResponse struct {
	scraper.Game
	IsScheduled     bool   `json:"is_scheduled"`
	ScheduledTaskID *int64 `json:"scheduled_task_id,omitempty"`
}

// Handler holds games endpoint dependencies
type Handler struct {
	catalog *scraper.Catalog
	store   *store.Store
}

// NewHandler creates a games handler
func NewHandler(catalog *scraper.Catalog, st *store.Store) *Handler {
	return &Handler{catalog: catalog, store: st}
}

// List returns all catalog games sorted by sale date, each flagged with
// whether a scheduled task already covers it.
func (h *Handler) List(c *gin.Context) {
	games, err := h.catalog.Games(c.Request.Context())
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to fetch games", err))
		return
	}

	scheduled, err := h.store.ActiveScheduledTasks()
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load scheduled tasks", err))
		return
	}
	scheduledByGame := make(map[string]*model.ScheduledTask, len(scheduled))
	for i := range scheduled {
		scheduledByGame[scheduled[i].GameID] = &scheduled[i]
	}

	items := make([]GameResponse, 0, len(games))
	for _, g := range games {
		resp := GameResponse{Game: g}
		if st, ok := scheduledByGame[g.ID]; ok {
			resp.IsScheduled = true
			resp.ScheduledTaskID = &st.ID
		}
		items = append(items, resp)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].SaleDate, items[j].SaleDate
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})
	httpx.OK(c, items)
}

// Refresh forces a catalog re-crawl
func (h *Handler) Refresh(c *gin.Context) {
	games, err := h.catalog.Refresh(c.Request.Context())
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to refresh games", err))
		return
	}
	httpx.OK(c, gin.H{"count": len(games)})
}

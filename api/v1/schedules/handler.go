package schedules

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go_ticketbot/internal/httpx"
	"go_ticketbot/internal/model"
	"go_ticketbot/internal/scraper"
	"go_ticketbot/internal/store"
)

// saleHour is the local hour tickets go on sale at the vendor
const saleHour = 7

// CreateRequest represents schedule creation request body
type CreateRequest struct {
	GameID     string `json:"game_id" binding:"required"`
	Quantity   int    `json:"quantity"`
	NumThreads int    `json:"num_threads"`
}

// Handler holds scheduled task endpoint dependencies
type Handler struct {
	catalog *scraper.Catalog
	store   *store.Store
}

// NewHandler creates a schedules handler
func NewHandler(catalog *scraper.Catalog, st *store.Store) *Handler {
	return &Handler{catalog: catalog, store: st}
}

// Create schedules a monitoring task for a game's sale date at 07:00
// German time.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 4
	}
	if req.Quantity > 4 {
		httpx.FailErr(c, httpx.ErrParamInvalid("quantity must be between 1 and 4"))
		return
	}
	if req.NumThreads <= 0 {
		req.NumThreads = 5
	}

	game, err := h.catalog.FindGame(c.Request.Context(), req.GameID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to look up game", err))
		return
	}
	if game == nil {
		httpx.FailErr(c, httpx.ErrNotFound("game not found"))
		return
	}
	if game.SaleDate == "" {
		httpx.FailErr(c, httpx.ErrParamInvalid("game has no sale date"))
		return
	}

	existing, err := h.store.ActiveScheduledTasks()
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to check scheduled tasks", err))
		return
	}
	for i := range existing {
		if existing[i].GameID == req.GameID && existing[i].Status == model.ScheduledStatusScheduled {
			httpx.FailErr(c, httpx.ErrStateConflict("game already scheduled"))
			return
		}
	}

	scheduledUTC, err := saleDateToUTC(game.SaleDate)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to compute trigger time", err))
		return
	}

	st := &model.ScheduledTask{
		GameID:        game.ID,
		GameTitle:     game.Title,
		ProductURL:    game.URL,
		Quantity:      req.Quantity,
		NumThreads:    req.NumThreads,
		ScheduledDate: scheduledUTC,
		Status:        model.ScheduledStatusScheduled,
	}
	if err := h.store.SaveScheduledTask(st); err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to save scheduled task", err))
		return
	}
	httpx.OK(c, st)
}

// List returns all scheduled tasks ordered by trigger date
func (h *Handler) List(c *gin.Context) {
	tasks, err := h.store.ListScheduledTasks()
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to list scheduled tasks", err))
		return
	}
	httpx.OK(c, tasks)
}

// Delete cancels a scheduled task that has not triggered yet
func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid scheduled task id"))
		return
	}

	st, err := h.store.ScheduledTaskByID(id)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load scheduled task", err))
		return
	}
	if st == nil {
		httpx.FailErr(c, httpx.ErrNotFound("scheduled task not found"))
		return
	}
	if st.Status != model.ScheduledStatusScheduled {
		httpx.FailErr(c, httpx.ErrStateConflict("task already triggered or completed"))
		return
	}

	if err := h.store.DeleteScheduledTask(id); err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to delete scheduled task", err))
		return
	}
	httpx.OKMsg(c, "scheduled task deleted", nil)
}

// saleDateToUTC converts a sale date to the 07:00 Europe/Berlin trigger
// instant, stored as UTC.
func saleDateToUTC(saleDate string) (time.Time, error) {
	day, err := time.Parse("2006-01-02", saleDate)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return time.Time{}, err
	}
	local := time.Date(day.Year(), day.Month(), day.Day(), saleHour, 0, 0, 0, loc)
	return local.UTC(), nil
}

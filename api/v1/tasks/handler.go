package tasks

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"go_ticketbot/internal/engine"
	"go_ticketbot/internal/httpx"
	"go_ticketbot/internal/model"
	"go_ticketbot/internal/store"
)

// CreateRequest represents task creation request body
type CreateRequest struct {
	ProductURL string `json:"product_url" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required"`
	NumThreads int    `json:"num_threads"`
}

// TaskResponse is a task enriched with its latest cart token
type TaskResponse struct {
	model.Task
	CartToken string `json:"cart_token,omitempty"`
}

// Handler holds task endpoint dependencies
type Handler struct {
	store      *store.Store
	supervisor *engine.Supervisor
	vendorHost string
}

// NewHandler creates a tasks handler. vendorBaseURL restricts which
// product URLs may be monitored.
func NewHandler(st *store.Store, sup *engine.Supervisor, vendorBaseURL string) *Handler {
	host := ""
	if u, err := url.Parse(vendorBaseURL); err == nil {
		host = u.Hostname()
	}
	return &Handler{store: st, supervisor: sup, vendorHost: host}
}

// Create registers a new monitoring task in pending state
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	if h.vendorHost != "" && !strings.Contains(req.ProductURL, h.vendorHost) {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid product URL"))
		return
	}
	if req.Quantity < 1 || req.Quantity > 4 {
		httpx.FailErr(c, httpx.ErrParamInvalid("quantity must be between 1 and 4"))
		return
	}
	if req.NumThreads <= 0 {
		req.NumThreads = 5
	}

	task := &model.Task{
		ProductURL: req.ProductURL,
		Quantity:   req.Quantity,
		NumThreads: req.NumThreads,
		Status:     model.TaskStatusPending,
	}
	if err := h.store.SaveTask(task); err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to create task", err))
		return
	}
	httpx.OK(c, task)
}

// List returns tasks newest-first. Successful tasks carry their most
// recent cart token so the UI can link straight to checkout.
func (h *Handler) List(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	tasks, total, err := h.store.ListTasks(offset, limit)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to list tasks", err))
		return
	}

	items := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp := TaskResponse{Task: t}
		if t.Status == model.TaskStatusSuccess {
			if sess, err := h.store.LatestCartSession(t.ID); err == nil && sess != nil {
				resp.CartToken = sess.Token
			}
		}
		items = append(items, resp)
	}
	httpx.OKItems(c, items, total)
}

// Get returns one task
func (h *Handler) Get(c *gin.Context) {
	task, ok := h.loadTask(c)
	if !ok {
		return
	}
	httpx.OK(c, task)
}

// Start admits the task into the supervisor
func (h *Handler) Start(c *gin.Context) {
	task, ok := h.loadTask(c)
	if !ok {
		return
	}

	if h.supervisor.IsActive(task.ID) {
		httpx.OKMsg(c, "task already running", nil)
		return
	}
	if !h.supervisor.Admit(task) {
		// Lost an admission race with a concurrent request; the task is
		// running either way.
		if h.supervisor.IsActive(task.ID) {
			httpx.OKMsg(c, "task already running", nil)
			return
		}
		httpx.FailErr(c, httpx.ErrInternalError("failed to start task", nil))
		return
	}
	httpx.OKMsg(c, "task started", nil)
}

// Stop cancels a running task
func (h *Handler) Stop(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	if !h.supervisor.Cancel(id) {
		httpx.FailErr(c, httpx.ErrStateConflict("task is not running"))
		return
	}
	httpx.OKMsg(c, "task stopped", nil)
}

// Delete stops the task if running and removes it with its logs
func (h *Handler) Delete(c *gin.Context) {
	task, ok := h.loadTask(c)
	if !ok {
		return
	}

	if h.supervisor.IsActive(task.ID) {
		h.supervisor.Cancel(task.ID)
	}
	if err := h.store.DeleteTask(task.ID); err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to delete task", err))
		return
	}
	httpx.OKMsg(c, "task deleted", nil)
}

// Logs returns the newest log entries for a task
func (h *Handler) Logs(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	logs, err := h.store.TaskLogs(id, limit)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load task logs", err))
		return
	}
	httpx.OK(c, logs)
}

func (h *Handler) taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid task id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) loadTask(c *gin.Context) (*model.Task, bool) {
	id, ok := h.taskID(c)
	if !ok {
		return nil, false
	}
	task, err := h.store.LoadTask(id)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load task", err))
		return nil, false
	}
	if task == nil {
		httpx.FailErr(c, httpx.ErrNotFound("task not found"))
		return nil, false
	}
	return task, true
}

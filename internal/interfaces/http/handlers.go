package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brightframe/studioops/internal/application/port"
	"github.com/brightframe/studioops/internal/application/service"
	"github.com/brightframe/studioops/internal/domain/task"
)

const actorKey = "actor"

// Handlers contains all HTTP request handlers
type Handlers struct {
	taskService service.TaskService
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(taskService service.TaskService, logger Logger) *Handlers {
	return &Handlers{
		taskService: taskService,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// actorMiddleware extracts the pre-verified actor identity supplied by
// the gateway. Requests without an actor are rejected.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Actor-ID")
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing actor identity",
			})
			return
		}
		role := c.GetHeader("X-Actor-Role")
		if role == "" {
			role = task.RoleStaff
		}
		c.Set(actorKey, task.Actor{
			ID:           id,
			Role:         role,
			DepartmentID: c.GetHeader("X-Actor-Department"),
		})
		c.Next()
	}
}

func actorFrom(c *gin.Context) task.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(task.Actor); ok {
			return a
		}
	}
	return task.Actor{}
}

// statusFor maps the domain error taxonomy to HTTP status codes
func statusFor(err error) int {
	switch {
	case task.IsValidation(err):
		return http.StatusBadRequest
	case task.IsAuthorization(err):
		return http.StatusForbidden
	case task.IsNotFound(err):
		return http.StatusNotFound
	case task.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		msg = "internal error"
	}
	c.JSON(status, Response{Success: false, Error: msg})
}

func (h *Handlers) ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	h.ok(c, http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateTask handles POST /api/v1/tasks
func (h *Handlers) CreateTask(c *gin.Context) {
	var in task.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, task.NewValidationError("invalid request body: %v", err))
		return
	}

	t, err := h.taskService.CreateTask(c.Request.Context(), in, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, t)
}

// GetTask handles GET /api/v1/tasks/:id
func (h *Handlers) GetTask(c *gin.Context) {
	t, err := h.taskService.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, t)
}

// ListTasks handles GET /api/v1/tasks
func (h *Handlers) ListTasks(c *gin.Context) {
	var query struct {
		DepartmentID string `form:"department_id"`
		AssignedTo   string `form:"assigned_to"`
		ClientID     string `form:"client_id"`
		Status       string `form:"status"`
		Limit        int    `form:"limit"`
		Offset       int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.fail(c, task.NewValidationError("invalid query parameters: %v", err))
		return
	}
	if query.Limit <= 0 || query.Limit > 100 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), port.TaskFilter{
		DepartmentID: query.DepartmentID,
		AssignedTo:   query.AssignedTo,
		ClientID:     query.ClientID,
		Status:       task.Status(query.Status),
		Limit:        query.Limit,
		Offset:       query.Offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, tasks)
}

// UpdateTask handles PATCH /api/v1/tasks/:id
func (h *Handlers) UpdateTask(c *gin.Context) {
	var in task.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, task.NewValidationError("invalid request body: %v", err))
		return
	}

	t, err := h.taskService.UpdateTask(c.Request.Context(), c.Param("id"), in, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, t)
}

// AssignTask handles POST /api/v1/tasks/:id/assign
func (h *Handlers) AssignTask(c *gin.Context) {
	var body struct {
		AssigneeID string `json:"assignee_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, task.NewValidationError("invalid request body: %v", err))
		return
	}

	t, err := h.taskService.AssignTask(c.Request.Context(), c.Param("id"), body.AssigneeID, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, t)
}

// ChangeStatus handles POST /api/v1/tasks/:id/status
func (h *Handlers) ChangeStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, task.NewValidationError("invalid request body: %v", err))
		return
	}

	t, err := h.taskService.ChangeStatus(c.Request.Context(), c.Param("id"), task.Status(body.Status), body.Reason, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, t)
}

// SetProgress handles POST /api/v1/tasks/:id/progress
func (h *Handlers) SetProgress(c *gin.Context) {
	var body struct {
		Percentage int    `json:"percentage"`
		Note       string `json:"note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, task.NewValidationError("invalid request body: %v", err))
		return
	}

	t, err := h.taskService.SetProgress(c.Request.Context(), c.Param("id"), body.Percentage, body.Note, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, t)
}

// AddNote handles POST /api/v1/tasks/:id/notes
func (h *Handlers) AddNote(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, task.NewValidationError("invalid request body: %v", err))
		return
	}

	t, err := h.taskService.AddNote(c.Request.Context(), c.Param("id"), body.Text, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, t)
}

// StartTime handles POST /api/v1/tasks/:id/time/start
func (h *Handlers) StartTime(c *gin.Context) {
	var body struct {
		Description string `json:"description"`
	}
	// Body is optional for start
	_ = c.ShouldBindJSON(&body)

	entry, err := h.taskService.StartTime(c.Request.Context(), c.Param("id"), actorFrom(c), body.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, entry)
}

// StopTime handles POST /api/v1/tasks/:id/time/stop
func (h *Handlers) StopTime(c *gin.Context) {
	var body struct {
		Description string `json:"description"`
	}
	_ = c.ShouldBindJSON(&body)

	entry, err := h.taskService.StopTime(c.Request.Context(), c.Param("id"), actorFrom(c), body.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, entry)
}

// RecordManualTime handles POST /api/v1/tasks/:id/time
func (h *Handlers) RecordManualTime(c *gin.Context) {
	var in task.ManualTimeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, task.NewValidationError("invalid request body: %v", err))
		return
	}

	entry, err := h.taskService.RecordManualTime(c.Request.Context(), c.Param("id"), actorFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, entry)
}

// UpdateTimeEntry handles PATCH /api/v1/tasks/:id/time/:entryId
func (h *Handlers) UpdateTimeEntry(c *gin.Context) {
	var in task.EntryUpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, task.NewValidationError("invalid request body: %v", err))
		return
	}

	entry, err := h.taskService.UpdateTimeEntry(c.Request.Context(), c.Param("id"), c.Param("entryId"), actorFrom(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, entry)
}

// DeleteTimeEntry handles DELETE /api/v1/tasks/:id/time/:entryId
func (h *Handlers) DeleteTimeEntry(c *gin.Context) {
	if err := h.taskService.DeleteTimeEntry(c.Request.Context(), c.Param("id"), c.Param("entryId"), actorFrom(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListOverdue handles GET /api/v1/tasks/overdue
func (h *Handlers) ListOverdue(c *gin.Context) {
	var query struct {
		DepartmentID string `form:"department_id"`
		AssignedTo   string `form:"assigned_to"`
		Limit        int    `form:"limit"`
		Offset       int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.fail(c, task.NewValidationError("invalid query parameters: %v", err))
		return
	}

	tasks, err := h.taskService.ListOverdue(c.Request.Context(), port.TaskFilter{
		DepartmentID: query.DepartmentID,
		AssignedTo:   query.AssignedTo,
		Limit:        query.Limit,
		Offset:       query.Offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, tasks)
}

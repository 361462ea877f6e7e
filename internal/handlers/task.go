package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/internal/middleware"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/pkg/response"
	"gorm.io/gorm"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(db *gorm.DB) *TaskHandler {
	return &TaskHandler{taskService: services.NewTaskService(db)}
}

// List returns the caller's tasks
// GET /api/tasks
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.taskService.List(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, tasks)
}

// Save creates a task, or updates one when an id is given
// POST /api/tasks
func (h *TaskHandler) Save(c *gin.Context) {
	var req services.SaveTaskRequest
	if !bind(c, &req) {
		return
	}

	task, err := h.taskService.Save(c.Request.Context(), middleware.CurrentIdentity(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, task)
}

// Delete removes one of the caller's tasks
// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		response.BadRequest(c, "invalid task id")
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), middleware.CurrentIdentity(c), id); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "deleted"})
}

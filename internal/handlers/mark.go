package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/internal/middleware"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/pkg/response"
	"gorm.io/gorm"
)

type MarkHandler struct {
	markService *services.MarkService
}

func NewMarkHandler(db *gorm.DB) *MarkHandler {
	return &MarkHandler{markService: services.NewMarkService(db)}
}

// List returns all marks
// GET /api/marks
func (h *MarkHandler) List(c *gin.Context) {
	marks, err := h.markService.List(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, marks)
}

// Create adds a mark (admin only)
// POST /api/marks
func (h *MarkHandler) Create(c *gin.Context) {
	var req services.CreateMarkRequest
	if !bind(c, &req) {
		return
	}

	mark, err := h.markService.Create(c.Request.Context(), middleware.CurrentIdentity(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, mark)
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/middleware"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/pkg/response"
	"gorm.io/gorm"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(db *gorm.DB, cfg *config.Config) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: services.NewDashboardService(
			db,
			services.NewRoomService(db),
			services.NewTaskService(db),
			services.NewSessionService(db, &cfg.Session),
		),
	}
}

// Get returns the caller's dashboard. Reading it consumes the flash message.
// GET /dashboard
func (h *DashboardHandler) Get(c *gin.Context) {
	resp, err := h.dashboardService.Get(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, resp)
}

package services

import (
	"context"
	"strings"

	"github.com/huangang/studyroom/internal/models"
	"github.com/huangang/studyroom/pkg/logger"
	"gorm.io/gorm"
)

type MarkService struct {
	db *gorm.DB
}

func NewMarkService(db *gorm.DB) *MarkService {
	return &MarkService{db: db}
}

type CreateMarkRequest struct {
	Mark          string `json:"mark" form:"mark" validate:"required,max=100"`
	Justification string `json:"justification" form:"justification" validate:"max=65535"`
	InternalRoute string `json:"internal_route" form:"internal_route" validate:"max=255"`
}

func (s *MarkService) List(ctx context.Context, id Identity) ([]models.Mark, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	var marks []models.Mark
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&marks).Error; err != nil {
		return nil, persistenceError("list marks", err)
	}
	return marks, nil
}

// Create is reserved to admins.
func (s *MarkService) Create(ctx context.Context, id Identity, req *CreateMarkRequest) (*models.Mark, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	if !id.IsAdmin() {
		return nil, ErrForbidden
	}

	req.Mark = strings.TrimSpace(req.Mark)
	req.InternalRoute = strings.TrimSpace(req.InternalRoute)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	mark := models.Mark{
		Mark:          req.Mark,
		Justification: req.Justification,
		InternalRoute: req.InternalRoute,
		CreatedBy:     id.UserID,
	}
	if err := s.db.WithContext(ctx).Create(&mark).Error; err != nil {
		return nil, persistenceError("create mark", err)
	}

	logger.Info().Uint("mark_id", mark.ID).Uint("admin_id", id.UserID).Msg("mark created")
	return &mark, nil
}

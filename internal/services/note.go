package services

import (
	"context"
	"errors"
	"strings"

	"github.com/huangang/studyroom/internal/models"
	"gorm.io/gorm"
)

type NoteService struct {
	db *gorm.DB
}

func NewNoteService(db *gorm.DB) *NoteService {
	return &NoteService{db: db}
}

// SaveNoteRequest creates a note when ID is zero and updates the caller's
// note otherwise.
type SaveNoteRequest struct {
	ID       uint   `json:"id" form:"id"`
	Title    string `json:"title" form:"title" validate:"required,max=255"`
	Content  string `json:"content" form:"content" validate:"max=65535"`
	Category string `json:"category" form:"category" validate:"max=50"`
}

func (s *NoteService) List(ctx context.Context, id Identity) ([]models.Note, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	var notes []models.Note
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", id.UserID).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&notes).Error; err != nil {
		return nil, persistenceError("list notes", err)
	}
	return notes, nil
}

func (s *NoteService) Save(ctx context.Context, id Identity, req *SaveNoteRequest) (*models.Note, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.TrimSpace(req.Category)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	if req.ID == 0 {
		note := models.Note{
			UserID:   id.UserID,
			Title:    req.Title,
			Content:  req.Content,
			Category: req.Category,
		}
		if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
			return nil, persistenceError("create note", err)
		}
		return &note, nil
	}

	var note models.Note
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", req.ID, id.UserID).First(&note).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return persistenceError("load note", err)
		}

		note.Title = req.Title
		note.Content = req.Content
		note.Category = req.Category
		if err := tx.Save(&note).Error; err != nil {
			return persistenceError("update note", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// Delete removes one of the caller's notes.
func (s *NoteService) Delete(ctx context.Context, id Identity, noteID uint) error {
	if err := requireIdentity(id); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", noteID, id.UserID).Delete(&models.Note{})
	if res.Error != nil {
		return persistenceError("delete note", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

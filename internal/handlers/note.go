package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/internal/middleware"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/pkg/response"
	"gorm.io/gorm"
)

type NoteHandler struct {
	noteService *services.NoteService
}

func NewNoteHandler(db *gorm.DB) *NoteHandler {
	return &NoteHandler{noteService: services.NewNoteService(db)}
}

// List returns the caller's notes
// GET /api/notes
func (h *NoteHandler) List(c *gin.Context) {
	notes, err := h.noteService.List(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, notes)
}

// Save creates a note, or updates one when an id is given
// POST /api/notes
func (h *NoteHandler) Save(c *gin.Context) {
	var req services.SaveNoteRequest
	if !bind(c, &req) {
		return
	}

	note, err := h.noteService.Save(c.Request.Context(), middleware.CurrentIdentity(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, note)
}

// Delete removes one of the caller's notes
// DELETE /api/notes/:id
func (h *NoteHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		response.BadRequest(c, "invalid note id")
		return
	}

	if err := h.noteService.Delete(c.Request.Context(), middleware.CurrentIdentity(c), id); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "deleted"})
}

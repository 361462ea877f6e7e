package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/middleware"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/pkg/logger"
	"github.com/huangang/studyroom/pkg/response"
	"gorm.io/gorm"
)

type RoomHandler struct {
	roomService    *services.RoomService
	sessionService *services.SessionService
}

func NewRoomHandler(db *gorm.DB, cfg *config.Config) *RoomHandler {
	return &RoomHandler{
		roomService:    services.NewRoomService(db),
		sessionService: services.NewSessionService(db, &cfg.Session),
	}
}

// Create creates a room owned by the caller
// POST /rooms
func (h *RoomHandler) Create(c *gin.Context) {
	var req services.CreateRoomRequest
	if !bind(c, &req) {
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), middleware.CurrentIdentity(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if !wantsJSON(c) {
		redirectToDashboard(c, http.StatusSeeOther)
		return
	}
	response.Created(c, room)
}

// Join seats the caller in a room. Browsers are sent back to the dashboard,
// with the failure reason as a flash message when the join failed.
// GET /rooms/:id/join
func (h *RoomHandler) Join(c *gin.Context) {
	id := middleware.CurrentIdentity(c)

	room, err := h.join(c, id)
	if wantsJSON(c) {
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, room)
		return
	}

	if err != nil {
		if ferr := h.sessionService.SetFlash(c.Request.Context(), id.SessionID, flashMessage(err)); ferr != nil {
			logger.FromContext(c).Error().Err(ferr).Msg("failed to store flash message")
		}
	}
	redirectToDashboard(c, http.StatusFound)
}

// JoinAPI is the CSRF-protected form of Join for API clients
// POST /api/rooms/:id/join
func (h *RoomHandler) JoinAPI(c *gin.Context) {
	room, err := h.join(c, middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, room)
}

func (h *RoomHandler) join(c *gin.Context, id services.Identity) (any, error) {
	roomID, ok := parseID(c)
	if !ok {
		return nil, services.ErrRoomNotFound
	}
	return h.roomService.JoinRoom(c.Request.Context(), id, roomID)
}

// List returns all rooms, newest first
// GET /api/rooms
func (h *RoomHandler) List(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, rooms)
}

// Suggested returns the newest rooms with free seats
// GET /api/rooms/suggested
func (h *RoomHandler) Suggested(c *gin.Context) {
	rooms, err := h.roomService.SuggestedRooms(c.Request.Context(), services.SuggestedRoomsLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, rooms)
}

// GetByID returns a room with its members
// GET /api/rooms/:id
func (h *RoomHandler) GetByID(c *gin.Context) {
	roomID, ok := parseID(c)
	if !ok {
		response.BadRequest(c, "invalid room id")
		return
	}

	room, err := h.roomService.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, room)
}

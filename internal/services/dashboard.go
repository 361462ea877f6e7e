package services

import (
	"context"

	"github.com/huangang/studyroom/internal/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type DashboardService struct {
	db       *gorm.DB
	rooms    *RoomService
	tasks    *TaskService
	sessions *SessionService
}

func NewDashboardService(db *gorm.DB, rooms *RoomService, tasks *TaskService, sessions *SessionService) *DashboardService {
	return &DashboardService{
		db:       db,
		rooms:    rooms,
		tasks:    tasks,
		sessions: sessions,
	}
}

type RoomView struct {
	RoomSummary
	Joined bool `json:"joined"`
	Full   bool `json:"full"`
}

type TaskStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}

type DashboardResponse struct {
	User           *models.User  `json:"user"`
	Tasks          []models.Task `json:"tasks"`
	TaskStats      TaskStats     `json:"task_stats"`
	Rooms          []RoomView    `json:"rooms"`
	SuggestedRooms []RoomView    `json:"suggested_rooms"`
	JoinedRoomIDs  []uint        `json:"joined_room_ids"`
	Flash          string        `json:"flash,omitempty"`
}

// Get builds the caller's dashboard and consumes the pending flash message.
func (s *DashboardService) Get(ctx context.Context, id Identity) (*DashboardResponse, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id.UserID).Error; err != nil {
		return nil, persistenceError("load user", err)
	}

	tasks, err := s.tasks.List(ctx, id)
	if err != nil {
		return nil, err
	}

	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	suggested, err := s.rooms.SuggestedRooms(ctx, SuggestedRoomsLimit)
	if err != nil {
		return nil, err
	}
	joinedIDs, err := s.rooms.JoinedRoomIDs(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	flash := ""
	if id.SessionID != "" {
		if flash, err = s.sessions.PopFlash(ctx, id.SessionID); err != nil {
			return nil, err
		}
	}

	joined := lo.SliceToMap(joinedIDs, func(roomID uint) (uint, bool) { return roomID, true })
	toView := func(r RoomSummary, _ int) RoomView {
		return RoomView{RoomSummary: r, Joined: joined[r.ID], Full: r.IsFull()}
	}

	return &DashboardResponse{
		User:           &user,
		Tasks:          tasks,
		TaskStats:      summarizeTasks(tasks),
		Rooms:          lo.Map(rooms, toView),
		SuggestedRooms: lo.Map(suggested, toView),
		JoinedRoomIDs:  joinedIDs,
		Flash:          flash,
	}, nil
}

func summarizeTasks(tasks []models.Task) TaskStats {
	byStatus := lo.CountValuesBy(tasks, func(t models.Task) string { return t.Status })
	return TaskStats{
		Total:      len(tasks),
		Pending:    byStatus[models.TaskStatusPending],
		InProgress: byStatus[models.TaskStatusInProgress],
		Completed:  byStatus[models.TaskStatusCompleted],
	}
}

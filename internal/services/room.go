package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/huangang/studyroom/internal/models"
	"github.com/huangang/studyroom/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SuggestedRoomsLimit is how many rooms with free seats the dashboard offers.
const SuggestedRoomsLimit = 5

// RoomService is the room membership ledger. current_participants is only
// ever changed inside CreateRoom and JoinRoom, and never passes
// participant_limit.
type RoomService struct {
	db *gorm.DB
}

func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{db: db}
}

type CreateRoomRequest struct {
	Name             string `form:"name" json:"name" validate:"required,max=100"`
	Description      string `form:"description" json:"description" validate:"max=1000"`
	ParticipantLimit int    `form:"participant_limit" json:"participant_limit" validate:"min=2,max=50"`
}

// RoomSummary is a room as listed on the dashboard.
type RoomSummary struct {
	models.Room
	OwnerName string `json:"owner_name"`
}

type RoomMember struct {
	UserID   uint      `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}

type RoomDetail struct {
	RoomSummary
	SeatsLeft int          `json:"seats_left"`
	Members   []RoomMember `json:"members"`
}

// CreateRoom inserts the room, seats the owner and sets the counter to 1 in
// one transaction. A failure at any step leaves no room behind.
func (s *RoomService) CreateRoom(ctx context.Context, owner Identity, req *CreateRoomRequest) (*models.Room, error) {
	if err := requireIdentity(owner); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	room := models.Room{
		Name:             req.Name,
		Description:      req.Description,
		OwnerID:          owner.UserID,
		ParticipantLimit: req.ParticipantLimit,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&room).Error; err != nil {
			return persistenceError("insert room", err)
		}

		seat := models.RoomParticipant{RoomID: room.ID, UserID: owner.UserID}
		if err := tx.Omit(clause.Associations).Create(&seat).Error; err != nil {
			return persistenceError("seat owner", err)
		}

		if err := tx.Model(&models.Room{}).
			Where("id = ?", room.ID).
			Update("current_participants", 1).Error; err != nil {
			return persistenceError("set participant count", err)
		}
		room.CurrentParticipants = 1
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Uint("owner_id", owner.UserID).Str("name", req.Name).Msg("room creation failed")
		return nil, err
	}

	logger.Info().
		Uint("room_id", room.ID).
		Uint("owner_id", owner.UserID).
		Int("participant_limit", room.ParticipantLimit).
		Msg("room created")
	return &room, nil
}

// JoinRoom seats user in the room if a seat is free.
//
// The seat is claimed with a single conditional UPDATE guarded by
// current_participants < participant_limit. The statement takes the row's
// write lock, so concurrent joiners serialize on it and each one re-evaluates
// the guard against the committed count. When the guard fails nothing has
// been written and the room is read under lock only to tell a missing room
// from a full one.
func (s *RoomService) JoinRoom(ctx context.Context, user Identity, roomID uint) (*models.Room, error) {
	if err := requireIdentity(user); err != nil {
		return nil, err
	}
	if roomID == 0 {
		return nil, ErrRoomNotFound
	}

	var room models.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seated int64
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND user_id = ?", roomID, user.UserID).
			Count(&seated).Error; err != nil {
			return persistenceError("check membership", err)
		}
		if seated > 0 {
			return ErrAlreadyMember
		}

		res := tx.Model(&models.Room{}).
			Where("id = ? AND current_participants < participant_limit", roomID).
			Update("current_participants", gorm.Expr("current_participants + ?", 1))
		if res.Error != nil {
			return persistenceError("claim seat", res.Error)
		}

		if res.RowsAffected == 0 {
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, roomID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrRoomNotFound
				}
				return persistenceError("load room", err)
			}
			return ErrCapacityExceeded
		}

		seat := models.RoomParticipant{RoomID: roomID, UserID: user.UserID}
		if err := tx.Omit(clause.Associations).Create(&seat).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyMember
			}
			return persistenceError("insert participant", err)
		}

		if err := tx.First(&room, roomID).Error; err != nil {
			return persistenceError("reload room", err)
		}
		return nil
	})
	if err != nil {
		event := logger.Warn()
		if errors.Is(err, ErrPersistence) {
			event = logger.Error()
		}
		event.Err(err).Uint("room_id", roomID).Uint("user_id", user.UserID).Msg("join room failed")
		return nil, err
	}

	logger.Info().
		Uint("room_id", roomID).
		Uint("user_id", user.UserID).
		Int("current_participants", room.CurrentParticipants).
		Int("participant_limit", room.ParticipantLimit).
		Msg("room joined")
	return &room, nil
}

func (s *RoomService) summaries(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.Room{}).
		Select("rooms.*, users.username AS owner_name").
		Joins("JOIN users ON users.id = rooms.owner_id").
		Order("rooms.created_at DESC").
		Order("rooms.id DESC")
}

// ListRooms returns every room, newest first.
func (s *RoomService) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	var rooms []RoomSummary
	if err := s.summaries(ctx).Scan(&rooms).Error; err != nil {
		return nil, persistenceError("list rooms", err)
	}
	return rooms, nil
}

// SuggestedRooms returns up to limit of the newest rooms that still have a free seat.
func (s *RoomService) SuggestedRooms(ctx context.Context, limit int) ([]RoomSummary, error) {
	if limit <= 0 {
		limit = SuggestedRoomsLimit
	}

	var rooms []RoomSummary
	if err := s.summaries(ctx).
		Where("rooms.current_participants < rooms.participant_limit").
		Limit(limit).
		Scan(&rooms).Error; err != nil {
		return nil, persistenceError("list suggested rooms", err)
	}
	return rooms, nil
}

// GetRoom returns the room and its members in the order they joined.
func (s *RoomService) GetRoom(ctx context.Context, roomID uint) (*RoomDetail, error) {
	var summary RoomSummary
	res := s.summaries(ctx).Where("rooms.id = ?", roomID).Limit(1).Scan(&summary)
	if res.Error != nil {
		return nil, persistenceError("get room", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrRoomNotFound
	}

	var members []RoomMember
	if err := s.db.WithContext(ctx).
		Model(&models.RoomParticipant{}).
		Select("room_participants.user_id, users.username, room_participants.joined_at").
		Joins("JOIN users ON users.id = room_participants.user_id").
		Where("room_participants.room_id = ?", roomID).
		Order("room_participants.id ASC").
		Scan(&members).Error; err != nil {
		return nil, persistenceError("list members", err)
	}

	return &RoomDetail{
		RoomSummary: summary,
		SeatsLeft:   summary.SeatsLeft(),
		Members:     members,
	}, nil
}

// JoinedRoomIDs returns the rooms userID holds a seat in.
func (s *RoomService) JoinedRoomIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).
		Model(&models.RoomParticipant{}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Pluck("room_id", &ids).Error; err != nil {
		return nil, persistenceError("list joined rooms", err)
	}
	return ids, nil
}

// CounterDrift is a room whose stored counter disagrees with its membership rows.
type CounterDrift struct {
	RoomID           uint   `json:"room_id"`
	Name             string `json:"name"`
	Recorded         int    `json:"recorded"`
	Actual           int    `json:"actual"`
	ParticipantLimit int    `json:"participant_limit"`
}

// FindCounterDrift lists rooms whose current_participants differs from the
// number of membership rows.
func (s *RoomService) FindCounterDrift(ctx context.Context) ([]CounterDrift, error) {
	var drift []CounterDrift
	err := s.db.WithContext(ctx).
		Model(&models.Room{}).
		Select("rooms.id AS room_id, rooms.name, rooms.current_participants AS recorded, " +
			"rooms.participant_limit, COUNT(room_participants.id) AS actual").
		Joins("LEFT JOIN room_participants ON room_participants.room_id = rooms.id").
		Group("rooms.id, rooms.name, rooms.current_participants, rooms.participant_limit").
		Having("COUNT(room_participants.id) <> rooms.current_participants").
		Order("rooms.id ASC").
		Scan(&drift).Error
	if err != nil {
		return nil, persistenceError("find counter drift", err)
	}
	return drift, nil
}

// RepairCounter recounts the membership rows of roomID under the row lock
// and stores the count, capped at participant_limit.
func (s *RoomService) RepairCounter(ctx context.Context, roomID uint) (int, error) {
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return persistenceError("lock room", err)
		}

		var members int64
		if err := tx.Model(&models.RoomParticipant{}).Where("room_id = ?", roomID).Count(&members).Error; err != nil {
			return persistenceError("count members", err)
		}

		count = int(members)
		if count > room.ParticipantLimit {
			logger.Warn().
				Uint("room_id", roomID).
				Int("members", count).
				Int("participant_limit", room.ParticipantLimit).
				Msg("room has more members than seats, capping counter")
			count = room.ParticipantLimit
		}

		if err := tx.Model(&room).Update("current_participants", count).Error; err != nil {
			return persistenceError("store counter", err)
		}
		return nil
	})
	return count, err
}

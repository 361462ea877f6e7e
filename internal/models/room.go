package models

import "time"

const (
	MinParticipantLimit = 2
	MaxParticipantLimit = 50
)

// Room is a study room with a bounded number of seats. The owner occupies
// one seat from the moment the room is created.
type Room struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Name                string    `gorm:"size:100;not null" json:"name"`
	Description         string    `gorm:"type:text" json:"description"`
	OwnerID             uint      `gorm:"index;not null" json:"owner_id"`
	Owner               *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	ParticipantLimit    int       `gorm:"not null;check:chk_rooms_limit,participant_limit BETWEEN 2 AND 50" json:"participant_limit"`
	CurrentParticipants int       `gorm:"not null;default:0;check:chk_rooms_capacity,current_participants <= participant_limit" json:"current_participants"`
	CreatedAt           time.Time `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (Room) TableName() string { return "rooms" }

// IsFull reports whether no seat is left.
func (r *Room) IsFull() bool {
	return r.CurrentParticipants >= r.ParticipantLimit
}

// SeatsLeft never goes below zero.
func (r *Room) SeatsLeft() int {
	if r.IsFull() {
		return 0
	}
	return r.ParticipantLimit - r.CurrentParticipants
}

// RoomParticipant records that a user holds a seat in a room.
type RoomParticipant struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	RoomID   uint      `gorm:"uniqueIndex:idx_room_user;not null" json:"room_id"`
	UserID   uint      `gorm:"uniqueIndex:idx_room_user;index;not null" json:"user_id"`
	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (RoomParticipant) TableName() string { return "room_participants" }

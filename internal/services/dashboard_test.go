package services

import (
	"context"
	"testing"

	"github.com/huangang/studyroom/internal/models"
	"github.com/stretchr/testify/require"
)

func TestDashboardService_Get(t *testing.T) {
	req := require.New(t)
	db := setupTestDB(t)
	rooms := NewRoomService(db)
	tasks := NewTaskService(db)
	sessions := NewSessionService(db, testSessionConfig())
	svc := NewDashboardService(db, rooms, tasks, sessions)

	owner := createTestUser(t, db, "owner", models.RoleUser)
	viewer := createTestUser(t, db, "viewer", models.RoleUser)

	joined, err := rooms.CreateRoom(context.Background(), identityOf(owner), &CreateRoomRequest{Name: "joined", ParticipantLimit: 3})
	req.NoError(err)
	_, err = rooms.JoinRoom(context.Background(), identityOf(viewer), joined.ID)
	req.NoError(err)
	full, err := rooms.CreateRoom(context.Background(), identityOf(owner), &CreateRoomRequest{Name: "full", ParticipantLimit: 2})
	req.NoError(err)
	fillRoom(t, db, rooms, full.ID, 2)

	_, err = tasks.Save(context.Background(), identityOf(viewer), &SaveTaskRequest{Title: "a"})
	req.NoError(err)
	_, err = tasks.Save(context.Background(), identityOf(viewer), &SaveTaskRequest{Title: "b", Status: models.TaskStatusCompleted, Progress: 100})
	req.NoError(err)

	issued, err := sessions.Create(context.Background(), viewer, "", "")
	req.NoError(err)
	req.NoError(sessions.SetFlash(context.Background(), issued.Session.ID, "room is full"))

	id := identityOf(viewer)
	id.SessionID = issued.Session.ID

	dash, err := svc.Get(context.Background(), id)
	req.NoError(err)
	req.Equal(viewer.ID, dash.User.ID)
	req.Len(dash.Tasks, 2)
	req.Equal(TaskStats{Total: 2, Pending: 1, Completed: 1}, dash.TaskStats)
	req.Equal("room is full", dash.Flash)
	req.Equal([]uint{joined.ID}, dash.JoinedRoomIDs)

	req.Len(dash.Rooms, 2)
	req.Equal("full", dash.Rooms[0].Name)
	req.True(dash.Rooms[0].Full)
	req.False(dash.Rooms[0].Joined)
	req.Equal("joined", dash.Rooms[1].Name)
	req.True(dash.Rooms[1].Joined)
	req.Equal("owner", dash.Rooms[1].OwnerName)

	req.Len(dash.SuggestedRooms, 1)
	req.Equal(joined.ID, dash.SuggestedRooms[0].ID)

	again, err := svc.Get(context.Background(), id)
	req.NoError(err)
	req.Empty(again.Flash, "flash is shown once")
}

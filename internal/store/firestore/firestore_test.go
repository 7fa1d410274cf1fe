package firestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arnold/taskflow-api/internal/id"
	"github.com/arnold/taskflow-api/internal/kanban"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(status.Error(codes.NotFound, "no doc")), store.ErrNotFound)
	assert.ErrorIs(t, mapErr(status.Error(codes.PermissionDenied, "rules")), store.ErrPermissionDenied)
	other := errors.New("boom")
	assert.Equal(t, other, mapErr(other))
}

func TestBoardUpdates(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	title := "T"
	data := kanban.NewBoardData()

	ups := boardUpdates(store.BoardPatch{Title: &title, Data: &data, AddMemberID: "u2"}, at)
	paths := make([]string, len(ups))
	for i, u := range ups {
		paths[i] = u.Path
	}
	assert.Equal(t, []string{"title", "data", "memberIds", "updatedAt"}, paths)
	assert.Equal(t, at, ups[3].Value)
}

func TestProfileFields(t *testing.T) {
	name, empty := "Ada", " "
	fields := profileFields(models.ProfilePatch{FirstName: &name, Telegram: &empty})

	assert.Equal(t, "Ada", fields["firstName"])
	assert.Equal(t, firestore.Delete, fields["telegram"])
	assert.NotContains(t, fields, "lastName")
	assert.Contains(t, fields, "updatedAt")
}

// newEmulatorStore talks to the Firestore emulator; the client library
// picks FIRESTORE_EMULATOR_HOST up by itself.
func newEmulatorStore(t *testing.T) *store.Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	s, err := New(context.Background(), "demo-taskflow")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEmulator_BoardLifecycle(t *testing.T) {
	s := newEmulatorStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	code, err := id.InviteCode()
	require.NoError(t, err)
	b := &models.Board{Title: "Emulated", OwnerID: "u1", InviteCode: code, Data: kanban.NewBoardData()}
	require.NoError(t, s.Boards.Create(ctx, b))

	ch, err := s.Boards.Subscribe(ctx, b.ID)
	require.NoError(t, err)
	first := <-ch
	require.NoError(t, first.Err)
	assert.Equal(t, kanban.Hash(b.Data), kanban.Hash(first.Board.Data))

	data, _, err := kanban.AddCard(b.Data, "col-1", "From emulator", "")
	require.NoError(t, err)
	require.NoError(t, s.Boards.Update(ctx, b.ID, store.BoardPatch{Data: &data, AddMemberID: "u2"}))

	next := <-ch
	require.NoError(t, next.Err)
	assert.Equal(t, kanban.Hash(data), kanban.Hash(next.Board.Data))
	assert.ElementsMatch(t, []string{"u1", "u2"}, next.Board.MemberIDs)

	found, err := s.Boards.FindByInviteCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, b.ID, found.ID)

	require.NoError(t, s.Boards.Delete(ctx, b.ID))
	gone := <-ch
	assert.ErrorIs(t, gone.Err, store.ErrNotFound)
	assert.ErrorIs(t, s.Boards.Delete(ctx, b.ID), store.ErrNotFound)
}

func TestEmulator_Notifications(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	uid, err := id.Generate("user")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Notifications.Add(ctx, &models.Notification{UserID: uid, Type: models.NotificationComment, Title: "c"}))
	}
	n, err := s.Notifications.MarkAllRead(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

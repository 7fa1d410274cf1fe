package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnold/taskflow-api/internal/boardsync"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/store"
)

func joinRoom(h *Hub, boardID, userID, clientID string) *connection {
	c := newConnection(userID, clientID)
	h.register(boardID, c)
	return c
}

func next(t *testing.T, c *connection) WSEvent {
	t.Helper()
	select {
	case msg := <-c.send:
		var ev WSEvent
		require.NoError(t, json.Unmarshal(msg, &ev))
		return ev
	default:
		t.Fatalf("no message queued for %s", c.userID)
		return WSEvent{}
	}
}

func assertClosed(t *testing.T, c *connection) {
	t.Helper()
	select {
	case <-c.done:
	default:
		t.Fatalf("connection for %s is still open", c.userID)
	}
}

func testBoard(members ...string) *models.Board {
	return &models.Board{ID: "board-1", OwnerID: members[0], MemberIDs: members}
}

func TestHub_BoardChanged(t *testing.T) {
	h := NewHub()
	aliceTab1 := joinRoom(h, "board-1", "alice", "tab-1")
	aliceTab2 := joinRoom(h, "board-1", "alice", "tab-2")
	bob := joinRoom(h, "board-1", "bob", "")
	other := joinRoom(h, "board-2", "alice", "tab-3")
	assert.Equal(t, 3, h.Connections("board-1"))

	h.BoardChanged(boardsync.Change{
		BoardID:  "board-1",
		Board:    testBoard("alice", "bob"),
		Origin:   boardsync.OriginLocal,
		Actor:    "alice",
		ClientID: "tab-1",
	})

	assert.Empty(t, aliceTab1.send, "local changes are not echoed to the client that made them")
	assert.Empty(t, other.send)
	ev := next(t, aliceTab2)
	assert.Equal(t, EventBoardSnapshot, ev.Type, "the same user's other tabs see the edit")
	assert.Equal(t, "tab-1", ev.ClientID)
	ev = next(t, bob)
	assert.Equal(t, EventBoardSnapshot, ev.Type)
	assert.Equal(t, "alice", ev.UserID)
	assert.Equal(t, string(boardsync.OriginLocal), ev.Origin)

	h.BoardChanged(boardsync.Change{
		BoardID: "board-1",
		Board:   testBoard("alice", "bob"),
		Origin:  boardsync.OriginRemote,
	})
	for _, c := range []*connection{aliceTab1, aliceTab2, bob} {
		assert.Equal(t, EventBoardSnapshot, next(t, c).Type)
	}
}

func TestHub_LocalChangeWithoutClientIDReachesEveryone(t *testing.T) {
	h := NewHub()
	alice := joinRoom(h, "board-1", "alice", "")
	bob := joinRoom(h, "board-1", "bob", "")

	h.BoardChanged(boardsync.Change{
		BoardID: "board-1",
		Board:   testBoard("alice", "bob"),
		Origin:  boardsync.OriginLocal,
		Actor:   "alice",
	})
	assert.Equal(t, EventBoardSnapshot, next(t, alice).Type)
	assert.Equal(t, EventBoardSnapshot, next(t, bob).Type)
}

func TestNewConnection_DefaultsClientID(t *testing.T) {
	c := newConnection("alice", "")
	assert.Equal(t, c.id, c.clientID)

	var ev WSEvent
	require.NoError(t, json.Unmarshal(snapshotMessage("board-1", c.clientID, testBoard("alice")), &ev))
	assert.Equal(t, c.clientID, ev.ClientID)
	assert.Equal(t, EventBoardSnapshot, ev.Type)
}

func TestHub_BoardChangedDropsFormerMembers(t *testing.T) {
	h := NewHub()
	alice := joinRoom(h, "board-1", "alice", "")
	bob := joinRoom(h, "board-1", "bob", "")

	h.BoardChanged(boardsync.Change{
		BoardID: "board-1",
		Board:   testBoard("alice"),
		Origin:  boardsync.OriginRemote,
	})

	assertClosed(t, bob)
	assert.Empty(t, bob.send)
	assert.Equal(t, EventBoardSnapshot, next(t, alice).Type)
}

func TestHub_SyncError(t *testing.T) {
	h := NewHub()
	alice := joinRoom(h, "board-1", "alice", "")

	h.SyncError("board-1", fmt.Errorf("write board: %w", store.ErrPermissionDenied))
	ev := next(t, alice)
	assert.Equal(t, EventSyncError, ev.Type)
	data, ok := ev.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["permissionDenied"])

	h.SyncError("board-1", errors.New("deadline exceeded"))
	data = next(t, alice).Data.(map[string]any)
	assert.Equal(t, false, data["permissionDenied"])
}

func TestHub_BoardDeleted(t *testing.T) {
	h := NewHub()
	alice := joinRoom(h, "board-1", "alice", "")
	bob := joinRoom(h, "board-1", "bob", "")

	h.BoardDeleted("board-1")
	for _, c := range []*connection{alice, bob} {
		assert.Equal(t, EventBoardDeleted, next(t, c).Type)
		assertClosed(t, c)
	}

	h.unregister("board-1", alice)
	h.unregister("board-1", bob)
	assert.Zero(t, h.Connections("board-1"))
}

func TestConnection_FullBufferCloses(t *testing.T) {
	c := newConnection("slow", "")
	for i := 0; i < sendBuffer; i++ {
		c.enqueue([]byte("{}"))
	}
	select {
	case <-c.done:
		t.Fatal("closed before the buffer was full")
	default:
	}

	c.enqueue([]byte("{}"))
	assertClosed(t, c)
	assert.Len(t, c.send, sendBuffer)

	// Closed connections ignore further messages and close is idempotent.
	c.enqueue([]byte("{}"))
	c.close()
}

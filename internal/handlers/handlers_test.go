package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/arnold/taskflow-api/internal/boardsync"
	"github.com/arnold/taskflow-api/internal/database"
	"github.com/arnold/taskflow-api/internal/handlers"
	"github.com/arnold/taskflow-api/internal/middleware"
	"github.com/arnold/taskflow-api/internal/models"
	"github.com/arnold/taskflow-api/internal/routes"
	"github.com/arnold/taskflow-api/internal/services"
	"github.com/arnold/taskflow-api/internal/store"
	"github.com/arnold/taskflow-api/internal/store/feed"
	"github.com/arnold/taskflow-api/internal/store/gormstore"
)

type testEnv struct {
	app      *fiber.App
	store    *store.Store
	auth     *middleware.Authenticator
	recorder *services.Recorder
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Connect(":memory:", logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	st := gormstore.New(db, feed.NewLocal())

	hub := handlers.NewHub()
	sessions := boardsync.NewManager(st.Boards, boardsync.Options{
		Settle:   20 * time.Millisecond,
		Notifier: hub,
	}, time.Hour)
	recorder := services.NewRecorder(st, nil)
	auth := middleware.NewAuthenticator("test-secret", nil)

	app := fiber.New()
	routes.Setup(app, handlers.New(st, sessions, recorder, hub), auth, prometheus.NewRegistry())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sessions.Close(ctx)
		recorder.Wait()
		_ = st.Close()
	})
	return &testEnv{app: app, store: st, auth: auth, recorder: recorder}
}

type response struct {
	status int
	header map[string]string
	body   []byte
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

func (r response) errorMessage(t *testing.T) string {
	t.Helper()
	var m map[string]string
	r.decode(t, &m)
	return m["error"]
}

func (e *testEnv) do(t *testing.T, user, method, path string, body any) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := e.auth.GenerateToken(user, user+"@example.com")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	header := map[string]string{}
	for k := range resp.Header {
		header[k] = resp.Header.Get(k)
	}
	return response{status: resp.StatusCode, header: header, body: data}
}

func (e *testEnv) createBoard(t *testing.T, owner, title string) models.Board {
	t.Helper()
	resp := e.do(t, owner, "POST", "/api/boards", map[string]string{"title": title})
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.body))
	var b models.Board
	resp.decode(t, &b)
	return b
}

func (e *testEnv) createCard(t *testing.T, user, boardID, columnID, content string) models.Card {
	t.Helper()
	resp := e.do(t, user, "POST", "/api/boards/"+boardID+"/columns/"+columnID+"/cards", map[string]string{"content": content})
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.body))
	var c models.Card
	resp.decode(t, &c)
	return c
}

func (e *testEnv) join(t *testing.T, user string, b models.Board) {
	t.Helper()
	resp := e.do(t, user, "POST", "/api/invites/"+b.InviteCode+"/join", nil)
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
}

func (e *testEnv) activities(t *testing.T, user, boardID string) []models.Activity {
	t.Helper()
	e.recorder.Wait()
	resp := e.do(t, user, "GET", "/api/boards/"+boardID+"/activity", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var out struct {
		Activities []models.Activity `json:"activities"`
	}
	resp.decode(t, &out)
	return out.Activities
}

func activityTypes(as []models.Activity) []models.ActivityType {
	out := make([]models.ActivityType, len(as))
	for i, a := range as {
		out[i] = a.Type
	}
	return out
}

func TestRequiresAuth(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, "", "GET", "/api/boards", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	assert.Equal(t, "Missing authorization header", resp.errorMessage(t))

	resp = e.do(t, "", "GET", "/healthz", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
}

func TestCreateAndListBoards(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "  Sprint 1  ")
	assert.Equal(t, "Sprint 1", b.Title)
	assert.Equal(t, []string{"owner"}, b.MemberIDs)
	assert.Len(t, b.InviteCode, 16)
	assert.Equal(t, []string{"col-1", "col-2", "col-3"}, b.Data.ColumnOrder)
	assert.Len(t, b.Labels, 4)

	resp := e.do(t, "owner", "POST", "/api/boards", map[string]string{"title": ""})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = e.do(t, "owner", "GET", "/api/boards", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var list []models.BoardSummary
	resp.decode(t, &list)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, 1, list[0].MemberCount)

	resp = e.do(t, "stranger", "GET", "/api/boards/"+b.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status, "non-members cannot see the board")
}

func TestArchivedBoardsAreHidden(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "Old")
	resp := e.do(t, "owner", "PUT", "/api/boards/"+b.ID, map[string]any{"isArchived": true})
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))

	var list []models.BoardSummary
	e.do(t, "owner", "GET", "/api/boards", nil).decode(t, &list)
	assert.Empty(t, list)
	e.do(t, "owner", "GET", "/api/boards?archived=true", nil).decode(t, &list)
	assert.Len(t, list, 1)
}

func TestJoinBoard(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "Team")

	resp := e.do(t, "member", "POST", "/api/invites/"+strings.ToLower(b.InviteCode)+"/join", nil)
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
	var joined models.Board
	resp.decode(t, &joined)
	assert.ElementsMatch(t, []string{"owner", "member"}, joined.MemberIDs)

	resp = e.do(t, "member", "POST", "/api/invites/"+b.InviteCode+"/join", nil)
	assert.Equal(t, fiber.StatusConflict, resp.status)

	resp = e.do(t, "other", "POST", "/api/invites/SHORT/join", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = e.do(t, "other", "POST", "/api/invites/ZZZZZZZZZZZZZZZZ/join", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)

	assert.Contains(t, activityTypes(e.activities(t, "owner", b.ID)), models.ActivityMemberJoined)
}

func TestRegenerateInviteCode(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "Team")
	e.join(t, "member", b)

	resp := e.do(t, "member", "POST", "/api/boards/"+b.ID+"/invite-code", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status, "members may not invite by default")

	resp = e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/invite-code", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var out map[string]string
	resp.decode(t, &out)
	assert.NotEqual(t, b.InviteCode, out["inviteCode"])

	resp = e.do(t, "late", "POST", "/api/invites/"+b.InviteCode+"/join", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status, "old code is invalid")
	resp = e.do(t, "late", "POST", "/api/invites/"+out["inviteCode"]+"/join", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
}

func TestMembers(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "Team")
	e.join(t, "member", b)
	resp := e.do(t, "member", "PUT", "/api/me", map[string]string{"firstName": "Grace", "lastName": "Hopper"})
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))

	var members []models.MemberInfo
	e.do(t, "owner", "GET", "/api/boards/"+b.ID+"/members", nil).decode(t, &members)
	require.Len(t, members, 2)
	assert.Equal(t, models.MemberInfo{ID: "owner", DisplayName: "owner", Role: models.RoleOwner}, members[0])
	assert.Equal(t, "Hopper Grace", members[1].DisplayName)
	assert.Equal(t, models.RoleMember, members[1].Role)

	resp = e.do(t, "member", "DELETE", "/api/boards/"+b.ID+"/members/owner", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)
	resp = e.do(t, "owner", "DELETE", "/api/boards/"+b.ID+"/members/owner", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	resp = e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/leave", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = e.do(t, "owner", "DELETE", "/api/boards/"+b.ID+"/members/member", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	resp = e.do(t, "member", "GET", "/api/boards/"+b.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)
}

func TestCardLifecycle(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "Sprint")
	card := e.createCard(t, "owner", b.ID, "col-1", "Write docs")
	assert.NotEmpty(t, card.ID)

	resp := e.do(t, "owner", "PUT", "/api/boards/"+b.ID+"/cards/"+card.ID, map[string]string{"description": "all of them"})
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))

	move := map[string]any{
		"type": "card", "cardId": card.ID,
		"sourceColumnId": "col-1", "sourceIndex": 0,
		"destColumnId": "col-2", "destIndex": 0,
	}
	resp = e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/moves", move)
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
	var data models.BoardData
	resp.decode(t, &data)
	assert.Empty(t, data.Columns["col-1"].CardIDs)
	assert.Equal(t, []string{card.ID}, data.Columns["col-2"].CardIDs)

	// Dropping a card where it already is changes nothing and logs nothing.
	move["sourceColumnId"] = "col-2"
	resp = e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/moves", move)
	require.Equal(t, fiber.StatusOK, resp.status)

	resp = e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/moves", map[string]any{
		"type": "card", "sourceColumnId": "col-2", "sourceIndex": 5, "destColumnId": "col-1", "destIndex": 0,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/cards/"+card.ID+"/complete", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var done models.Card
	resp.decode(t, &done)
	assert.True(t, done.Completed)

	resp = e.do(t, "owner", "PUT", "/api/boards/"+b.ID+"/cards/"+card.ID+"/priority", map[string]string{"priority": "urgent"})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	resp = e.do(t, "owner", "PUT", "/api/boards/"+b.ID+"/cards/"+card.ID+"/priority", map[string]string{"priority": "high"})
	assert.Equal(t, fiber.StatusOK, resp.status)

	resp = e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/cards/"+card.ID+"/labels/label-1", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
	resp = e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/cards/"+card.ID+"/labels/label-404", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)

	resp = e.do(t, "owner", "DELETE", "/api/boards/"+b.ID+"/cards/"+card.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	resp = e.do(t, "owner", "DELETE", "/api/boards/"+b.ID+"/cards/"+card.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)

	types := activityTypes(e.activities(t, "owner", b.ID))
	assert.ElementsMatch(t, []models.ActivityType{
		models.ActivityCardCreated,
		models.ActivityCardUpdated,
		models.ActivityCardMoved,
		models.ActivityCardCompleted,
		models.ActivityPrioritySet,
		models.ActivityLabelAdded,
		models.ActivityCardDeleted,
	}, types)
}

func TestCardChangesArePersisted(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "Sprint")
	card := e.createCard(t, "owner", b.ID, "col-1", "Persist me")

	assert.Eventually(t, func() bool {
		stored, err := e.store.Boards.Get(context.Background(), b.ID)
		if err != nil {
			return false
		}
		_, ok := stored.Data.Cards[card.ID]
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAssignmentAndCommentNotifications(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "Team")
	e.join(t, "member", b)
	card := e.createCard(t, "owner", b.ID, "col-1", "Review PR")

	resp := e.do(t, "owner", "PUT", "/api/boards/"+b.ID+"/cards/"+card.ID+"/assignee", map[string]string{"userId": "stranger"})
	assert.Equal(t, fiber.StatusBadRequest, resp.status, "assignees must be members")

	resp = e.do(t, "owner", "PUT", "/api/boards/"+b.ID+"/cards/"+card.ID+"/assignee", map[string]string{"userId": "member"})
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
	var assigned models.Card
	resp.decode(t, &assigned)
	assert.Equal(t, "member", assigned.AssignedTo)

	// The assignee commenting on their own card notifies nobody.
	resp = e.do(t, "member", "POST", "/api/boards/"+b.ID+"/cards/"+card.ID+"/comments", map[string]string{"text": "on it"})
	require.Equal(t, fiber.StatusCreated, resp.status)
	var own models.Comment
	resp.decode(t, &own)

	resp = e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/cards/"+card.ID+"/comments", map[string]string{"text": "thanks"})
	require.Equal(t, fiber.StatusCreated, resp.status)

	due := time.Now().Add(48 * time.Hour).UTC()
	resp = e.do(t, "owner", "PUT", "/api/boards/"+b.ID+"/cards/"+card.ID+"/due-date", map[string]any{"dueDate": due})
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))

	resp = e.do(t, "owner", "DELETE", "/api/boards/"+b.ID+"/cards/"+card.ID+"/comments/"+own.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status, "only the author deletes a comment")
	resp = e.do(t, "member", "DELETE", "/api/boards/"+b.ID+"/cards/"+card.ID+"/comments/"+own.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.status)

	e.recorder.Wait()
	var out struct {
		Notifications []models.Notification `json:"notifications"`
		Unread        int                   `json:"unread"`
	}
	e.do(t, "member", "GET", "/api/notifications", nil).decode(t, &out)
	require.Len(t, out.Notifications, 3)
	assert.Equal(t, 3, out.Unread)
	types := []models.NotificationType{}
	for _, n := range out.Notifications {
		types = append(types, n.Type)
		assert.Equal(t, "owner", n.AuthorID)
		assert.Equal(t, "/board/"+b.ID+"#card-"+card.ID, n.Link)
	}
	assert.ElementsMatch(t, []models.NotificationType{
		models.NotificationAssignment, models.NotificationComment, models.NotificationDeadline,
	}, types)

	var ownerOut struct {
		Notifications []models.Notification `json:"notifications"`
	}
	e.do(t, "owner", "GET", "/api/notifications", nil).decode(t, &ownerOut)
	assert.Empty(t, ownerOut.Notifications)

	resp = e.do(t, "owner", "PUT", "/api/notifications/"+out.Notifications[0].ID+"/read", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status, "cannot read someone else's notification")
	resp = e.do(t, "member", "PUT", "/api/notifications/"+out.Notifications[0].ID+"/read", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)

	var all map[string]any
	e.do(t, "member", "POST", "/api/notifications/read-all", nil).decode(t, &all)
	assert.EqualValues(t, 2, all["updated"])
}

func TestEditPermission(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "Locked")
	e.join(t, "member", b)
	card := e.createCard(t, "member", b.ID, "col-1", "Allowed by default")

	resp := e.do(t, "member", "PUT", "/api/boards/"+b.ID, map[string]any{"title": "Mine now"})
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = e.do(t, "owner", "PUT", "/api/boards/"+b.ID, map[string]any{
		"settings": map[string]bool{"allowMembersToEdit": false},
	})
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))

	resp = e.do(t, "member", "POST", "/api/boards/"+b.ID+"/columns/col-1/cards", map[string]string{"content": "Denied"})
	assert.Equal(t, fiber.StatusForbidden, resp.status)
	resp = e.do(t, "member", "POST", "/api/boards/"+b.ID+"/columns", map[string]string{"title": "Denied"})
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = e.do(t, "member", "POST", "/api/boards/"+b.ID+"/cards/"+card.ID+"/comments", map[string]string{"text": "still allowed"})
	assert.Equal(t, fiber.StatusCreated, resp.status)
}

func TestColumnsAndChecklists(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "Sprint")

	resp := e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/columns", map[string]string{"title": "Review"})
	require.Equal(t, fiber.StatusCreated, resp.status)
	var col models.Column
	resp.decode(t, &col)

	resp = e.do(t, "owner", "PUT", "/api/boards/"+b.ID+"/columns/"+col.ID, map[string]string{"title": "QA"})
	require.Equal(t, fiber.StatusOK, resp.status)
	var renamed models.Column
	resp.decode(t, &renamed)
	assert.Equal(t, "QA", renamed.Title)

	resp = e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/moves", map[string]any{
		"type": "column", "columnId": col.ID, "sourceIndex": 3, "destIndex": 0,
	})
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
	var data models.BoardData
	resp.decode(t, &data)
	assert.Equal(t, col.ID, data.ColumnOrder[0])

	card := e.createCard(t, "owner", b.ID, col.ID, "Ship")
	resp = e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/cards/"+card.ID+"/checklists", map[string]string{})
	require.Equal(t, fiber.StatusCreated, resp.status)
	var cl models.Checklist
	resp.decode(t, &cl)
	assert.Equal(t, "New checklist", cl.Title)

	base := "/api/boards/" + b.ID + "/cards/" + card.ID + "/checklists/" + cl.ID
	resp = e.do(t, "owner", "POST", base+"/items", map[string]string{"text": "Tag release"})
	require.Equal(t, fiber.StatusCreated, resp.status)
	var item models.ChecklistItem
	resp.decode(t, &item)

	resp = e.do(t, "owner", "POST", base+"/items/"+item.ID+"/toggle", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	resp.decode(t, &item)
	assert.True(t, item.Completed)

	resp = e.do(t, "owner", "DELETE", base+"/items/"+item.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
	resp = e.do(t, "owner", "DELETE", base, nil)
	assert.Equal(t, fiber.StatusOK, resp.status)

	resp = e.do(t, "owner", "DELETE", "/api/boards/"+b.ID+"/columns/"+col.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var after models.Board
	e.do(t, "owner", "GET", "/api/boards/"+b.ID, nil).decode(t, &after)
	assert.NotContains(t, after.Data.Cards, card.ID, "cards go with their column")

	types := activityTypes(e.activities(t, "owner", b.ID))
	assert.Contains(t, types, models.ActivityColumnCreated)
	assert.Contains(t, types, models.ActivityChecklistAdded)
	assert.Contains(t, types, models.ActivityChecklistItemCompleted)
	assert.Contains(t, types, models.ActivityColumnDeleted)
}

func TestFilterAndExport(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "Q3 Plan!")
	e.createCard(t, "owner", b.ID, "col-1", "Write docs")
	e.createCard(t, "owner", b.ID, "col-2", "Fix login bug")

	resp := e.do(t, "owner", "GET", "/api/boards/"+b.ID+"/cards?q=DOCS", nil)
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
	var cols []struct {
		Column models.Column `json:"column"`
		Cards  []models.Card `json:"cards"`
	}
	resp.decode(t, &cols)
	require.Len(t, cols, 3)
	assert.Len(t, cols[0].Cards, 1)
	assert.Empty(t, cols[1].Cards)

	resp = e.do(t, "owner", "GET", "/api/boards/"+b.ID+"/cards?due=someday", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	resp = e.do(t, "owner", "GET", "/api/boards/"+b.ID+"/cards?due=today&tz=Nowhere/City", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = e.do(t, "owner", "GET", "/api/boards/"+b.ID+"/export", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Contains(t, resp.header["Content-Disposition"], "Q3_Plan__export.json")
	var exp struct {
		Title   string `json:"title"`
		Columns []struct {
			Title string `json:"title"`
			Cards []any  `json:"cards"`
		} `json:"columns"`
	}
	resp.decode(t, &exp)
	assert.Equal(t, "Q3 Plan!", exp.Title)
	require.Len(t, exp.Columns, 3)
	assert.Len(t, exp.Columns[0].Cards, 1)
}

func TestLabels(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "Sprint")

	resp := e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/labels", map[string]string{"name": "Bug", "color": "not-a-color"})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = e.do(t, "owner", "POST", "/api/boards/"+b.ID+"/labels", map[string]string{"name": "Bug", "color": "#ff0000"})
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.body))
	var label models.Label
	resp.decode(t, &label)

	var after models.Board
	e.do(t, "owner", "GET", "/api/boards/"+b.ID, nil).decode(t, &after)
	assert.Len(t, after.Labels, 5)
	assert.Contains(t, after.Labels, label)
}

func TestProfile(t *testing.T) {
	e := newEnv(t)

	var me struct {
		Profile     models.UserProfile `json:"profile"`
		DisplayName string             `json:"displayName"`
	}
	resp := e.do(t, "user-with-a-long-id", "GET", "/api/me", nil)
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
	resp.decode(t, &me)
	assert.Equal(t, "user-with-a-long-id@example.com", me.Profile.Email)
	assert.Equal(t, "user-wit...", me.DisplayName)

	resp = e.do(t, "user-with-a-long-id", "PUT", "/api/me", map[string]string{"displayName": "Ada"})
	require.Equal(t, fiber.StatusOK, resp.status)
	resp.decode(t, &me)
	assert.Equal(t, "Ada", me.DisplayName)

	resp = e.do(t, "user-with-a-long-id", "POST", "/api/device-token", map[string]string{"token": ""})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	resp = e.do(t, "user-with-a-long-id", "POST", "/api/device-token", map[string]string{"token": "fcm-token"})
	require.Equal(t, fiber.StatusOK, resp.status)
	p, err := e.store.Profiles.Get(context.Background(), "user-with-a-long-id")
	require.NoError(t, err)
	assert.Equal(t, "fcm-token", p.FCMToken)
	assert.NotContains(t, string(resp.body), "fcm-token")
}

func TestDeleteBoard(t *testing.T) {
	e := newEnv(t)
	b := e.createBoard(t, "owner", "Doomed")
	e.join(t, "member", b)

	resp := e.do(t, "member", "DELETE", "/api/boards/"+b.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = e.do(t, "owner", "DELETE", "/api/boards/"+b.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Eventually(t, func() bool {
		return e.do(t, "owner", "GET", "/api/boards/"+b.ID, nil).status == fiber.StatusNotFound
	}, 2*time.Second, 20*time.Millisecond)
}

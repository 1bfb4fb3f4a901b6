package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liveboard/api/internal/client"
	"github.com/liveboard/api/internal/database"
	"github.com/liveboard/api/internal/live"
	"github.com/liveboard/api/internal/model"
	"github.com/liveboard/api/internal/store"
	"github.com/liveboard/api/internal/syncerr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestServer wires the full HTTP surface against an in-memory
// database and returns an API client pointed at it.
func newTestServer(t *testing.T, eventRetention int) *client.APIClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	hub := live.New()
	t.Cleanup(hub.Close)

	sessionHandler := NewSessionHandler(store.NewSessionStore(db, 25), hub)
	drawingHandler := NewDrawingHandler(store.NewStrokeStore(db), hub)
	presenceHandler := NewPresenceHandler(store.NewPresenceStore(db, 45*time.Second), hub)
	eventHandler := NewEventHandler(store.NewEventStore(db, eventRetention), hub)

	r := gin.New()
	api := r.Group("/api")
	{
		api.POST("/sessions", sessionHandler.Create)
		api.POST("/sessions/:id/end", sessionHandler.End)
		api.GET("/join/:code", sessionHandler.LookupByCode)
		api.POST("/sessions/:id/strokes", drawingHandler.Append)
		api.GET("/sessions/:id/strokes", drawingHandler.List)
		api.POST("/sessions/:id/undo", drawingHandler.Undo)
		api.POST("/sessions/:id/redo", drawingHandler.Redo)
		api.POST("/sessions/:id/clear", drawingHandler.Clear)
		api.POST("/sessions/:id/heartbeat", presenceHandler.Heartbeat)
		api.GET("/sessions/:id/participants", presenceHandler.List)
		api.POST("/participants/:id/offline", presenceHandler.MarkOffline)
		api.POST("/channels/:channel/events", eventHandler.Publish)
		api.GET("/channels/:channel/events", eventHandler.Stream)
	}

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return client.NewAPIClient(ts.URL)
}

func testStroke() model.StrokePayload {
	return model.StrokePayload{
		Tool:  model.ToolPen,
		Color: "#2563eb",
		Size:  4,
		Points: []model.Point{
			{X: 1, Y: 2},
			{X: 3, Y: 4},
		},
	}
}

func TestCollaborationScenario(t *testing.T) {
	api := newTestServer(t, 400)
	ctx := context.Background()

	session, err := api.CreateSession(ctx, "Ms. Park")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	joined, err := api.LookupByCode(ctx, session.Code)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if joined.ID != session.SessionID {
		t.Fatalf("lookup returned %s, want %s", joined.ID, session.SessionID)
	}

	if err := api.Heartbeat(ctx, session.SessionID, "Jordan", model.RoleStudent); err != nil {
		t.Fatalf("student heartbeat: %v", err)
	}

	teacherAppend, err := api.AppendStroke(ctx, client.AppendArgs{
		SessionID: session.SessionID, Stroke: testStroke(),
		AuthorRole: model.RoleTeacher, AuthorName: "Ms. Park",
	})
	if err != nil {
		t.Fatalf("teacher append: %v", err)
	}
	studentAppend, err := api.AppendStroke(ctx, client.AppendArgs{
		SessionID: session.SessionID, Stroke: testStroke(),
		AuthorRole: model.RoleStudent, AuthorName: "Jordan",
	})
	if err != nil {
		t.Fatalf("student append: %v", err)
	}
	if teacherAppend.Sequence != 1 || studentAppend.Sequence != 2 {
		t.Errorf("sequences = %d, %d; want 1, 2", teacherAppend.Sequence, studentAppend.Sequence)
	}

	teacher := client.AuthorArgs{SessionID: session.SessionID, AuthorRole: model.RoleTeacher, AuthorName: "Ms. Park"}
	if err := api.Undo(ctx, teacher); err != nil {
		t.Fatalf("teacher undo: %v", err)
	}

	strokes, err := api.ListStrokes(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(strokes) != 2 {
		t.Fatalf("list returned %d strokes, want 2", len(strokes))
	}
	if !strokes[0].IsDeleted || strokes[1].IsDeleted {
		t.Errorf("after teacher undo: A hidden=%v B hidden=%v, want A hidden, B visible",
			strokes[0].IsDeleted, strokes[1].IsDeleted)
	}

	if err := api.Redo(ctx, teacher); err != nil {
		t.Fatalf("teacher redo: %v", err)
	}
	strokes, _ = api.ListStrokes(ctx, session.SessionID)
	for _, s := range strokes {
		if s.IsDeleted {
			t.Errorf("stroke %s hidden after redo", s.ID)
		}
	}
}

func TestJoinFailuresCreateNoParticipant(t *testing.T) {
	api := newTestServer(t, 400)
	ctx := context.Background()

	if _, err := api.LookupByCode(ctx, "9999"); !syncerr.Is(err, syncerr.CodeSessionNotFound) {
		t.Errorf("unknown code err = %v, want %s", err, syncerr.CodeSessionNotFound)
	}

	session, err := api.CreateSession(ctx, "Ms. Park")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := api.EndSession(ctx, session.SessionID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := api.LookupByCode(ctx, session.Code); !syncerr.Is(err, syncerr.CodeSessionInactive) {
		t.Errorf("ended code err = %v, want %s", err, syncerr.CodeSessionInactive)
	}

	participants, err := api.ListParticipants(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 1 {
		t.Errorf("failed joins created participant rows: %d, want the teacher only", len(participants))
	}
}

func TestAppendRejectsMalformedStrokes(t *testing.T) {
	api := newTestServer(t, 400)
	ctx := context.Background()

	session, err := api.CreateSession(ctx, "Ms. Park")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	short := testStroke()
	short.Points = short.Points[:1]
	if _, err := api.AppendStroke(ctx, client.AppendArgs{
		SessionID: session.SessionID, Stroke: short,
		AuthorRole: model.RoleTeacher, AuthorName: "Ms. Park",
	}); err == nil {
		t.Error("single-point stroke should be rejected")
	}

	bad := testStroke()
	bad.Tool = "spray"
	if _, err := api.AppendStroke(ctx, client.AppendArgs{
		SessionID: session.SessionID, Stroke: bad,
		AuthorRole: model.RoleTeacher, AuthorName: "Ms. Park",
	}); err == nil {
		t.Error("unknown tool should be rejected")
	}
}

func TestChannelRetentionOverHTTP(t *testing.T) {
	api := newTestServer(t, 5)
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		payload, _ := json.Marshal(map[string]int{"n": i})
		result, err := api.PublishEvent(ctx, "room:abc", "tick", payload)
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		if result.Sequence != int64(i) {
			t.Errorf("publish %d sequence = %d", i, result.Sequence)
		}
	}

	events, err := api.StreamEvents(ctx, "room:abc", 0)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(events) != 5 || events[0].Sequence != 2 {
		t.Errorf("stream = %d events from seq %d, want 5 from 2", len(events), events[0].Sequence)
	}

	tail, err := api.StreamEvents(ctx, "room:abc", 4)
	if err != nil {
		t.Fatalf("stream after: %v", err)
	}
	if len(tail) != 2 || tail[0].Sequence != 5 {
		t.Errorf("stream after=4 returned %d events from seq %d, want 2 from 5", len(tail), tail[0].Sequence)
	}
}

func TestPresenceLifecycleOverHTTP(t *testing.T) {
	api := newTestServer(t, 400)
	ctx := context.Background()

	session, err := api.CreateSession(ctx, "Ms. Park")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := api.Heartbeat(ctx, session.SessionID, "Jordan", model.RoleStudent); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	participants, err := api.ListParticipants(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("got %d participants, want teacher and student", len(participants))
	}

	var studentID string
	for _, p := range participants {
		if p.Role == model.RoleStudent {
			studentID = p.ID
		}
		if p.Status != model.StatusOnline {
			t.Errorf("%s status = %s, want online", p.Name, p.Status)
		}
	}

	if err := api.MarkOffline(ctx, studentID); err != nil {
		t.Fatalf("mark offline: %v", err)
	}
	participants, _ = api.ListParticipants(ctx, session.SessionID)
	for _, p := range participants {
		if p.ID == studentID && p.Status != model.StatusOffline {
			t.Errorf("student status = %s after leave, want offline", p.Status)
		}
	}
}

package store

import (
	"testing"

	"github.com/liveboard/api/internal/model"
	"github.com/liveboard/api/internal/syncerr"
)

func penStroke() model.StrokePayload {
	return model.StrokePayload{
		Tool:  model.ToolPen,
		Color: "#2563eb",
		Size:  4,
		Points: []model.Point{
			{X: 10, Y: 10},
			{X: 20, Y: 25},
			{X: 30, Y: 40},
		},
	}
}

// setupSession creates an active session with one teacher and one
// registered student.
func setupSession(t *testing.T) (*SessionStore, *StrokeStore, *model.Session) {
	t.Helper()
	db := newTestDB(t)
	sessions := NewSessionStore(db, 25)
	presence := NewPresenceStore(db, 0)
	strokes := NewStrokeStore(db)

	session, err := sessions.Create("Ms. Park")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(session.Code) != 4 {
		t.Fatalf("join code %q should be 4 digits", session.Code)
	}
	if err := presence.Heartbeat(session.ID, "Jordan", model.RoleStudent); err != nil {
		t.Fatalf("register student: %v", err)
	}
	return sessions, strokes, session
}

func TestAppendAssignsIncreasingSequences(t *testing.T) {
	_, strokes, session := setupSession(t)

	first, err := strokes.Append(session.ID, model.RoleTeacher, "Ms. Park", penStroke(), "")
	if err != nil {
		t.Fatalf("teacher append: %v", err)
	}
	second, err := strokes.Append(session.ID, model.RoleStudent, "Jordan", penStroke(), "")
	if err != nil {
		t.Fatalf("student append: %v", err)
	}
	if first.Sequence != 1 || second.Sequence != 2 {
		t.Errorf("sequences = %d, %d; want 1, 2", first.Sequence, second.Sequence)
	}
}

func TestSequenceNeverReusedAfterUndo(t *testing.T) {
	_, strokes, session := setupSession(t)

	for i := 0; i < 2; i++ {
		if _, err := strokes.Append(session.ID, model.RoleTeacher, "Ms. Park", penStroke(), ""); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := strokes.Undo(session.ID, model.RoleTeacher, "Ms. Park"); err != nil {
		t.Fatalf("undo: %v", err)
	}
	third, err := strokes.Append(session.ID, model.RoleTeacher, "Ms. Park", penStroke(), "")
	if err != nil {
		t.Fatalf("append after undo: %v", err)
	}
	if third.Sequence != 3 {
		t.Errorf("sequence after undo = %d, want 3 (hidden strokes still hold their numbers)", third.Sequence)
	}
}

func TestUndoRedoRestoresLatestLaneStroke(t *testing.T) {
	_, strokes, session := setupSession(t)

	a, err := strokes.Append(session.ID, model.RoleTeacher, "Ms. Park", penStroke(), "")
	if err != nil {
		t.Fatalf("append A: %v", err)
	}
	if _, err := strokes.Append(session.ID, model.RoleStudent, "Jordan", penStroke(), ""); err != nil {
		t.Fatalf("append B: %v", err)
	}

	if err := strokes.Undo(session.ID, model.RoleTeacher, "Ms. Park"); err != nil {
		t.Fatalf("teacher undo: %v", err)
	}
	list, err := strokes.List(session.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list returned %d strokes, want 2", len(list))
	}
	if !list[0].IsDeleted || list[0].ID != a.StrokeID {
		t.Errorf("teacher stroke A should be hidden after undo")
	}
	if list[1].IsDeleted {
		t.Errorf("student stroke B must stay visible after teacher undo")
	}

	if err := strokes.Redo(session.ID, model.RoleTeacher, "Ms. Park"); err != nil {
		t.Fatalf("teacher redo: %v", err)
	}
	list, _ = strokes.List(session.ID)
	for _, stroke := range list {
		if stroke.IsDeleted {
			t.Errorf("stroke %s still hidden after redo", stroke.ID)
		}
	}
}

func TestRedoWithoutFreshUndoFails(t *testing.T) {
	_, strokes, session := setupSession(t)

	if _, err := strokes.Append(session.ID, model.RoleStudent, "Jordan", penStroke(), ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := strokes.Undo(session.ID, model.RoleStudent, "Jordan"); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if err := strokes.Redo(session.ID, model.RoleStudent, "Jordan"); err != nil {
		t.Fatalf("first redo: %v", err)
	}
	err := strokes.Redo(session.ID, model.RoleStudent, "Jordan")
	if !syncerr.Is(err, syncerr.CodeNothingToRedo) {
		t.Errorf("second redo err = %v, want %s", err, syncerr.CodeNothingToRedo)
	}
}

func TestUndoEmptyLaneFails(t *testing.T) {
	_, strokes, session := setupSession(t)

	err := strokes.Undo(session.ID, model.RoleStudent, "Jordan")
	if !syncerr.Is(err, syncerr.CodeNothingToUndo) {
		t.Errorf("undo err = %v, want %s", err, syncerr.CodeNothingToUndo)
	}
}

func TestClearScopes(t *testing.T) {
	_, strokes, session := setupSession(t)

	if _, err := strokes.Append(session.ID, model.RoleTeacher, "Ms. Park", penStroke(), ""); err != nil {
		t.Fatalf("teacher append: %v", err)
	}
	if _, err := strokes.Append(session.ID, model.RoleStudent, "Jordan", penStroke(), ""); err != nil {
		t.Fatalf("student append: %v", err)
	}

	scope, err := strokes.Clear(session.ID, model.RoleStudent, "Jordan")
	if err != nil {
		t.Fatalf("student clear: %v", err)
	}
	if scope != ClearScopeSelf {
		t.Errorf("student clear scope = %q, want %q", scope, ClearScopeSelf)
	}
	list, _ := strokes.List(session.ID)
	for _, stroke := range list {
		if stroke.AuthorRole == model.RoleTeacher && stroke.IsDeleted {
			t.Errorf("student clear must not touch the teacher lane")
		}
		if stroke.AuthorRole == model.RoleStudent && !stroke.IsDeleted {
			t.Errorf("student clear should hide the student's strokes")
		}
	}

	// Lane is already empty now.
	if _, err := strokes.Clear(session.ID, model.RoleStudent, "Jordan"); !syncerr.Is(err, syncerr.CodeNothingToClear) {
		t.Errorf("second student clear err = %v, want %s", err, syncerr.CodeNothingToClear)
	}

	scope, err = strokes.Clear(session.ID, model.RoleTeacher, "Ms. Park")
	if err != nil {
		t.Fatalf("teacher clear: %v", err)
	}
	if scope != ClearScopeAll {
		t.Errorf("teacher clear scope = %q, want %q", scope, ClearScopeAll)
	}
	list, _ = strokes.List(session.ID)
	for _, stroke := range list {
		if !stroke.IsDeleted {
			t.Errorf("teacher clear should hide every stroke")
		}
	}

	// Teacher clearing an already empty board is a successful no-op.
	if _, err := strokes.Clear(session.ID, model.RoleTeacher, "Ms. Park"); err != nil {
		t.Errorf("teacher clear on empty board: %v", err)
	}
}

func TestAppendValidation(t *testing.T) {
	sessions, strokes, session := setupSession(t)

	if _, err := strokes.Append(session.ID, model.RoleStudent, "Nobody", penStroke(), ""); !syncerr.Is(err, syncerr.CodeUnregisteredParticipant) {
		t.Errorf("unregistered append err = %v, want %s", err, syncerr.CodeUnregisteredParticipant)
	}
	if _, err := strokes.Append("missing-session", model.RoleStudent, "Jordan", penStroke(), ""); !syncerr.Is(err, syncerr.CodeInvalidSession) {
		t.Errorf("missing session append err = %v, want %s", err, syncerr.CodeInvalidSession)
	}

	if err := sessions.End(session.ID); err != nil {
		t.Fatalf("end session: %v", err)
	}
	if _, err := strokes.Append(session.ID, model.RoleStudent, "Jordan", penStroke(), ""); !syncerr.Is(err, syncerr.CodeInvalidSession) {
		t.Errorf("ended session append err = %v, want %s", err, syncerr.CodeInvalidSession)
	}
}

func TestAppendIdempotencyKeyDeduplicates(t *testing.T) {
	_, strokes, session := setupSession(t)

	key := "2f1c9a04-5f93-4a61-9a51-2d2e7f6f3b10"
	first, err := strokes.Append(session.ID, model.RoleStudent, "Jordan", penStroke(), key)
	if err != nil {
		t.Fatalf("first append: %v", err)
	}
	replay, err := strokes.Append(session.ID, model.RoleStudent, "Jordan", penStroke(), key)
	if err != nil {
		t.Fatalf("replayed append: %v", err)
	}
	if !replay.Duplicate {
		t.Error("replay should report the duplicate")
	}
	if replay.StrokeID != first.StrokeID || replay.Sequence != first.Sequence {
		t.Errorf("replay = %+v, want the originally committed stroke %+v", replay, first)
	}

	list, _ := strokes.List(session.ID)
	if len(list) != 1 {
		t.Errorf("ledger has %d strokes after replay, want 1", len(list))
	}
}

// Package history derives undo/redo availability from a ledger
// snapshot. Nothing is persisted: the ledger's soft-delete flags are
// the only state, and every subscriber recomputes availability on each
// update it receives.
package history

import "github.com/liveboard/api/internal/model"

// Availability reports what the author's lane currently offers.
type Availability struct {
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// Resolve scans a session's strokes for the author lane: any visible
// stroke makes undo possible, any hidden one makes redo possible.
func Resolve(strokes []model.Stroke, authorRole, authorName string) Availability {
	var a Availability
	for _, stroke := range strokes {
		if stroke.AuthorRole != authorRole || stroke.AuthorName != authorName {
			continue
		}
		if stroke.IsDeleted {
			a.CanRedo = true
		} else {
			a.CanUndo = true
		}
		if a.CanUndo && a.CanRedo {
			break
		}
	}
	return a
}

// Visible filters a snapshot down to the strokes a renderer should
// draw, preserving sequence order.
func Visible(strokes []model.Stroke) []model.Stroke {
	visible := make([]model.Stroke, 0, len(strokes))
	for _, stroke := range strokes {
		if !stroke.IsDeleted {
			visible = append(visible, stroke)
		}
	}
	return visible
}

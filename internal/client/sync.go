package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liveboard/api/internal/history"
	"github.com/liveboard/api/internal/model"
	"github.com/liveboard/api/internal/syncerr"
)

// SyncConfig tunes the client protocol timers. Zero values pick the
// protocol defaults.
type SyncConfig struct {
	HeartbeatInterval time.Duration // 20s: two beats fit inside the 45s staleness window
	FlushInterval     time.Duration // 4s
	PollInterval      time.Duration // 2s
	MaxAttempts       int           // 5
}

func (c *SyncConfig) defaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 20 * time.Second
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 4 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
}

// Callbacks deliver ledger and presence updates to the presentation
// layer. All callbacks run on subscription goroutines.
type Callbacks struct {
	// OnStrokes receives the full ordered snapshot (hidden strokes
	// included) plus the caller's recomputed undo/redo availability.
	OnStrokes func(strokes []model.Stroke, availability history.Availability)
	// OnPresence receives participants with derived status.
	OnPresence func(participants []model.Participant)
	// OnQueueFailure reports an operation abandoned after retries.
	OnQueueFailure func(op Operation, err error)
}

// SyncClient orchestrates one participant's view of a session: join,
// standing subscriptions, heartbeats, optimistic stroke building and
// the offline queue. All state is owned here; Leave tears everything
// down through one path.
type SyncClient struct {
	api       *APIClient
	cfg       SyncConfig
	callbacks Callbacks

	mu            sync.Mutex
	session       *model.Session
	role          string
	name          string
	participantID string
	points        []model.Point
	drawing       bool
	style         StrokeStyle
	queue         *OperationQueue
	pollers       []*poller
	heartbeatStop context.CancelFunc
}

// StrokeStyle is the pen state applied to the gesture in progress.
type StrokeStyle struct {
	Tool  string
	Color string
	Size  float64
}

func NewSyncClient(api *APIClient, cfg SyncConfig, callbacks Callbacks) *SyncClient {
	cfg.defaults()
	return &SyncClient{api: api, cfg: cfg, callbacks: callbacks}
}

// Join resolves the code, registers via a first heartbeat, starts the
// standing subscriptions and the heartbeat ticker, and flushes any
// operations queued while offline.
func (s *SyncClient) Join(ctx context.Context, code, name, role string) (*model.Session, error) {
	session, err := s.api.LookupByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.session != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("already joined session %s, leave first", s.session.Code)
	}
	s.session = session
	s.role = role
	s.name = name
	s.queue = NewOperationQueue(s.execute, QueueConfig{
		FlushInterval: s.cfg.FlushInterval,
		MaxAttempts:   s.cfg.MaxAttempts,
		OnAbandon:     s.callbacks.OnQueueFailure,
	})
	s.mu.Unlock()

	// First beat registers the participant; the store upserts the
	// (session, role, name) row.
	if err := s.api.Heartbeat(ctx, session.ID, name, role); err != nil {
		log.Printf("[Sync] Initial heartbeat failed: %v", err)
	}

	s.startSubscriptions(session.ID)
	s.startHeartbeat(session.ID)
	s.queue.Flush(ctx)

	return session, nil
}

func (s *SyncClient) startSubscriptions(sessionID string) {
	strokePoller := newPoller(s.cfg.PollInterval,
		func(ctx context.Context) (interface{}, error) {
			return s.api.ListStrokes(ctx, sessionID)
		},
		func(result interface{}) {
			strokes, ok := result.([]model.Stroke)
			if !ok || !s.sessionIs(sessionID) {
				return
			}
			if s.callbacks.OnStrokes != nil {
				s.mu.Lock()
				role, name := s.role, s.name
				s.mu.Unlock()
				s.callbacks.OnStrokes(strokes, history.Resolve(strokes, role, name))
			}
		})

	presencePoller := newPoller(s.cfg.PollInterval,
		func(ctx context.Context) (interface{}, error) {
			return s.api.ListParticipants(ctx, sessionID)
		},
		func(result interface{}) {
			participants, ok := result.([]model.Participant)
			if !ok || !s.sessionIs(sessionID) {
				return
			}
			s.rememberParticipantID(participants)
			if s.callbacks.OnPresence != nil {
				s.callbacks.OnPresence(participants)
			}
		})

	s.mu.Lock()
	s.pollers = []*poller{strokePoller, presencePoller}
	s.mu.Unlock()

	strokePoller.start()
	presencePoller.start()
}

// sessionIs guards against responses that land after Leave or after a
// rejoin: results for a stale session id are dropped.
func (s *SyncClient) sessionIs(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil && s.session.ID == sessionID
}

func (s *SyncClient) rememberParticipantID(participants []model.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.participantID != "" {
		return
	}
	for _, p := range participants {
		if p.Role == s.role && p.Name == s.name {
			s.participantID = p.ID
			return
		}
	}
}

func (s *SyncClient) startHeartbeat(sessionID string) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.heartbeatStop = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				name, role := s.name, s.role
				s.mu.Unlock()
				// Presence is best effort; it self-heals on the
				// next beat or via the staleness window.
				if err := s.api.Heartbeat(ctx, sessionID, name, role); err != nil {
					log.Printf("[Sync] Heartbeat failed: %v", err)
				}
			}
		}
	}()
}

// BeginStroke starts accumulating a gesture with the given style.
func (s *SyncClient) BeginStroke(style StrokeStyle, start model.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing = true
	s.style = style
	s.points = []model.Point{start}
}

// AddPoint extends the gesture in progress; the presentation layer
// renders it optimistically as it goes.
func (s *SyncClient) AddPoint(p model.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.drawing {
		return
	}
	s.points = append(s.points, p)
}

// EndStroke commits the gesture as one ledger append. Gestures with
// fewer than 2 points are discarded without committing.
func (s *SyncClient) EndStroke(ctx context.Context) error {
	s.mu.Lock()
	if !s.drawing || s.session == nil {
		s.drawing = false
		s.points = nil
		s.mu.Unlock()
		return nil
	}
	points := s.points
	style := s.style
	sessionID := s.session.ID
	role, name := s.role, s.name
	s.drawing = false
	s.points = nil
	s.mu.Unlock()

	if len(points) < 2 {
		return nil
	}

	op := Operation{
		Kind: OpAppend,
		Append: &AppendArgs{
			SessionID:  sessionID,
			Stroke:     model.StrokePayload{Tool: style.Tool, Color: style.Color, Size: style.Size, Points: points},
			AuthorRole: role,
			AuthorName: name,
			// The key makes flush retries idempotent: a replay of a
			// half-committed append returns the existing stroke.
			IdempotencyKey: uuid.NewString(),
		},
	}
	return s.submit(ctx, op)
}

// Undo hides the caller's most recent visible stroke.
func (s *SyncClient) Undo(ctx context.Context) error {
	return s.submitAuthorOp(ctx, OpUndo)
}

// Redo restores the caller's most recently hidden stroke.
func (s *SyncClient) Redo(ctx context.Context) error {
	return s.submitAuthorOp(ctx, OpRedo)
}

// Clear hides the caller's strokes, or every stroke when the caller
// is the teacher.
func (s *SyncClient) Clear(ctx context.Context) error {
	return s.submitAuthorOp(ctx, OpClear)
}

func (s *SyncClient) submitAuthorOp(ctx context.Context, kind OpKind) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return fmt.Errorf("not joined to a session")
	}
	op := Operation{
		Kind:   kind,
		Author: &AuthorArgs{SessionID: s.session.ID, AuthorRole: s.role, AuthorName: s.name},
	}
	s.mu.Unlock()
	return s.submit(ctx, op)
}

// submit tries the operation immediately; transient failures park it
// in the offline queue and surface the error so the caller can warn.
func (s *SyncClient) submit(ctx context.Context, op Operation) error {
	err := s.execute(ctx, op)
	if err == nil {
		return nil
	}
	if syncerr.IsTransient(err) {
		s.mu.Lock()
		queue := s.queue
		s.mu.Unlock()
		if queue != nil {
			op.Attempts = 1
			queue.Enqueue(op)
		}
	}
	return err
}

// execute dispatches on the operation tag. An unrecognized kind is a
// programming error, reported with its own taxonomy code.
func (s *SyncClient) execute(ctx context.Context, op Operation) error {
	switch op.Kind {
	case OpAppend:
		_, err := s.api.AppendStroke(ctx, *op.Append)
		return err
	case OpUndo:
		return s.api.Undo(ctx, *op.Author)
	case OpRedo:
		return s.api.Redo(ctx, *op.Author)
	case OpClear:
		_, err := s.api.Clear(ctx, *op.Author)
		return err
	default:
		return syncerr.New(syncerr.CodeUnknownOperation, fmt.Sprintf("unknown operation %q", op.Kind))
	}
}

// SetOnline signals a host connectivity transition; coming back online
// flushes the queue immediately instead of waiting for the ticker.
func (s *SyncClient) SetOnline(ctx context.Context, online bool) {
	if !online {
		return
	}
	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()
	if queue != nil {
		queue.Flush(ctx)
	}
}

// Leave marks the participant offline (best effort), then tears down
// subscriptions, timers, the queue and local render state.
func (s *SyncClient) Leave(ctx context.Context) {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return
	}
	participantID := s.participantID
	pollers := s.pollers
	heartbeatStop := s.heartbeatStop
	queue := s.queue
	s.session = nil
	s.participantID = ""
	s.pollers = nil
	s.heartbeatStop = nil
	s.queue = nil
	s.points = nil
	s.drawing = false
	s.mu.Unlock()

	if participantID != "" {
		if err := s.api.MarkOffline(ctx, participantID); err != nil {
			log.Printf("[Sync] Mark offline failed: %v", err)
		}
	}
	for _, p := range pollers {
		p.stop()
	}
	if heartbeatStop != nil {
		heartbeatStop()
	}
	if queue != nil {
		queue.Stop()
	}
}

// Channel returns a broadcast channel shim backed by this client's
// transport.
func (s *SyncClient) Channel(name string) *Channel {
	return NewChannel(s.api, name, s.cfg.PollInterval)
}

package game

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/playmatatu/poolphys/internal/physics"
)

var (
	ErrTableClosed     = errors.New("table is closed")
	ErrBallInHand      = errors.New("cue ball must be placed before the next shot")
	ErrNotBallInHand   = errors.New("cue ball is not in hand")
	ErrSessionNotFound = errors.New("table session not found")
	ErrNoDatabase      = errors.New("database not configured")
)

// BallGroup is the family a ball belongs to.
type BallGroup string

const (
	GroupCue     BallGroup = "CUE"
	GroupSolids  BallGroup = "SOLIDS"
	GroupStripes BallGroup = "STRIPES"
	Group8Ball   BallGroup = "8BALL"
)

// BallState represents a ball's position and status for serialization.
type BallState struct {
	ID       int       `json:"id"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Z        float64   `json:"z"`
	Active   bool      `json:"active"`
	Sleeping bool      `json:"sleeping"`
	Group    BallGroup `json:"group,omitempty"`
}

// ShotParams represents the input for a shot.
type ShotParams struct {
	Angle   float64 `json:"angle"`   // radians, from +x towards +z
	Power   float64 `json:"power"`   // cue ball speed, m/s
	Screw   float64 `json:"screw"`   // -0.5 to 0.5
	English float64 `json:"english"` // -1 to 1
}

// ShotResult is the outcome of one simulated shot.
type ShotResult struct {
	Rack                int              `json:"rack"`
	ShotNumber          int              `json:"shot_number"`
	Params              ShotParams       `json:"params"`
	Events              []CollisionEvent `json:"events"`
	Pocketed            []int            `json:"pocketed_balls"`
	FirstContact        int              `json:"first_contact_ball_id"` // -1 if no contact
	CushionAfterContact bool             `json:"cushion_after_contact"`
	Scratch             bool             `json:"scratch"`
	BallInHand          bool             `json:"ball_in_hand"`
	GameOver            bool             `json:"game_over"`
	Balls               []BallState      `json:"balls"`
	Frames              int              `json:"frames"`
	SimulatedSeconds    float64          `json:"simulated_seconds"`
	Settled             bool             `json:"settled"`
}

// TableSession is one live table: a physics engine plus the bookkeeping
// around the shots played on it. All engine access goes through mu, so a
// table is only ever stepped by one goroutine at a time.
type TableSession struct {
	ID           string     `json:"id"`
	Token        string     `json:"token"`
	Status       GameStatus `json:"status"`
	Rack         int        `json:"rack"` // 1 for the first rack, bumped by Reset
	ShotNumber   int        `json:"shot_number"`
	BallInHand   bool       `json:"ball_in_hand"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	LastActivity time.Time  `json:"last_activity"`
	DBID         int        `json:"db_id,omitempty"`

	physCfg physics.Config
	engine  *PhysicsEngine
	mu      sync.RWMutex
}

// SessionSnapshot is the serialisable view of a session.
type SessionSnapshot struct {
	ID           string      `json:"id"`
	Token        string      `json:"token"`
	Status       GameStatus  `json:"status"`
	Rack         int         `json:"rack"`
	ShotNumber   int         `json:"shot_number"`
	BallInHand   bool        `json:"ball_in_hand"`
	Balls        []BallState `json:"balls"`
	CreatedAt    time.Time   `json:"created_at"`
	LastActivity time.Time   `json:"last_activity"`
	DBID         int         `json:"db_id,omitempty"`
}

// NewTableSession racks a fresh table.
func NewTableSession(id, token string, cfg physics.Config) (*TableSession, error) {
	engine, err := NewPhysicsEngine(NewStandard8BallTable(), cfg)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &TableSession{
		ID:           id,
		Token:        token,
		Status:       StatusWaiting,
		Rack:         1,
		CreatedAt:    now,
		LastActivity: now,
		physCfg:      cfg,
		engine:       engine,
	}, nil
}

// TakeShot strikes the cue ball and simulates until the table settles.
// onFrame, if set, sees every frame while the session lock is held.
func (s *TableSession) TakeShot(params ShotParams, onFrame FrameFunc) (*ShotResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.Status == StatusCompleted || s.Status == StatusCancelled:
		return nil, ErrTableClosed
	case s.BallInHand:
		return nil, ErrBallInHand
	}

	if err := s.engine.Strike(params); err != nil {
		return nil, err
	}

	now := time.Now()
	if s.Status == StatusWaiting {
		s.Status = StatusInProgress
		s.StartedAt = &now
	}

	result := s.engine.Simulate(MaxShotSeconds, onFrame)

	s.ShotNumber++
	result.ShotNumber = s.ShotNumber
	result.Rack = s.Rack
	result.Params = params
	labelGroups(result.Balls)

	for _, id := range result.Pocketed {
		switch id {
		case 0:
			result.Scratch = true
		case 8:
			result.GameOver = true
		}
	}
	if result.Scratch && !result.GameOver {
		s.BallInHand = true
	}
	if result.GameOver {
		s.Status = StatusCompleted
		s.CompletedAt = &now
	}
	result.BallInHand = s.BallInHand
	s.LastActivity = time.Now()

	log.Printf("[POOL] Table %s shot %d: %d events, pocketed %v, %d frames",
		s.ID, s.ShotNumber, len(result.Events), result.Pocketed, result.Frames)
	return result, nil
}

// PlaceCueBall puts the cue ball down after a scratch, or anywhere before the
// break.
func (s *TableSession) PlaceCueBall(x, z float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status == StatusCompleted || s.Status == StatusCancelled {
		return ErrTableClosed
	}
	if !s.BallInHand && s.ShotNumber > 0 {
		return ErrNotBallInHand
	}
	if err := s.engine.Place(0, x, z); err != nil {
		return err
	}

	s.BallInHand = false
	s.LastActivity = time.Now()
	log.Printf("[POOL] Table %s cue ball placed at (%.3f, %.3f)", s.ID, x, z)
	return nil
}

// Reset discards the world and racks a new one. Shot numbers restart, so the
// rack counter moves on to keep (Rack, ShotNumber) unique for the table.
func (s *TableSession) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	engine, err := NewPhysicsEngine(NewStandard8BallTable(), s.physCfg)
	if err != nil {
		return err
	}

	s.engine = engine
	s.Status = StatusWaiting
	s.Rack++
	s.ShotNumber = 0
	s.BallInHand = false
	s.StartedAt = nil
	s.CompletedAt = nil
	s.LastActivity = time.Now()
	return nil
}

// Close marks the session as no longer playable.
func (s *TableSession) Close(status GameStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.Status = status
	s.CompletedAt = &now
}

// Balls returns the current ball states.
func (s *TableSession) Balls() []BallState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balls := s.engine.Balls()
	labelGroups(balls)
	return balls
}

// Snapshot returns a copy of the session for serialisation.
func (s *TableSession) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balls := s.engine.Balls()
	labelGroups(balls)
	return SessionSnapshot{
		ID:           s.ID,
		Token:        s.Token,
		Status:       s.Status,
		Rack:         s.Rack,
		ShotNumber:   s.ShotNumber,
		BallInHand:   s.BallInHand,
		Balls:        balls,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		DBID:         s.DBID,
	}
}

// IdleSince reports how long the session has gone without activity.
func (s *TableSession) IdleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.LastActivity)
}

// restore applies a snapshot loaded from the cache.
func (s *TableSession) restore(snap SessionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Status = snap.Status
	s.Rack = snap.Rack
	if s.Rack < 1 {
		s.Rack = 1
	}
	s.ShotNumber = snap.ShotNumber
	s.BallInHand = snap.BallInHand
	s.CreatedAt = snap.CreatedAt
	s.LastActivity = snap.LastActivity
	s.DBID = snap.DBID
	s.engine.Restore(snap.Balls)
}

func ballGroup(id int) BallGroup {
	switch {
	case id == 0:
		return GroupCue
	case id == 8:
		return Group8Ball
	case id < 8:
		return GroupSolids
	default:
		return GroupStripes
	}
}

func labelGroups(balls []BallState) {
	for i := range balls {
		balls[i].Group = ballGroup(balls[i].ID)
	}
}

package game

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/poolphys/internal/config"
	"github.com/redis/go-redis/v9"
)

// Broadcaster pushes live table updates to connected viewers.
type Broadcaster interface {
	BroadcastFrame(tableID string, frame int, balls []BallState)
	BroadcastShot(tableID string, result *ShotResult)
	BroadcastState(tableID string, snap SessionSnapshot)
}

// SessionManager manages all live tables
type SessionManager struct {
	sessions    map[string]*TableSession // keyed by session ID
	rdb         *redis.Client            // Redis client for state cache and fan-out
	db          *sqlx.DB                 // SQL DB for shot history
	config      *config.Config           // Application config
	broadcaster Broadcaster
	mu          sync.RWMutex
}

var (
	// Global session manager instance
	Manager *SessionManager
)

// InitializeManager initializes the global session manager with DB, Redis and config
func InitializeManager(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	Manager = NewSessionManager(db, rdb, cfg)
}

// NewSessionManager creates a manager. Any of db, rdb and cfg may be nil.
func NewSessionManager(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*TableSession),
		rdb:      rdb,
		db:       db,
		config:   cfg,
	}
}

// SetBroadcaster wires the live viewer hub.
func (sm *SessionManager) SetBroadcaster(b Broadcaster) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.broadcaster = b
}

func (sm *SessionManager) getBroadcaster() Broadcaster {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.broadcaster
}

// generateToken generates a secure random token
func generateToken(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// generateSessionID generates a unique table session ID
func generateSessionID() string {
	return "tbl_" + generateToken(8)
}

// CreateSession racks a new table and registers it.
func (sm *SessionManager) CreateSession(ctx context.Context) (*TableSession, error) {
	s, err := NewTableSession(generateSessionID(), generateToken(16), sm.config.Physics())
	if err != nil {
		return nil, fmt.Errorf("creating table: %w", err)
	}

	if id, err := sm.recordSession(ctx, s); err == nil {
		s.DBID = id
	}

	sm.mu.Lock()
	sm.sessions[s.ID] = s
	sm.mu.Unlock()

	if err := sm.saveSessionToRedis(ctx, s); err != nil {
		log.Printf("[SESSION] Failed to cache table %s: %v", s.ID, err)
	}
	log.Printf("[SESSION] Table created: %s", s.ID)
	return s, nil
}

// GetSession looks a table up in memory, then in the Redis cache.
func (sm *SessionManager) GetSession(ctx context.Context, id string) (*TableSession, error) {
	sm.mu.RLock()
	s, ok := sm.sessions[id]
	sm.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := sm.loadSessionFromRedis(ctx, id)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	// Another request may have rehydrated it first
	if existing, ok := sm.sessions[id]; ok {
		return existing, nil
	}
	sm.sessions[id] = s
	log.Printf("[SESSION] Table %s rehydrated from cache", id)
	return s, nil
}

// VerifyToken reports whether token is the control token of table id.
func (sm *SessionManager) VerifyToken(ctx context.Context, id, token string) bool {
	if token == "" {
		return false
	}
	s, err := sm.GetSession(ctx, id)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) == 1
}

// TakeShot plays one shot on table id and persists the outcome.
func (sm *SessionManager) TakeShot(ctx context.Context, id string, params ShotParams) (*ShotResult, error) {
	s, err := sm.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.TakeShot(params, sm.frameSink(id))
	if err != nil {
		return nil, err
	}

	sm.recordShot(ctx, s, result)
	if result.ShotNumber == 1 {
		sm.markSessionStatus(ctx, s, StatusInProgress)
	}
	if result.GameOver {
		sm.markSessionStatus(ctx, s, StatusCompleted)
	}
	if err := sm.saveSessionToRedis(ctx, s); err != nil {
		log.Printf("[SESSION] Failed to cache table %s: %v", id, err)
	}
	sm.publishShot(ctx, id, result)
	return result, nil
}

// frameSink forwards every Nth frame of a shot to the broadcaster.
func (sm *SessionManager) frameSink(id string) FrameFunc {
	b := sm.getBroadcaster()
	every := 0
	if sm.config != nil {
		every = sm.config.FrameBroadcastEvery
	}
	if b == nil || every <= 0 {
		return nil
	}
	return func(frame int, balls []BallState) {
		if frame%every == 0 {
			b.BroadcastFrame(id, frame, balls)
		}
	}
}

func (sm *SessionManager) publishState(s *TableSession) {
	if b := sm.getBroadcaster(); b != nil {
		b.BroadcastState(s.ID, s.Snapshot())
	}
}

// PlaceCueBall places the cue ball on table id.
func (sm *SessionManager) PlaceCueBall(ctx context.Context, id string, x, z float64) (*TableSession, error) {
	s, err := sm.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.PlaceCueBall(x, z); err != nil {
		return nil, err
	}
	if err := sm.saveSessionToRedis(ctx, s); err != nil {
		log.Printf("[SESSION] Failed to cache table %s: %v", id, err)
	}
	sm.publishState(s)
	return s, nil
}

// ResetSession re-racks table id.
func (sm *SessionManager) ResetSession(ctx context.Context, id string) (*TableSession, error) {
	s, err := sm.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	sm.markSessionStatus(ctx, s, StatusWaiting)
	if err := sm.saveSessionToRedis(ctx, s); err != nil {
		log.Printf("[SESSION] Failed to cache table %s: %v", id, err)
	}
	log.Printf("[SESSION] Table %s reset", id)
	sm.publishState(s)
	return s, nil
}

// EndSession closes table id and forgets it.
func (sm *SessionManager) EndSession(ctx context.Context, id string, status GameStatus) error {
	sm.mu.Lock()
	s, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.Close(status)
	sm.markSessionStatus(ctx, s, status)
	sm.deleteSessionFromRedis(ctx, id)
	sm.publishState(s)
	log.Printf("[SESSION] Table %s closed (%s)", id, status)
	return nil
}

// ExpireIdle closes every table that has been idle for at least maxIdle and
// returns their IDs. A non-positive maxIdle means the configured session TTL.
func (sm *SessionManager) ExpireIdle(ctx context.Context, maxIdle time.Duration) []string {
	if maxIdle <= 0 {
		maxIdle = sessionTTL(sm.config)
	}
	now := time.Now()

	// Collect candidates under read lock
	sm.mu.RLock()
	var idle []string
	for id, s := range sm.sessions {
		if s.IdleSince(now) >= maxIdle {
			idle = append(idle, id)
		}
	}
	sm.mu.RUnlock()

	// Sessions cached by other instances only show up in the idle index
	for _, id := range sm.idleFromRedis(ctx, now.Add(-maxIdle)) {
		sm.mu.RLock()
		_, local := sm.sessions[id]
		sm.mu.RUnlock()
		if !local {
			sm.deleteSessionFromRedis(ctx, id)
		}
	}

	var expired []string
	for _, id := range idle {
		if err := sm.EndSession(ctx, id, StatusCancelled); err == nil {
			expired = append(expired, id)
		}
	}
	if len(expired) > 0 {
		log.Printf("[SESSION] Expired %d idle tables", len(expired))
	}
	return expired
}

// ActiveSessionCount returns the number of tables held in memory.
func (sm *SessionManager) ActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

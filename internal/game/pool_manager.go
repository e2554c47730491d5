package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/playmatatu/poolphys/internal/config"
	"github.com/playmatatu/poolphys/internal/models"
	"github.com/redis/go-redis/v9"
)

// ShotEventsChannel is the Redis pub/sub channel carrying finished shots.
const ShotEventsChannel = "shot_events"

const idleIndexKey = "table_idle"

// ShotEvent is the message published on ShotEventsChannel.
type ShotEvent struct {
	TableID string      `json:"table_id"`
	Result  *ShotResult `json:"result"`
}

func sessionKey(id string) string {
	return "table:" + id + ":state"
}

// sessionTTL is how long a table may sit idle, in the cache and in memory.
func sessionTTL(cfg *config.Config) time.Duration {
	if cfg != nil && cfg.SessionTTLMinutes > 0 {
		return time.Duration(cfg.SessionTTLMinutes) * time.Minute
	}
	return time.Hour
}

func (sm *SessionManager) cacheTTL() time.Duration {
	return sessionTTL(sm.config)
}

// saveSessionToRedis caches the session snapshot and refreshes its entry in
// the idle index.
func (sm *SessionManager) saveSessionToRedis(ctx context.Context, s *TableSession) error {
	if sm.rdb == nil {
		return nil
	}

	snap := s.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	pipe := sm.rdb.TxPipeline()
	pipe.SetEx(ctx, sessionKey(snap.ID), data, sm.cacheTTL())
	pipe.ZAdd(ctx, idleIndexKey, redis.Z{Score: float64(snap.LastActivity.Unix()), Member: snap.ID})
	_, err = pipe.Exec(ctx)
	return err
}

// loadSessionFromRedis rebuilds a session from its cached snapshot.
func (sm *SessionManager) loadSessionFromRedis(ctx context.Context, id string) (*TableSession, error) {
	if sm.rdb == nil {
		return nil, errors.New("no redis client")
	}

	data, err := sm.rdb.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, errors.New("table not found in redis")
	}
	if err != nil {
		return nil, err
	}

	var snap SessionSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("decoding table %s: %w", id, err)
	}

	s, err := NewTableSession(snap.ID, snap.Token, sm.config.Physics())
	if err != nil {
		return nil, err
	}
	s.restore(snap)
	return s, nil
}

func (sm *SessionManager) deleteSessionFromRedis(ctx context.Context, id string) {
	if sm.rdb == nil {
		return
	}
	if err := sm.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		log.Printf("[SESSION] Failed to delete cached table %s: %v", id, err)
	}
	sm.rdb.ZRem(ctx, idleIndexKey, id)
}

// idleFromRedis claims idle index entries last touched before cutoff.
func (sm *SessionManager) idleFromRedis(ctx context.Context, cutoff time.Time) []string {
	if sm.rdb == nil {
		return nil
	}

	members, err := sm.rdb.ZRangeByScore(ctx, idleIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff.Unix()),
	}).Result()
	if err != nil {
		log.Printf("[SESSION] Failed to read idle index: %v", err)
		return nil
	}

	var claimed []string
	for _, m := range members {
		// Attempt to remove (race-safe)
		if removed, _ := sm.rdb.ZRem(ctx, idleIndexKey, m).Result(); removed > 0 {
			claimed = append(claimed, m)
		}
	}
	return claimed
}

// publishShot fans a finished shot out to viewers. With Redis the hub of
// every instance picks it up from the channel; without it the local hub is
// called directly.
func (sm *SessionManager) publishShot(ctx context.Context, id string, result *ShotResult) {
	if sm.rdb == nil {
		if b := sm.getBroadcaster(); b != nil {
			b.BroadcastShot(id, result)
		}
		return
	}

	data, err := json.Marshal(ShotEvent{TableID: id, Result: result})
	if err != nil {
		log.Printf("[SESSION] Failed to marshal shot event for %s: %v", id, err)
		return
	}
	if err := sm.rdb.Publish(ctx, ShotEventsChannel, data).Err(); err != nil {
		log.Printf("[SESSION] Failed to publish shot event for %s: %v", id, err)
	}
}

// recordSession inserts the session row and returns its id.
func (sm *SessionManager) recordSession(ctx context.Context, s *TableSession) (int, error) {
	if sm.db == nil {
		return 0, ErrNoDatabase
	}

	var id int
	err := sm.db.QueryRowxContext(ctx,
		`INSERT INTO table_sessions (public_id, token, status, created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
		s.ID, s.Token, string(s.Status), s.CreatedAt,
	).Scan(&id)
	if err != nil {
		log.Printf("[DB] Failed to record table %s: %v", s.ID, err)
		return 0, err
	}
	return id, nil
}

// recordShot records a shot with its parameters and events as JSONB.
func (sm *SessionManager) recordShot(ctx context.Context, s *TableSession, result *ShotResult) {
	if sm.db == nil || s.DBID == 0 {
		return
	}

	params, err := json.Marshal(result.Params)
	if err != nil {
		log.Printf("[DB] Failed to marshal shot params for table %s: %v", s.ID, err)
		return
	}
	events, err := json.Marshal(result.Events)
	if err != nil {
		log.Printf("[DB] Failed to marshal shot events for table %s: %v", s.ID, err)
		return
	}

	pocketed := make([]int64, len(result.Pocketed))
	for i, id := range result.Pocketed {
		pocketed[i] = int64(id)
	}

	_, err = sm.db.ExecContext(ctx,
		`INSERT INTO shots (session_id, rack, shot_number, params, events, pocketed, first_contact, scratch, frames, created_at)
		 VALUES ($1,$2,$3,$4::jsonb,$5::jsonb,$6,$7,$8,$9,NOW())`,
		s.DBID, result.Rack, result.ShotNumber, string(params), string(events), pq.Array(pocketed),
		result.FirstContact, result.Scratch, result.Frames,
	)
	if err != nil {
		log.Printf("[DB] Failed to record shot %d.%d for table %s: %v", result.Rack, result.ShotNumber, s.ID, err)
	}
}

// markSessionStatus mirrors a status change onto the session row.
func (sm *SessionManager) markSessionStatus(ctx context.Context, s *TableSession, status GameStatus) {
	if sm.db == nil || s.DBID == 0 {
		return
	}

	var err error
	switch status {
	case StatusInProgress:
		_, err = sm.db.ExecContext(ctx,
			`UPDATE table_sessions SET status=$1, started_at = COALESCE(started_at, NOW()) WHERE id=$2`,
			string(status), s.DBID)
	case StatusCompleted, StatusCancelled:
		_, err = sm.db.ExecContext(ctx,
			`UPDATE table_sessions SET status=$1, completed_at = NOW() WHERE id=$2`,
			string(status), s.DBID)
	default:
		_, err = sm.db.ExecContext(ctx,
			`UPDATE table_sessions SET status=$1, started_at = NULL, completed_at = NULL WHERE id=$2`,
			string(status), s.DBID)
	}
	if err != nil {
		log.Printf("[DB] Failed to mark table %s as %s: %v", s.ID, status, err)
	}
}

// ShotHistory returns the recorded shots for a table, newest first.
func (sm *SessionManager) ShotHistory(ctx context.Context, id string, limit int) ([]models.Shot, error) {
	if sm.db == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var shots []models.Shot
	err := sm.db.SelectContext(ctx, &shots,
		`SELECT s.id, s.session_id, s.rack, s.shot_number, s.params, s.events, s.pocketed, s.first_contact, s.scratch, s.frames, s.created_at
		   FROM shots s JOIN table_sessions t ON t.id = s.session_id
		  WHERE t.public_id = $1
		  ORDER BY s.rack DESC, s.shot_number DESC
		  LIMIT $2`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("loading shots for %s: %w", id, err)
	}
	return shots, nil
}

// RecentSessions lists the most recently created tables.
func (sm *SessionManager) RecentSessions(ctx context.Context, limit int) ([]models.TableSession, error) {
	if sm.db == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var sessions []models.TableSession
	err := sm.db.SelectContext(ctx, &sessions,
		`SELECT id, public_id, token, status, created_at, started_at, completed_at
		   FROM table_sessions
		  ORDER BY created_at DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return sessions, nil
}

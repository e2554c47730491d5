package game

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/playmatatu/poolphys/internal/config"
)

type recordingBroadcaster struct {
	frames []int
	shots  []*ShotResult
	tables []string
	states []SessionSnapshot
}

func (r *recordingBroadcaster) BroadcastFrame(tableID string, frame int, balls []BallState) {
	r.frames = append(r.frames, frame)
}

func (r *recordingBroadcaster) BroadcastShot(tableID string, result *ShotResult) {
	r.tables = append(r.tables, tableID)
	r.shots = append(r.shots, result)
}

func (r *recordingBroadcaster) BroadcastState(tableID string, snap SessionSnapshot) {
	r.states = append(r.states, snap)
}

func TestCreateAndGetSession(t *testing.T) {
	ctx := context.Background()
	sm := NewSessionManager(nil, nil, nil)

	s, err := sm.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !strings.HasPrefix(s.ID, "tbl_") || len(s.Token) != 32 {
		t.Errorf("unexpected id/token: %q %q", s.ID, s.Token)
	}
	if s.DBID != 0 {
		t.Errorf("no database, DBID should stay 0: %d", s.DBID)
	}

	got, err := sm.GetSession(ctx, s.ID)
	if err != nil || got != s {
		t.Fatalf("GetSession = %p, %v; want %p", got, err, s)
	}
	if _, err := sm.GetSession(ctx, "tbl_missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
	if sm.ActiveSessionCount() != 1 {
		t.Errorf("active = %d, want 1", sm.ActiveSessionCount())
	}
}

func TestManagerTakeShotBroadcasts(t *testing.T) {
	ctx := context.Background()
	cfg := config.Load()
	cfg.FrameBroadcastEvery = 5
	sm := NewSessionManager(nil, nil, cfg)
	b := &recordingBroadcaster{}
	sm.SetBroadcaster(b)

	s, _ := sm.CreateSession(ctx)
	result, err := sm.TakeShot(ctx, s.ID, ShotParams{Power: 2})
	if err != nil {
		t.Fatalf("TakeShot: %v", err)
	}

	if len(b.shots) != 1 || b.shots[0] != result || b.tables[0] != s.ID {
		t.Errorf("shot not broadcast: %d shots", len(b.shots))
	}
	if want := result.Frames / 5; len(b.frames) != want {
		t.Errorf("frames broadcast = %d, want %d", len(b.frames), want)
	}
	for _, f := range b.frames {
		if f%5 != 0 {
			t.Errorf("frame %d broadcast, want multiples of 5", f)
		}
	}
}

func TestManagerTakeShotUnknownTable(t *testing.T) {
	sm := NewSessionManager(nil, nil, nil)
	if _, err := sm.TakeShot(context.Background(), "tbl_nope", ShotParams{Power: 1}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestManagerResetAndPlace(t *testing.T) {
	ctx := context.Background()
	sm := NewSessionManager(nil, nil, nil)
	b := &recordingBroadcaster{}
	sm.SetBroadcaster(b)
	s, _ := sm.CreateSession(ctx)

	if _, err := sm.PlaceCueBall(ctx, s.ID, -0.7, 0.2); err != nil {
		t.Fatalf("PlaceCueBall: %v", err)
	}
	if _, err := sm.TakeShot(ctx, s.ID, ShotParams{Power: 3}); err != nil {
		t.Fatalf("TakeShot: %v", err)
	}

	reset, err := sm.ResetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("ResetSession: %v", err)
	}
	if reset.ShotNumber != 0 || reset.Rack != 2 || reset.Status != StatusWaiting {
		t.Errorf("reset session = %+v", reset.Snapshot())
	}
	if len(b.states) != 2 {
		t.Fatalf("state broadcasts = %d, want 2 (place, reset)", len(b.states))
	}
	if last := b.states[1]; last.ShotNumber != 0 || last.Status != StatusWaiting {
		t.Errorf("last broadcast state = %+v", last)
	}
}

func TestExpireIdle(t *testing.T) {
	ctx := context.Background()
	sm := NewSessionManager(nil, nil, nil)

	stale, _ := sm.CreateSession(ctx)
	fresh, _ := sm.CreateSession(ctx)
	stale.LastActivity = time.Now().Add(-time.Hour)

	expired := sm.ExpireIdle(ctx, 10*time.Minute)
	if len(expired) != 1 || expired[0] != stale.ID {
		t.Fatalf("expired = %v, want [%s]", expired, stale.ID)
	}
	if stale.Status != StatusCancelled {
		t.Errorf("stale status = %s, want CANCELLED", stale.Status)
	}
	if _, err := sm.GetSession(ctx, stale.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expired table still reachable: %v", err)
	}
	if _, err := sm.GetSession(ctx, fresh.ID); err != nil {
		t.Errorf("fresh table was expired: %v", err)
	}
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()
	sm := NewSessionManager(nil, nil, nil)
	b := &recordingBroadcaster{}
	sm.SetBroadcaster(b)
	s, _ := sm.CreateSession(ctx)

	if err := sm.EndSession(ctx, s.ID, StatusCancelled); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if len(b.states) != 1 || b.states[0].Status != StatusCancelled {
		t.Errorf("close not broadcast: %+v", b.states)
	}
	if err := sm.EndSession(ctx, s.ID, StatusCancelled); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second EndSession err = %v", err)
	}
	if _, err := s.TakeShot(ShotParams{Power: 1}, nil); !errors.Is(err, ErrTableClosed) {
		t.Errorf("closed table accepted a shot: %v", err)
	}
}

func TestShotHistoryNeedsDatabase(t *testing.T) {
	sm := NewSessionManager(nil, nil, nil)
	if _, err := sm.ShotHistory(context.Background(), "tbl_x", 10); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("err = %v, want ErrNoDatabase", err)
	}
	if _, err := sm.RecentSessions(context.Background(), 10); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("err = %v, want ErrNoDatabase", err)
	}
}

func TestStartIdleWorkerWithoutManager(t *testing.T) {
	// Must return without starting anything.
	StartIdleWorker(context.Background(), nil, &config.Config{})
	StartIdleWorker(context.Background(), NewSessionManager(nil, nil, nil), nil)
}

func TestSessionTTLDefaults(t *testing.T) {
	if got := sessionTTL(nil); got != time.Hour {
		t.Errorf("nil config ttl = %v, want 1h", got)
	}
	if got := sessionTTL(&config.Config{SessionTTLMinutes: 0}); got != time.Hour {
		t.Errorf("zero ttl = %v, want 1h", got)
	}
	if got := sessionTTL(&config.Config{SessionTTLMinutes: 15}); got != 15*time.Minute {
		t.Errorf("ttl = %v, want 15m", got)
	}
}

func TestExpireIdleWithZeroTTLKeepsFreshTables(t *testing.T) {
	ctx := context.Background()
	sm := NewSessionManager(nil, nil, &config.Config{SessionTTLMinutes: 0})
	fresh, _ := sm.CreateSession(ctx)

	if expired := sm.ExpireIdle(ctx, 0); len(expired) != 0 {
		t.Errorf("expired = %v, want none", expired)
	}
	if _, err := sm.GetSession(ctx, fresh.ID); err != nil {
		t.Errorf("fresh table was closed: %v", err)
	}
}

package game

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/playmatatu/poolphys/internal/physics"
)

func newTestSession(t *testing.T) *TableSession {
	t.Helper()
	s, err := NewTableSession("tbl_test", "token", physics.DefaultConfig())
	if err != nil {
		t.Fatalf("NewTableSession: %v", err)
	}
	return s
}

// arrange replaces the session's balls with the given layout.
func arrange(s *TableSession, placed map[int][2]float64) {
	states := make([]BallState, NumBalls)
	for i := range states {
		states[i] = BallState{ID: i}
		if xz, ok := placed[i]; ok {
			states[i] = BallState{ID: i, X: xz[0], Y: BallRadius, Z: xz[1], Active: true}
		}
	}
	s.engine.Restore(states)
}

// aimAtCornerPocket returns the angle from (x, z) to pocket 5.
func aimAtCornerPocket(s *TableSession, x, z float64) float64 {
	p := s.engine.Table.Pockets[5].Position
	return math.Atan2(p.Z()-z, p.X()-x)
}

func TestSessionBreakShot(t *testing.T) {
	s := newTestSession(t)

	result, err := s.TakeShot(ShotParams{Power: 4}, nil)
	if err != nil {
		t.Fatalf("TakeShot: %v", err)
	}
	if result.ShotNumber != 1 || s.ShotNumber != 1 {
		t.Errorf("shot number = %d/%d, want 1", result.ShotNumber, s.ShotNumber)
	}
	if s.Status == StatusWaiting || s.StartedAt == nil {
		t.Errorf("status = %s started=%v", s.Status, s.StartedAt)
	}
	if result.Params.Power != 4 {
		t.Errorf("params not echoed: %+v", result.Params)
	}
	if result.Balls[8].Group != Group8Ball || result.Balls[0].Group != GroupCue || result.Balls[12].Group != GroupStripes {
		t.Error("balls not labelled with their groups")
	}
}

func TestSessionRejectsBadShot(t *testing.T) {
	s := newTestSession(t)

	if _, err := s.TakeShot(ShotParams{Power: 100}, nil); !errors.Is(err, ErrInvalidPower) {
		t.Errorf("err = %v, want ErrInvalidPower", err)
	}
	if s.ShotNumber != 0 || s.Status != StatusWaiting {
		t.Errorf("rejected shot changed the session: shot=%d status=%s", s.ShotNumber, s.Status)
	}
}

func TestScratchGivesBallInHand(t *testing.T) {
	s := newTestSession(t)
	arrange(s, map[int][2]float64{0: {1.0, 0.4}, 1: {-0.5, 0}})

	result, err := s.TakeShot(ShotParams{Angle: aimAtCornerPocket(s, 1.0, 0.4), Power: 2}, nil)
	if err != nil {
		t.Fatalf("TakeShot: %v", err)
	}
	if !result.Scratch || !result.BallInHand || !s.BallInHand {
		t.Fatalf("expected a scratch with ball in hand: %+v", result)
	}

	if _, err := s.TakeShot(ShotParams{Power: 1}, nil); !errors.Is(err, ErrBallInHand) {
		t.Errorf("err = %v, want ErrBallInHand", err)
	}
	if err := s.PlaceCueBall(-0.6, 0); err != nil {
		t.Fatalf("PlaceCueBall: %v", err)
	}
	if s.BallInHand {
		t.Error("ball in hand should be cleared")
	}
	if _, err := s.TakeShot(ShotParams{Power: 1}, nil); err != nil {
		t.Errorf("shot after placing: %v", err)
	}
}

func TestPlaceCueBallNeedsBallInHand(t *testing.T) {
	s := newTestSession(t)

	// Before the break the cue ball may be moved freely
	if err := s.PlaceCueBall(-0.7, 0.1); err != nil {
		t.Fatalf("PlaceCueBall before break: %v", err)
	}

	if _, err := s.TakeShot(ShotParams{Power: 0.5}, nil); err != nil {
		t.Fatalf("TakeShot: %v", err)
	}
	if err := s.PlaceCueBall(-0.7, -0.1); !errors.Is(err, ErrNotBallInHand) {
		t.Errorf("err = %v, want ErrNotBallInHand", err)
	}
}

func TestPocketingEightEndsTheGame(t *testing.T) {
	s := newTestSession(t)
	angle := aimAtCornerPocket(s, 0.6, 0.05)
	dir := [2]float64{math.Cos(angle), math.Sin(angle)}
	arrange(s, map[int][2]float64{
		0: {0.6, 0.05},
		8: {0.6 + 0.2*dir[0], 0.05 + 0.2*dir[1]},
	})

	result, err := s.TakeShot(ShotParams{Angle: angle, Power: 3}, nil)
	if err != nil {
		t.Fatalf("TakeShot: %v", err)
	}
	if !result.GameOver {
		t.Fatalf("8-ball should have dropped: pocketed=%v", result.Pocketed)
	}
	if s.Status != StatusCompleted || s.CompletedAt == nil {
		t.Errorf("status = %s", s.Status)
	}
	if _, err := s.TakeShot(ShotParams{Power: 1}, nil); !errors.Is(err, ErrTableClosed) {
		t.Errorf("err = %v, want ErrTableClosed", err)
	}
}

func TestSessionReset(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.TakeShot(ShotParams{Power: 4}, nil); err != nil {
		t.Fatalf("TakeShot: %v", err)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.ShotNumber != 0 || s.Status != StatusWaiting || s.BallInHand || s.StartedAt != nil {
		t.Errorf("session not reset: %+v", s.Snapshot())
	}
	if s.Rack != 2 {
		t.Errorf("rack = %d after one reset, want 2", s.Rack)
	}

	rack := Standard8BallRack()
	for _, b := range s.Balls() {
		if !b.Active || b.X != rack[b.ID].X() || b.Z != rack[b.ID].Z() {
			t.Errorf("ball %d not re-racked: %+v", b.ID, b)
		}
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.TakeShot(ShotParams{Angle: 0.02, Power: 4}, nil); err != nil {
		t.Fatalf("TakeShot: %v", err)
	}
	snap := s.Snapshot()

	other := newTestSession(t)
	other.restore(snap)

	got := other.Snapshot()
	if got.ShotNumber != snap.ShotNumber || got.Rack != snap.Rack || got.Status != snap.Status || got.BallInHand != snap.BallInHand {
		t.Errorf("restored header = %+v, want %+v", got, snap)
	}
	for i := range snap.Balls {
		want := snap.Balls[i]
		if got.Balls[i].Active != want.Active {
			t.Errorf("ball %d active = %v, want %v", i, got.Balls[i].Active, want.Active)
		}
		if want.Active && (got.Balls[i].X != want.X || got.Balls[i].Z != want.Z) {
			t.Errorf("ball %d at (%.4f, %.4f), want (%.4f, %.4f)", i, got.Balls[i].X, got.Balls[i].Z, want.X, want.Z)
		}
	}
}

func TestShotKeysUniqueAcrossResets(t *testing.T) {
	s := newTestSession(t)
	seen := make(map[[2]int]bool)

	for rack := 1; rack <= 3; rack++ {
		arrange(s, map[int][2]float64{0: {0, 0}})
		for _, angle := range []float64{0, math.Pi} {
			result, err := s.TakeShot(ShotParams{Angle: angle, Power: 0.5}, nil)
			if err != nil {
				t.Fatalf("rack %d: TakeShot: %v", rack, err)
			}
			if result.Rack != rack {
				t.Errorf("result rack = %d, want %d", result.Rack, rack)
			}
			key := [2]int{result.Rack, result.ShotNumber}
			if seen[key] {
				t.Errorf("shot key %v reused", key)
			}
			seen[key] = true
		}
		if err := s.Reset(); err != nil {
			t.Fatalf("Reset: %v", err)
		}
	}
	if len(seen) != 6 {
		t.Errorf("distinct shot keys = %d, want 6", len(seen))
	}
}

func TestRestoreDefaultsRack(t *testing.T) {
	s := newTestSession(t)
	snap := s.Snapshot()
	snap.Rack = 0

	s.restore(snap)
	if s.Rack != 1 {
		t.Errorf("rack = %d, want 1 for a snapshot without one", s.Rack)
	}
}

func TestShotIntoRailKeepsTablePlayable(t *testing.T) {
	s := newTestSession(t)
	if err := s.PlaceCueBall(-0.5, TableWidth/2-BallRadius); err != nil {
		t.Fatalf("PlaceCueBall: %v", err)
	}

	result, err := s.TakeShot(ShotParams{Angle: math.Pi / 2, Power: 4}, nil)
	if err != nil {
		t.Fatalf("TakeShot: %v", err)
	}
	if !result.Settled {
		t.Error("shot into the rail did not settle")
	}
	cue := result.Balls[0]
	if !cue.Active || math.IsNaN(cue.X) || math.IsNaN(cue.Z) {
		t.Errorf("cue ball = %+v", cue)
	}
	if _, err := json.Marshal(result); err != nil {
		t.Errorf("result does not encode: %v", err)
	}
	if _, err := json.Marshal(s.Snapshot()); err != nil {
		t.Errorf("snapshot does not encode: %v", err)
	}
	if _, err := s.TakeShot(ShotParams{Angle: -math.Pi / 2, Power: 1}, nil); err != nil {
		t.Errorf("next shot refused: %v", err)
	}
}

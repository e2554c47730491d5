package game

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/playmatatu/poolphys/internal/physics"
)

var (
	ErrCueBallPocketed  = errors.New("cue ball is not on the table")
	ErrInvalidPower     = errors.New("shot power out of range")
	ErrInvalidPlacement = errors.New("ball cannot be placed there")
	ErrBallsMoving      = errors.New("balls are still moving")
	ErrWorldFull        = errors.New("physics world has no room for the table")
)

// CollisionEvent records a contact for rule checking and sound playback.
type CollisionEvent struct {
	Type     string  `json:"type"` // "ball", "cushion", "pocket", "off_table"
	BallID   int     `json:"ball_id"`
	TargetID int     `json:"target_id"` // ball ID, cushion index or pocket ID
	Speed    float64 `json:"speed"`     // impact speed (for sound volume)
	Step     uint64  `json:"step"`
}

type bodyKind int

const (
	kindBall bodyKind = iota
	kindSlate
	kindCushion
	kindPocket
)

// bodyRef maps a world entity back to the table object it represents.
type bodyRef struct {
	kind  bodyKind
	index int
}

type pairKey struct {
	a, b physics.Entity
}

// FrameFunc receives the ball states after every rendered frame.
type FrameFunc func(frame int, balls []BallState)

// PhysicsEngine drives a pool table through a physics.World. The engine owns
// the position storage the world reads and writes.
type PhysicsEngine struct {
	Table *Table
	World *physics.World

	baseStep    float64 // configured world step, refined per frame
	positions   [NumBalls]mgl64.Vec3
	slatePos    mgl64.Vec3
	cushionPos  []mgl64.Vec3
	pocketPos   []mgl64.Vec3
	ballEntity  [NumBalls]physics.Entity
	active      [NumBalls]bool
	refs        map[physics.Entity]bodyRef
	lastContact map[pairKey]uint64

	Events              []CollisionEvent
	Pocketed            []int
	FirstContact        int
	CushionAfterContact bool
}

// NewPhysicsEngine builds the world for table: static slate, cushions and
// pockets first, then the sixteen racked balls, asleep.
func NewPhysicsEngine(table *Table, cfg physics.Config) (*PhysicsEngine, error) {
	pe := &PhysicsEngine{
		Table:        table,
		World:        physics.NewWorld(cfg),
		cushionPos:   make([]mgl64.Vec3, len(table.Cushions)),
		pocketPos:    make([]mgl64.Vec3, len(table.Pockets)),
		baseStep:     cfg.TimeStep,
		refs:         make(map[physics.Entity]bodyRef),
		lastContact:  make(map[pairKey]uint64),
		FirstContact: -1,
	}

	pe.slatePos = table.Slate.Center
	if err := pe.addStatic(&pe.slatePos, physics.NewAABB(table.Slate.HalfExtents), bodyRef{kind: kindSlate}); err != nil {
		return nil, err
	}
	for i, c := range table.Cushions {
		pe.cushionPos[i] = c.Center
		if err := pe.addStatic(&pe.cushionPos[i], physics.NewAABB(c.HalfExtents), bodyRef{kind: kindCushion, index: i}); err != nil {
			return nil, err
		}
	}
	for i, p := range table.Pockets {
		pe.pocketPos[i] = p.Position
		if err := pe.addStatic(&pe.pocketPos[i], physics.NewSphere(PocketRadius), bodyRef{kind: kindPocket, index: i}); err != nil {
			return nil, err
		}
	}

	pe.positions = Standard8BallRack()
	for id := 0; id < NumBalls; id++ {
		e := pe.World.AddEntity(&pe.positions[id])
		if e == physics.ErrorEntity {
			return nil, fmt.Errorf("adding ball %d: %w", id, ErrWorldFull)
		}
		pe.World.AddCollider(physics.NewSphere(BallRadius), e)
		pe.World.MakeDynamic(e)
		mass := BallMass
		if id == 0 {
			mass = CueBallMass
		}
		pe.World.SetMass(e, mass)
		pe.World.AddCollisionCallback(e, pe.onBallContact(id))
		pe.World.SetSleeping(e, true)

		pe.ballEntity[id] = e
		pe.active[id] = true
		pe.refs[e] = bodyRef{kind: kindBall, index: id}
	}

	return pe, nil
}

func (pe *PhysicsEngine) addStatic(pos *mgl64.Vec3, c physics.Collider, ref bodyRef) error {
	e := pe.World.AddEntity(pos)
	if e == physics.ErrorEntity {
		return ErrWorldFull
	}
	pe.World.AddCollider(c, e)
	pe.World.MakeStatic(e)
	pe.refs[e] = ref
	return nil
}

// onBallContact returns the callback registered on ball id. A ball/ball
// contact invokes the callbacks of both balls, so pair events are only
// recorded from the first participant.
func (pe *PhysicsEngine) onBallContact(id int) physics.CollisionFunc {
	return func(w *physics.World, a, b physics.Entity) {
		if !pe.active[id] {
			return
		}
		if pe.lost(id) {
			pe.leaveTable(id)
			return
		}
		self := pe.ballEntity[id]
		other := b
		if self == b {
			other = a
		}

		ref := pe.refs[other]
		switch ref.kind {
		case kindBall:
			if !pe.active[ref.index] {
				return
			}
			pe.wake(self)
			if self == a && pe.entered(a, b) {
				speed := w.Velocity(a).Sub(w.Velocity(b)).Len()
				pe.record("ball", id, ref.index, speed)
				if pe.FirstContact == -1 {
					if id == 0 {
						pe.FirstContact = ref.index
					} else if ref.index == 0 {
						pe.FirstContact = id
					}
				}
			}
		case kindSlate:
			pe.applyRollingResistance(self)
		case kindCushion:
			if pe.entered(self, other) {
				pe.record("cushion", id, ref.index, horizontal(w.Velocity(self)).Len())
				if pe.FirstContact != -1 {
					pe.CushionAfterContact = true
				}
			}
		case kindPocket:
			pe.record("pocket", id, pe.Table.Pockets[ref.index].ID, horizontal(w.Velocity(self)).Len())
			pe.retire(id)
		}
	}
}

// entered reports whether this is the first sub-step of a contact between a
// and b, and notes the contact for the next sub-step.
func (pe *PhysicsEngine) entered(a, b physics.Entity) bool {
	key := pairKey{a, b}
	step := pe.World.Steps()
	last, seen := pe.lastContact[key]
	pe.lastContact[key] = step
	return !seen || last+1 < step
}

// wake lets a resting ball that was just hit move again. SetSleeping clears
// the velocity, so the impulse it received is put back.
func (pe *PhysicsEngine) wake(e physics.Entity) {
	if !pe.World.Sleeping(e) {
		return
	}
	v := pe.World.Velocity(e)
	if v == (mgl64.Vec3{}) {
		return
	}
	pe.World.SetSleeping(e, false)
	pe.World.SetVelocity(e, v)
}

// applyRollingResistance slows a ball touching the slate by one world step's
// worth of RollingResistance.
func (pe *PhysicsEngine) applyRollingResistance(e physics.Entity) {
	if pe.World.Sleeping(e) {
		return
	}
	k := 1 - RollingResistance*pe.World.TimeStep
	v := pe.World.Velocity(e)
	v[0] *= k
	v[2] *= k
	pe.World.SetVelocity(e, v)
}

// retire takes a ball out of play and parks it in the tray.
func (pe *PhysicsEngine) retire(id int) {
	if !pe.active[id] {
		return
	}
	pe.active[id] = false
	pe.World.SetSleeping(pe.ballEntity[id], true)
	pe.positions[id] = TrayPosition(id)
	pe.Pocketed = append(pe.Pocketed, id)
}

// lost reports whether ball id's state has degenerated to NaN or Inf.
func (pe *PhysicsEngine) lost(id int) bool {
	return !finite(pe.positions[id]) || !finite(pe.World.Velocity(pe.ballEntity[id]))
}

func (pe *PhysicsEngine) leaveTable(id int) {
	pe.record("off_table", id, -1, pe.World.Velocity(pe.ballEntity[id]).Len())
	pe.retire(id)
}

func (pe *PhysicsEngine) record(kind string, ballID, targetID int, speed float64) {
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		speed = 0
	}
	pe.Events = append(pe.Events, CollisionEvent{
		Type:     kind,
		BallID:   ballID,
		TargetID: targetID,
		Speed:    speed,
		Step:     pe.World.Steps(),
	})
}

// Strike hits the cue ball with a horizontal impulse. Power is the resulting
// cue ball speed in m/s; Angle is measured in the table plane from +x towards
// +z. Screw and English are carried on the shot but not simulated.
func (pe *PhysicsEngine) Strike(params ShotParams) error {
	if !pe.active[0] {
		return ErrCueBallPocketed
	}
	if math.IsNaN(params.Power) || params.Power < MinStrikeSpeed || params.Power > MaxStrikeSpeed {
		return fmt.Errorf("%w: %.3f not in [%.2f, %.2f]", ErrInvalidPower, params.Power, MinStrikeSpeed, MaxStrikeSpeed)
	}
	if !pe.AllStopped() {
		return ErrBallsMoving
	}

	pe.Events = make([]CollisionEvent, 0)
	pe.Pocketed = nil
	pe.FirstContact = -1
	pe.CushionAfterContact = false
	clear(pe.lastContact)

	cue := pe.ballEntity[0]
	dir := mgl64.Vec3{math.Cos(params.Angle), 0, math.Sin(params.Angle)}
	pe.World.ApplyImpulse(cue, dir.Mul(pe.World.Mass(cue)*params.Power))
	return nil
}

// Step advances the table by one frame of dt seconds. Large frames are
// clamped so a stalled caller cannot queue an unbounded number of sub-steps.
func (pe *PhysicsEngine) Step(dt float64) {
	if dt < 0 {
		dt = 0
	}
	if dt > MaxFrameDelta {
		dt = MaxFrameDelta
	}
	pe.World.TimeStep = pe.subStep()
	pe.World.Update(dt)
	pe.settle()
}

// subStep picks the world step for the next frame: the configured one, or a
// finer one while the fastest ball would travel further than
// MaxSubStepTravel in a single step. Contacts never add speed, so the bound
// holds for the whole frame.
func (pe *PhysicsEngine) subStep() float64 {
	h := pe.baseStep
	fastest := 0.0
	for id := 0; id < NumBalls; id++ {
		e := pe.ballEntity[id]
		if !pe.active[id] || pe.World.Sleeping(e) {
			continue
		}
		if v := pe.World.Velocity(e).Len(); v > fastest {
			fastest = v
		}
	}
	if fastest*h > MaxSubStepTravel {
		h = MaxSubStepTravel / fastest
	}
	return h
}

// settle retires balls that fell off the table or whose state is no longer
// finite, and puts to sleep those whose horizontal motion has stopped.
func (pe *PhysicsEngine) settle() {
	for id := 0; id < NumBalls; id++ {
		if !pe.active[id] {
			continue
		}
		e := pe.ballEntity[id]
		if pe.lost(id) || pe.positions[id].Y() < FallLimit {
			pe.leaveTable(id)
			continue
		}
		if pe.World.Sleeping(e) {
			continue
		}
		if horizontal(pe.World.Velocity(e)) == (mgl64.Vec3{}) {
			pe.World.SetSleeping(e, true)
		}
	}
}

// AllStopped returns true if every active ball is asleep.
func (pe *PhysicsEngine) AllStopped() bool {
	for id := 0; id < NumBalls; id++ {
		if pe.active[id] && !pe.World.Sleeping(pe.ballEntity[id]) {
			return false
		}
	}
	return true
}

// Simulate steps at FrameDelta until every ball has stopped or maxSeconds of
// table time have passed. Balls still moving at the limit are stopped where
// they are, so the table can always take the next shot; Settled reports
// whether that was needed. onFrame may be nil.
func (pe *PhysicsEngine) Simulate(maxSeconds float64, onFrame FrameFunc) *ShotResult {
	frames := 0
	elapsed := 0.0
	for !pe.AllStopped() && elapsed < maxSeconds {
		pe.Step(FrameDelta)
		elapsed += FrameDelta
		frames++
		if onFrame != nil {
			onFrame(frames, pe.Balls())
		}
	}

	settled := pe.AllStopped()
	if !settled {
		for id := 0; id < NumBalls; id++ {
			if pe.active[id] {
				pe.World.SetSleeping(pe.ballEntity[id], true)
			}
		}
	}

	return &ShotResult{
		Events:              pe.Events,
		Pocketed:            append([]int(nil), pe.Pocketed...),
		FirstContact:        pe.FirstContact,
		CushionAfterContact: pe.CushionAfterContact,
		Balls:               pe.Balls(),
		Frames:              frames,
		SimulatedSeconds:    elapsed,
		Settled:             settled,
	}
}

// Balls returns a snapshot of every ball.
func (pe *PhysicsEngine) Balls() []BallState {
	balls := make([]BallState, NumBalls)
	for id := 0; id < NumBalls; id++ {
		p := pe.positions[id]
		balls[id] = BallState{
			ID:       id,
			X:        p.X(),
			Y:        p.Y(),
			Z:        p.Z(),
			Active:   pe.active[id],
			Sleeping: pe.World.Sleeping(pe.ballEntity[id]),
		}
	}
	return balls
}

// Ball returns ball id's state.
func (pe *PhysicsEngine) Ball(id int) (BallState, bool) {
	if id < 0 || id >= NumBalls {
		return BallState{}, false
	}
	return pe.Balls()[id], true
}

// Active reports whether ball id is still in play.
func (pe *PhysicsEngine) Active(id int) bool {
	return id >= 0 && id < NumBalls && pe.active[id]
}

// Place puts ball id at rest on the slate at (x, z), returning it to play.
// The spot must be on the playing surface and clear of other balls.
func (pe *PhysicsEngine) Place(id int, x, z float64) error {
	if id < 0 || id >= NumBalls {
		return fmt.Errorf("%w: no ball %d", ErrInvalidPlacement, id)
	}
	if !pe.AllStopped() {
		return ErrBallsMoving
	}
	if !pe.Table.OnSurface(x, z) {
		return fmt.Errorf("%w: (%.3f, %.3f) is off the playing surface", ErrInvalidPlacement, x, z)
	}

	spot := mgl64.Vec3{x, BallRadius, z}
	for other := 0; other < NumBalls; other++ {
		if other == id || !pe.active[other] {
			continue
		}
		if pe.positions[other].Sub(spot).Len() < 2*BallRadius {
			return fmt.Errorf("%w: overlaps ball %d", ErrInvalidPlacement, other)
		}
	}

	pe.positions[id] = spot
	pe.active[id] = true
	pe.World.SetSleeping(pe.ballEntity[id], true)
	return nil
}

// Restore moves every ball to the given states, all at rest. Balls missing
// from states are left where they are.
func (pe *PhysicsEngine) Restore(states []BallState) {
	for _, s := range states {
		if s.ID < 0 || s.ID >= NumBalls {
			continue
		}
		pe.active[s.ID] = s.Active
		if s.Active {
			pe.positions[s.ID] = mgl64.Vec3{s.X, s.Y, s.Z}
		} else {
			pe.positions[s.ID] = TrayPosition(s.ID)
		}
		pe.World.SetSleeping(pe.ballEntity[s.ID], true)
	}
}

func finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func horizontal(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.X(), 0, v.Z()}
}

package physics

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Entity is a handle into the world's parallel arrays. Handles are never
// recycled.
type Entity int

// ErrorEntity is returned by AddEntity when the world cannot take another body.
const ErrorEntity Entity = -1

// DefaultMaxEntities is the capacity used by DefaultConfig.
const DefaultMaxEntities = 64

// CollisionFunc is invoked for every contact involving the entity it was
// registered on. It receives both participants in sweep order and may mutate
// the world; later pairs in the same sub-step see those changes.
type CollisionFunc func(w *World, a, b Entity)

// Config holds the tunables fixed at world construction.
type Config struct {
	Gravity           mgl64.Vec3
	AirResistance     float64
	VelocityThreshold float64
	TimeStep          float64
	MaxEntities       int

	// RejectNaNContacts drops contacts whose geometry degenerated to NaN
	// instead of feeding them to the resolver.
	RejectNaNContacts bool
}

// DefaultConfig returns the standard tuning: earth gravity, light drag and a
// 120 Hz step.
func DefaultConfig() Config {
	return Config{
		Gravity:           mgl64.Vec3{0, -9.8, 0},
		AirResistance:     0.3,
		VelocityThreshold: 0.075,
		TimeStep:          1.0 / 120.0,
		MaxEntities:       DefaultMaxEntities,
	}
}

// World owns every body's simulation state except positions, which live in
// storage supplied by the caller and are read and written through pointers.
type World struct {
	Gravity           mgl64.Vec3
	AirResistance     float64
	VelocityThreshold float64
	TimeStep          float64

	rejectNaN bool

	positions  []*mgl64.Vec3
	velocities []mgl64.Vec3
	masses     []float64
	colliders  []Collider
	callbacks  []CollisionFunc
	sleeping   []bool
	static     []bool

	numEntities  int
	numColliders int

	staticEntities  []Entity
	dynamicEntities []Entity

	accumulator float64
	steps       uint64
}

// NewWorld allocates a world with room for cfg.MaxEntities bodies.
func NewWorld(cfg Config) *World {
	capacity := cfg.MaxEntities
	if capacity <= 0 {
		capacity = DefaultMaxEntities
	}

	w := &World{
		Gravity:           cfg.Gravity,
		AirResistance:     cfg.AirResistance,
		VelocityThreshold: cfg.VelocityThreshold,
		TimeStep:          cfg.TimeStep,
		rejectNaN:         cfg.RejectNaNContacts,
		positions:         make([]*mgl64.Vec3, capacity),
		velocities:        make([]mgl64.Vec3, capacity),
		masses:            make([]float64, capacity),
		colliders:         make([]Collider, capacity),
		callbacks:         make([]CollisionFunc, capacity),
		sleeping:          make([]bool, capacity),
		static:            make([]bool, capacity),
		staticEntities:    make([]Entity, 0, capacity),
		dynamicEntities:   make([]Entity, 0, capacity),
	}
	for i := range w.masses {
		w.masses[i] = 1
	}
	return w
}

// Capacity is the fixed number of entities the world can hold.
func (w *World) Capacity() int { return len(w.positions) }

// NumEntities is the number of entities created so far.
func (w *World) NumEntities() int { return w.numEntities }

// NumColliders is the number of entities that had a collider attached.
func (w *World) NumColliders() int { return w.numColliders }

// valid reports whether e names an entity that has been created.
func (w *World) valid(e Entity) bool {
	return e >= 0 && int(e) < w.numEntities
}

// AddEntity registers a body whose position lives at pos. The caller keeps
// ownership of pos; the world only reads and writes through it.
// It returns ErrorEntity when the world is full or pos is nil.
func (w *World) AddEntity(pos *mgl64.Vec3) Entity {
	if pos == nil || w.numEntities >= len(w.positions) {
		return ErrorEntity
	}
	e := Entity(w.numEntities)
	w.positions[e] = pos
	w.numEntities++
	return e
}

// AddCollider attaches the entity's shape. Call it once per entity, before
// MakeStatic or MakeDynamic.
func (w *World) AddCollider(c Collider, e Entity) {
	if !w.valid(e) {
		return
	}
	w.colliders[e] = c
	w.numColliders++
}

// MakeStatic classifies e as immovable. Exactly one of MakeStatic and
// MakeDynamic must be called per entity; a second call is not detected.
func (w *World) MakeStatic(e Entity) {
	if !w.valid(e) {
		return
	}
	w.static[e] = true
	w.staticEntities = append(w.staticEntities, e)
}

// MakeDynamic classifies e as a body subject to integration and impulses.
func (w *World) MakeDynamic(e Entity) {
	if !w.valid(e) {
		return
	}
	w.static[e] = false
	w.dynamicEntities = append(w.dynamicEntities, e)
}

// SetMass sets the entity's mass. Masses start at 1.
func (w *World) SetMass(e Entity, mass float64) {
	if !w.valid(e) {
		return
	}
	w.masses[e] = mass
}

// AddCollisionCallback registers fn for contacts involving e, replacing any
// previous callback.
func (w *World) AddCollisionCallback(e Entity, fn CollisionFunc) {
	if !w.valid(e) {
		return
	}
	w.callbacks[e] = fn
}

// SetSleeping toggles integration for e. The velocity is zeroed either way.
func (w *World) SetSleeping(e Entity, sleeping bool) {
	if !w.valid(e) {
		return
	}
	w.sleeping[e] = sleeping
	w.velocities[e] = mgl64.Vec3{}
}

// Sleeping reports whether e is excluded from integration.
func (w *World) Sleeping(e Entity) bool {
	return w.valid(e) && w.sleeping[e]
}

// IsStatic reports whether e was classified static.
func (w *World) IsStatic(e Entity) bool {
	return w.valid(e) && w.static[e]
}

// Position returns the current value of e's position.
func (w *World) Position(e Entity) mgl64.Vec3 {
	if !w.valid(e) {
		return mgl64.Vec3{}
	}
	return *w.positions[e]
}

// Velocity returns e's velocity.
func (w *World) Velocity(e Entity) mgl64.Vec3 {
	if !w.valid(e) {
		return mgl64.Vec3{}
	}
	return w.velocities[e]
}

// SetVelocity overwrites e's velocity without touching its sleep flag.
func (w *World) SetVelocity(e Entity, v mgl64.Vec3) {
	if !w.valid(e) || w.static[e] {
		return
	}
	w.velocities[e] = v
}

// ApplyImpulse changes e's velocity by impulse/mass and wakes it.
func (w *World) ApplyImpulse(e Entity, impulse mgl64.Vec3) {
	if !w.valid(e) || w.static[e] {
		return
	}
	inv := w.body(e).inverseMass()
	w.sleeping[e] = false
	w.velocities[e] = w.velocities[e].Add(impulse.Mul(inv))
}

// Mass returns e's mass.
func (w *World) Mass(e Entity) float64 {
	if !w.valid(e) {
		return 0
	}
	return w.masses[e]
}

// Collider returns e's shape.
func (w *World) Collider(e Entity) Collider {
	if !w.valid(e) {
		return Collider{}
	}
	return w.colliders[e]
}

// StaticEntities returns a copy of the static membership list.
func (w *World) StaticEntities() []Entity {
	return append([]Entity(nil), w.staticEntities...)
}

// DynamicEntities returns a copy of the dynamic membership list.
func (w *World) DynamicEntities() []Entity {
	return append([]Entity(nil), w.dynamicEntities...)
}

// Accumulator is the simulated time not yet consumed by a whole sub-step.
func (w *World) Accumulator() float64 { return w.accumulator }

// Steps is the total number of sub-steps run since construction.
func (w *World) Steps() uint64 { return w.steps }

// Update advances the simulation by dt. Time is consumed in whole TimeStep
// slices; any remainder carries over to the next call. Callers should clamp
// dt, since the loop runs to completion however large it is.
func (w *World) Update(dt float64) {
	if w.TimeStep <= 0 {
		return
	}

	w.accumulator += dt
	for w.accumulator >= w.TimeStep {
		w.integrate()
		w.sweep()
		w.accumulator -= w.TimeStep
		w.steps++
	}
}

// integrate advances every awake dynamic entity by one sub-step using
// semi-implicit Euler with linear drag.
func (w *World) integrate() {
	h := w.TimeStep
	halfGravity := w.Gravity.Mul(0.5 * h * h)
	drag := 1 - w.AirResistance*h

	for _, e := range w.dynamicEntities {
		if w.sleeping[e] {
			continue
		}

		v := w.velocities[e]
		pos := w.positions[e]
		*pos = pos.Add(v.Mul(h)).Add(halfGravity)

		v = v.Add(w.Gravity.Mul(h)).Mul(drag)
		if v.Len() < w.VelocityThreshold {
			v = mgl64.Vec3{}
		}
		w.velocities[e] = v
	}
}

// sweep tests every dynamic pair once, then every dynamic entity against
// every static one.
func (w *World) sweep() {
	for i := 0; i < len(w.dynamicEntities); i++ {
		for j := i + 1; j < len(w.dynamicEntities); j++ {
			w.collide(w.dynamicEntities[i], w.dynamicEntities[j])
		}
	}

	for _, d := range w.dynamicEntities {
		for _, s := range w.staticEntities {
			w.collide(d, s)
		}
	}
}

func (w *World) collide(a, b Entity) {
	result := Intersect(w.colliders[a], *w.positions[a], w.colliders[b], *w.positions[b])
	if !result.Intersected {
		return
	}
	if w.rejectNaN && result.HasNaN() {
		return
	}

	Resolve(result, w.body(a), w.body(b))

	if cb := w.callbacks[a]; cb != nil {
		cb(w, a, b)
	}
	if cb := w.callbacks[b]; cb != nil {
		cb(w, a, b)
	}
}

func (w *World) body(e Entity) Body {
	return Body{
		Position: w.positions[e],
		Velocity: &w.velocities[e],
		Mass:     w.masses[e],
		Static:   w.static[e],
	}
}

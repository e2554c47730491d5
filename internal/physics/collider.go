package physics

import (
	"github.com/go-gl/mathgl/mgl64"
)

// ShapeKind tags which fields of a Collider are meaningful.
type ShapeKind int

const (
	ShapeNone ShapeKind = iota
	ShapeSphere
	ShapeAABB
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeSphere:
		return "sphere"
	case ShapeAABB:
		return "aabb"
	default:
		return "none"
	}
}

// Collider is the shape attached to an entity. It is set once and never
// changed afterwards.
type Collider struct {
	Kind        ShapeKind  `json:"kind"`
	Radius      float64    `json:"radius,omitempty"` // sphere only
	HalfExtents mgl64.Vec3 `json:"half_extents"`     // aabb only
}

// NewSphere returns a sphere collider.
func NewSphere(radius float64) Collider {
	return Collider{Kind: ShapeSphere, Radius: radius}
}

// NewAABB returns an axis-aligned box collider centred on the entity position.
func NewAABB(halfExtents mgl64.Vec3) Collider {
	return Collider{Kind: ShapeAABB, HalfExtents: halfExtents}
}

// Bounds returns the min and max corners of a box collider placed at pos.
// For a sphere it returns the bounds of its enclosing cube.
func (c Collider) Bounds(pos mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	half := c.HalfExtents
	if c.Kind == ShapeSphere {
		half = mgl64.Vec3{c.Radius, c.Radius, c.Radius}
	}
	return pos.Sub(half), pos.Add(half)
}

// IntersectionResult describes a contact between two colliders. The other
// fields are only meaningful when Intersected is true.
type IntersectionResult struct {
	Intersected      bool
	ContactNormal    mgl64.Vec3 // unit vector pointing from A towards B
	PenetrationDepth float64
	ContactPoint     mgl64.Vec3
}

// HasNaN reports whether the contact geometry came out of a degenerate
// normalize (coincident centres, sphere centre inside a box).
func (r IntersectionResult) HasNaN() bool {
	for i := 0; i < 3; i++ {
		if r.ContactNormal[i] != r.ContactNormal[i] || r.ContactPoint[i] != r.ContactPoint[i] {
			return true
		}
	}
	return r.PenetrationDepth != r.PenetrationDepth
}

// Intersect tests collider a at posA against collider b at posB.
// Box/box pairs and colliders that were never set report no contact.
func Intersect(a Collider, posA mgl64.Vec3, b Collider, posB mgl64.Vec3) IntersectionResult {
	switch {
	case a.Kind == ShapeSphere && b.Kind == ShapeSphere:
		return sphereSphere(a.Radius, posA, b.Radius, posB)
	case a.Kind == ShapeSphere && b.Kind == ShapeAABB:
		return sphereAABB(a.Radius, posA, b.HalfExtents, posB)
	case a.Kind == ShapeAABB && b.Kind == ShapeSphere:
		// Sphere always goes first; flip the normal back to the caller's order.
		r := sphereAABB(b.Radius, posB, a.HalfExtents, posA)
		r.ContactNormal = r.ContactNormal.Mul(-1)
		return r
	}
	return IntersectionResult{}
}

// sphereSphere places the contact point halfway between the two surface
// points rather than weighting it by radius, so swapping A and B leaves it
// unchanged. The resolver does not read it.
func sphereSphere(rA float64, posA mgl64.Vec3, rB float64, posB mgl64.Vec3) IntersectionResult {
	diff := posB.Sub(posA)
	dist := diff.Len()
	sum := rA + rB
	if !(dist < sum) {
		return IntersectionResult{}
	}

	normal := diff.Normalize()
	surfaceA := posA.Add(normal.Mul(rA))
	surfaceB := posB.Sub(normal.Mul(rB))

	return IntersectionResult{
		Intersected:      true,
		ContactNormal:    normal,
		PenetrationDepth: sum - dist,
		ContactPoint:     surfaceA.Add(surfaceB).Mul(0.5),
	}
}

// sphereAABB reports the normal from the sphere towards the box.
func sphereAABB(radius float64, center mgl64.Vec3, half mgl64.Vec3, boxPos mgl64.Vec3) IntersectionResult {
	min := boxPos.Sub(half)
	max := boxPos.Add(half)

	closest := mgl64.Vec3{
		mgl64.Clamp(center[0], min[0], max[0]),
		mgl64.Clamp(center[1], min[1], max[1]),
		mgl64.Clamp(center[2], min[2], max[2]),
	}

	diff := center.Sub(closest)
	distSq := diff.Dot(diff)
	if distSq > radius*radius {
		return IntersectionResult{}
	}

	dist := diff.Len()
	push := diff.Normalize() // box -> sphere
	depth := radius - dist

	return IntersectionResult{
		Intersected:      true,
		ContactNormal:    push.Mul(-1),
		PenetrationDepth: depth,
		ContactPoint:     closest.Add(push.Mul(depth)),
	}
}

package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// Restitution is the fixed coefficient applied to every contact.
	Restitution = 0.7
	// PenetrationSlop is the overlap tolerated before any positional correction.
	PenetrationSlop = 0.01
	// DepenetrationSpeedFactor scales the correction for fast contacts.
	DepenetrationSpeedFactor = 0.1
	// MinInverseMassSum keeps the depenetration divide finite.
	MinInverseMassSum = 1e-6
)

// Body is the kinematic view of one side of a contact. Position and Velocity
// point at live storage and are written in place.
type Body struct {
	Position *mgl64.Vec3
	Velocity *mgl64.Vec3
	Mass     float64
	Static   bool
}

// inverseMass is zero for static bodies and for non-positive masses.
func (b Body) inverseMass() float64 {
	if b.Static || b.Mass <= 0 {
		return 0
	}
	return 1 / b.Mass
}

// Resolve applies the restitution impulse and the penetration correction for
// a contact between a and b. Both steps use the contact normal as computed
// before any update.
func Resolve(result IntersectionResult, a, b Body) {
	normal := result.ContactNormal
	relVel := b.Velocity.Sub(*a.Velocity)
	closing := relVel.Dot(normal)

	// Static contacts always resolve so the dynamic side gets pushed out.
	if closing > 0 && !a.Static && !b.Static {
		return
	}

	invA := a.inverseMass()
	invB := b.inverseMass()
	invSum := invA + invB
	if invSum == 0 {
		return
	}

	impulse := -(1 + Restitution) * closing / invSum
	if !a.Static {
		*a.Velocity = a.Velocity.Sub(normal.Mul(impulse * invA))
	}
	if !b.Static {
		*b.Velocity = b.Velocity.Add(normal.Mul(impulse * invB))
	}

	depth := math.Max(result.PenetrationDepth-PenetrationSlop, 0)
	correction := depth / math.Max(invSum, MinInverseMassSum)
	correction *= math.Max(1, relVel.Len()*DepenetrationSpeedFactor)

	if !a.Static {
		*a.Position = a.Position.Sub(normal.Mul(correction))
	}
	if !b.Static {
		*b.Position = b.Position.Add(normal.Mul(correction))
	}
}

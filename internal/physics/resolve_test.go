package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestHeadOnRestitution(t *testing.T) {
	posA, velA := mgl64.Vec3{-0.45, 0, 0}, mgl64.Vec3{1, 0, 0}
	posB, velB := mgl64.Vec3{0.45, 0, 0}, mgl64.Vec3{-1, 0, 0}
	sphere := NewSphere(0.5)

	result := Intersect(sphere, posA, sphere, posB)
	if !result.Intersected {
		t.Fatal("expected spheres to overlap")
	}
	closingBefore := velB.Sub(velA).Dot(result.ContactNormal)

	Resolve(result,
		Body{Position: &posA, Velocity: &velA, Mass: 1},
		Body{Position: &posB, Velocity: &velB, Mass: 1},
	)

	separating := velB.Sub(velA).Dot(result.ContactNormal)
	if math.Abs(separating-(-Restitution*closingBefore)) > eps {
		t.Errorf("separating speed = %.9f, want %.9f", separating, -Restitution*closingBefore)
	}

	overlap := 1 - posB.Sub(posA).Len()
	if overlap > PenetrationSlop+eps {
		t.Errorf("spheres still overlap by %.6f after depenetration", overlap)
	}
	if posA.X() >= -0.45 || posB.X() <= 0.45 {
		t.Errorf("bodies were not pushed apart: a=%v b=%v", posA, posB)
	}
}

func TestSeparatingDynamicPairIsLeftAlone(t *testing.T) {
	posA, velA := mgl64.Vec3{-0.4, 0, 0}, mgl64.Vec3{-1, 0, 0}
	posB, velB := mgl64.Vec3{0.4, 0, 0}, mgl64.Vec3{1, 0, 0}
	sphere := NewSphere(0.5)

	result := Intersect(sphere, posA, sphere, posB)
	Resolve(result,
		Body{Position: &posA, Velocity: &velA, Mass: 1},
		Body{Position: &posB, Velocity: &velB, Mass: 1},
	)

	if velA != (mgl64.Vec3{-1, 0, 0}) || velB != (mgl64.Vec3{1, 0, 0}) {
		t.Errorf("velocities changed: a=%v b=%v", velA, velB)
	}
	if posA != (mgl64.Vec3{-0.4, 0, 0}) || posB != (mgl64.Vec3{0.4, 0, 0}) {
		t.Errorf("positions changed: a=%v b=%v", posA, posB)
	}
}

func TestStaticBodyIsNeverMoved(t *testing.T) {
	ballPos, ballVel := mgl64.Vec3{0, 0.9, 0}, mgl64.Vec3{0, -2, 0}
	floorPos, floorVel := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{}

	ball := NewSphere(1)
	floor := NewAABB(mgl64.Vec3{5, 0.5, 5})
	result := Intersect(ball, ballPos, floor, floorPos)
	if !result.Intersected {
		t.Fatal("expected ball to overlap floor")
	}

	Resolve(result,
		Body{Position: &ballPos, Velocity: &ballVel, Mass: 1},
		Body{Position: &floorPos, Velocity: &floorVel, Mass: 0, Static: true},
	)

	if floorPos != (mgl64.Vec3{}) || floorVel != (mgl64.Vec3{}) {
		t.Errorf("static body changed: pos=%v vel=%v", floorPos, floorVel)
	}
	if math.Abs(ballVel.Y()-2*Restitution) > eps {
		t.Errorf("ball vy = %.9f, want %.9f", ballVel.Y(), 2*Restitution)
	}
	// depth 0.6, slop 0.01, inverse mass 1, speed factor max(1, 0.2) = 1
	if math.Abs(ballPos.Y()-1.49) > eps {
		t.Errorf("ball y = %.9f, want 1.49", ballPos.Y())
	}
}

func TestStaticContactAlwaysResolves(t *testing.T) {
	ballPos, ballVel := mgl64.Vec3{0, 0.9, 0}, mgl64.Vec3{0, 1, 0}
	floorPos, floorVel := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{}

	result := Intersect(NewSphere(1), ballPos, NewAABB(mgl64.Vec3{5, 0.5, 5}), floorPos)
	Resolve(result,
		Body{Position: &ballPos, Velocity: &ballVel, Mass: 1},
		Body{Position: &floorPos, Velocity: &floorVel, Static: true},
	)

	// Moving away still gets the full impulse against a static body.
	if math.Abs(ballVel.Y()-(-Restitution)) > eps {
		t.Errorf("ball vy = %.9f, want %.9f", ballVel.Y(), -Restitution)
	}
	if ballPos.Y() <= 0.9 {
		t.Errorf("ball was not depenetrated: y=%.6f", ballPos.Y())
	}
}

func TestShallowContactSkipsDepenetration(t *testing.T) {
	posA, velA := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{}
	posB, velB := mgl64.Vec3{1.995, 0, 0}, mgl64.Vec3{}
	sphere := NewSphere(1)

	result := Intersect(sphere, posA, sphere, posB)
	if !result.Intersected {
		t.Fatal("expected shallow overlap")
	}
	Resolve(result,
		Body{Position: &posA, Velocity: &velA, Mass: 1},
		Body{Position: &posB, Velocity: &velB, Mass: 1},
	)

	if posA != (mgl64.Vec3{}) || posB != (mgl64.Vec3{1.995, 0, 0}) {
		t.Errorf("overlap within slop should not move bodies: a=%v b=%v", posA, posB)
	}
}

func TestFastContactDepenetratesFurther(t *testing.T) {
	run := func(speed float64) float64 {
		ballPos, ballVel := mgl64.Vec3{0, 0.9, 0}, mgl64.Vec3{0, -speed, 0}
		floorPos, floorVel := mgl64.Vec3{}, mgl64.Vec3{}
		result := Intersect(NewSphere(1), ballPos, NewAABB(mgl64.Vec3{5, 0.5, 5}), floorPos)
		Resolve(result,
			Body{Position: &ballPos, Velocity: &ballVel, Mass: 1},
			Body{Position: &floorPos, Velocity: &floorVel, Static: true},
		)
		return ballPos.Y() - 0.9
	}

	slow := run(2)
	fast := run(40)
	if math.Abs(fast-4*slow) > eps {
		t.Errorf("fast correction = %.9f, want 4x slow correction %.9f", fast, slow)
	}
}

func TestHeavierBodyMovesLess(t *testing.T) {
	posA, velA := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}
	posB, velB := mgl64.Vec3{1.9, 0, 0}, mgl64.Vec3{}
	sphere := NewSphere(1)

	result := Intersect(sphere, posA, sphere, posB)
	Resolve(result,
		Body{Position: &posA, Velocity: &velA, Mass: 1},
		Body{Position: &posB, Velocity: &velB, Mass: 4},
	)

	// Momentum is conserved by the impulse.
	momentum := velA.X()*1 + velB.X()*4
	if math.Abs(momentum-1) > eps {
		t.Errorf("momentum = %.9f, want 1", momentum)
	}
	if velB.X() <= 0 {
		t.Errorf("heavy body should be pushed forward, vx=%.6f", velB.X())
	}
}

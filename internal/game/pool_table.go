package game

import "github.com/go-gl/mathgl/mgl64"

// Box is an axis-aligned static block: the slate or one cushion.
type Box struct {
	Name        string     `json:"name"`
	Center      mgl64.Vec3 `json:"center"`
	HalfExtents mgl64.Vec3 `json:"half_extents"`
}

// Pocket represents one of the 6 pockets on the table.
type Pocket struct {
	ID       int        `json:"id"`
	Position mgl64.Vec3 `json:"position"`
}

// Table holds the complete table geometry.
type Table struct {
	Slate    Box      `json:"slate"`
	Cushions []Box    `json:"cushions"`
	Pockets  []Pocket `json:"pockets"`
}

// NewStandard8BallTable creates the standard 9ft table: the slate, six
// cushion blocks broken by the pocket mouths and six pocket spheres.
func NewStandard8BallTable() *Table {
	hl := TableLength / 2
	hw := TableWidth / 2
	ct := CushionThickness
	ch := CushionHeight

	slate := Box{
		Name:        "slate",
		Center:      mgl64.Vec3{0, -SlateThickness / 2, 0},
		HalfExtents: mgl64.Vec3{hl + ct, SlateThickness / 2, hw + ct},
	}

	// Long rails run along x and are split by the side pockets.
	longHalf := (hl - CornerMouth - SideMouth) / 2
	longCenter := SideMouth + longHalf
	shortHalf := hw - CornerMouth

	cushions := []Box{
		{Name: "top-left", Center: mgl64.Vec3{-longCenter, ch / 2, -(hw + ct/2)}, HalfExtents: mgl64.Vec3{longHalf, ch / 2, ct / 2}},
		{Name: "top-right", Center: mgl64.Vec3{longCenter, ch / 2, -(hw + ct/2)}, HalfExtents: mgl64.Vec3{longHalf, ch / 2, ct / 2}},
		{Name: "right", Center: mgl64.Vec3{hl + ct/2, ch / 2, 0}, HalfExtents: mgl64.Vec3{ct / 2, ch / 2, shortHalf}},
		{Name: "bottom-right", Center: mgl64.Vec3{longCenter, ch / 2, hw + ct/2}, HalfExtents: mgl64.Vec3{longHalf, ch / 2, ct / 2}},
		{Name: "bottom-left", Center: mgl64.Vec3{-longCenter, ch / 2, hw + ct/2}, HalfExtents: mgl64.Vec3{longHalf, ch / 2, ct / 2}},
		{Name: "left", Center: mgl64.Vec3{-(hl + ct/2), ch / 2, 0}, HalfExtents: mgl64.Vec3{ct / 2, ch / 2, shortHalf}},
	}

	// Corner pockets sit just outside the corner, side pockets behind the rail.
	co := 0.02
	so := 0.045
	pockets := []Pocket{
		{ID: 0, Position: mgl64.Vec3{-(hl + co), 0, -(hw + co)}},
		{ID: 1, Position: mgl64.Vec3{0, 0, -(hw + so)}},
		{ID: 2, Position: mgl64.Vec3{hl + co, 0, -(hw + co)}},
		{ID: 3, Position: mgl64.Vec3{-(hl + co), 0, hw + co}},
		{ID: 4, Position: mgl64.Vec3{0, 0, hw + so}},
		{ID: 5, Position: mgl64.Vec3{hl + co, 0, hw + co}},
	}

	return &Table{
		Slate:    slate,
		Cushions: cushions,
		Pockets:  pockets,
	}
}

// OnSurface reports whether a ball centred at (x, z) lies fully inside the
// cushions.
func (t *Table) OnSurface(x, z float64) bool {
	hl := TableLength/2 - BallRadius
	hw := TableWidth/2 - BallRadius
	return x >= -hl && x <= hl && z >= -hw && z <= hw
}

// TrayPosition is where a ball waits once it has left play. Each ball gets its
// own slot well below the slate so parked balls never touch.
func TrayPosition(id int) mgl64.Vec3 {
	return mgl64.Vec3{-TableLength/2 + float64(id)*3*BallRadius, -0.5, TableWidth/2 + 1.0}
}

// Standard8BallRack returns the initial positions for all 16 balls, the apex
// on the foot spot and the cue ball on the head spot.
// Uses fixed offsets (no random jitter) so every rack is identical.
func Standard8BallRack() [NumBalls]mgl64.Vec3 {
	var pos [NumBalls]mgl64.Vec3

	i := TableLength / 4
	e := 1.782 // row spacing, sqrt(3) plus a small gap
	s := 1.05  // column spacing
	br := BallRadius

	at := func(x, z float64) mgl64.Vec3 { return mgl64.Vec3{x, br, z} }

	pos[0] = at(-i, 0)

	// Apex ball
	pos[1] = at(i, 0)

	// Row 2
	pos[2] = at(i+e*br, br*s)
	pos[15] = at(i+e*br, -br*s)

	// Row 3 (8-ball in center)
	pos[8] = at(i+2*e*br, 0)
	pos[5] = at(i+2*e*br, 2*br*s)
	pos[10] = at(i+2*e*br, -2*br*s)

	// Row 4
	pos[7] = at(i+3*e*br, 1*br*s)
	pos[4] = at(i+3*e*br, 3*br*s)
	pos[9] = at(i+3*e*br, -1*br*s)
	pos[6] = at(i+3*e*br, -3*br*s)

	// Row 5
	pos[11] = at(i+4*e*br, 0)
	pos[12] = at(i+4*e*br, 2*br*s)
	pos[13] = at(i+4*e*br, -2*br*s)
	pos[14] = at(i+4*e*br, 4*br*s)
	pos[3] = at(i+4*e*br, -4*br*s)

	return pos
}

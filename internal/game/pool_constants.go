package game

// Table, ball and driver constants for 8-ball pool.
// Units are metres and seconds; y is up, the slate top sits at y=0.

const (
	NumBalls = 16 // 0=cue, 1-7=solids, 8=eight, 9-15=stripes

	BallRadius  = 0.028575
	BallMass    = 0.17
	CueBallMass = 0.17

	TableLength      = 2.54 // playing surface along x
	TableWidth       = 1.27 // playing surface along z
	SlateThickness   = 0.05
	CushionThickness = 0.05
	CushionHeight    = 0.04
	PocketRadius     = 0.06
	CornerMouth      = 0.08 // cushion gap measured from each corner
	SideMouth        = 0.06 // half-width of the gap at the middle pockets

	RollingResistance = 0.3 // fraction of horizontal speed lost per second on the slate
	MinStrikeSpeed    = 0.05
	MaxStrikeSpeed    = 8.0

	// MaxSubStepTravel bounds how far any ball may move in one world step.
	// Below one radius a centre can never cross a cushion face or another
	// ball, where contact normals are undefined.
	MaxSubStepTravel = BallRadius / 2

	FrameDelta     = 1.0 / 60.0
	MaxFrameDelta  = 0.25
	MaxShotSeconds = 30.0
	FallLimit      = -1.0 // balls below this height have left the table
)

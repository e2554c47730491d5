package game

// GameStatus represents the current state of a table session
type GameStatus string

const (
	StatusWaiting    GameStatus = "WAITING"     // racked, no shot yet
	StatusInProgress GameStatus = "IN_PROGRESS" // at least one shot played
	StatusCompleted  GameStatus = "COMPLETED"   // 8-ball pocketed
	StatusCancelled  GameStatus = "CANCELLED"   // closed or expired
)

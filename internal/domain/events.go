package domain

// Room event types published by the battle engine. Broadcast events are
// state replacements, not deltas; the private answer result goes only to the
// submitting participant.
const (
	EventParticipantsUpdated = "room-participants-updated"
	EventRoomStarted         = "room-started"
	EventRoomQuestion        = "room-question"
	EventRoomProgress        = "room-progress"
	EventAnswerResult        = "room-answer-result"
	EventRoomEnded           = "room-ended"
)

// Event is a single outbound room notification. To is empty for broadcasts
// and names a participant ID for private events.
type Event struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	To      string `json:"-"`
	Payload any    `json:"payload"`
}

// ScoreSnapshot is the payload of room-progress events.
type ScoreSnapshot struct {
	RoomID        string       `json:"roomId"`
	QuestionIndex int          `json:"questionIndex"`
	Entries       []ScoreEntry `json:"entries"`
}

// ScoreEntry is one participant's live standing.
type ScoreEntry struct {
	ParticipantID  string `json:"participantId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correctAnswers"`
	TotalAnswers   int    `json:"totalAnswers"`
	CurrentStreak  int    `json:"currentStreak"`
	Active         bool   `json:"active"`
}

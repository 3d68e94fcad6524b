package domain

import "time"

// RoomStatus is the lifecycle state of a battle room.
type RoomStatus string

const (
	RoomWaiting    RoomStatus = "WAITING"
	RoomInProgress RoomStatus = "IN_PROGRESS"
	RoomFinished   RoomStatus = "FINISHED"
	RoomCancelled  RoomStatus = "CANCELLED"
)

// transitions is the explicit table of legal status changes. Terminal states
// have no outgoing edges.
var transitions = map[RoomStatus][]RoomStatus{
	RoomWaiting:    {RoomInProgress, RoomCancelled},
	RoomInProgress: {RoomFinished},
}

// CanTransition reports whether a room may move from one status to another.
func CanTransition(from, to RoomStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status accepts no further transitions.
func (s RoomStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// BattleRoom is a single match instance coordinating participants through a quiz.
type BattleRoom struct {
	ID                   string        `json:"id"`
	QuizID               string        `json:"quizId"`
	Status               RoomStatus    `json:"status"`
	MaxParticipants      int           `json:"maxParticipants"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	CreatorID            string        `json:"creatorId"`
	CreatedAt            time.Time     `json:"createdAt"`
	StartTime            *time.Time    `json:"startTime,omitempty"`
	EndTime              *time.Time    `json:"endTime,omitempty"`
	Participants         []Participant `json:"participants"`
}

// Participant is a user's membership record within one battle room.
type Participant struct {
	ID             string    `json:"id"`
	RoomID         string    `json:"roomId"`
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	Ready          bool      `json:"ready"`
	Active         bool      `json:"active"`
	CurrentScore   int       `json:"currentScore"`
	CorrectAnswers int       `json:"correctAnswers"`
	CurrentStreak  int       `json:"currentStreak"`
	Answers        []Answer  `json:"answers"`
	JoinedAt       time.Time `json:"joinedAt"`
}

// Answer records one submission; at most one exists per (participant, question index).
type Answer struct {
	QuestionID    string `json:"questionId"`
	QuestionIndex int    `json:"questionIndex"`
	IsCorrect     bool   `json:"isCorrect"`
	EarnedPoints  int    `json:"earnedPoints"`
	TimeTakenMs   int64  `json:"timeTakenMs"`
}

// AnswerSubmission is the scoring signal from a client.
type AnswerSubmission struct {
	QuestionID  string
	OptionID    string
	TimeTakenMs int64
}

// AnswerResult summarizes the outcome of a submission for the submitting participant.
type AnswerResult struct {
	QuestionID    string `json:"questionId"`
	QuestionIndex int    `json:"questionIndex"`
	Correct       bool   `json:"correct"`
	EarnedPoints  int    `json:"earnedPoints"`
	TimeBonus     int    `json:"timeBonus"`
	TotalScore    int    `json:"totalScore"`
	CurrentStreak int    `json:"currentStreak"`
}

// ParticipantResult is one row of the final summary, ordered by rank.
type ParticipantResult struct {
	ParticipantID  string  `json:"participantId"`
	UserID         string  `json:"userId"`
	Username       string  `json:"username"`
	Rank           int     `json:"rank"`
	FinalScore     int     `json:"finalScore"`
	CorrectAnswers int     `json:"correctAnswers"`
	TotalAnswers   int     `json:"totalAnswers"`
	AverageTimeMs  int64   `json:"averageTimeMs"`
	Experience     int     `json:"experienceGained"`
	IsWinner       bool    `json:"isWinner"`
	CorrectRate    float64 `json:"correctRate"`
}

// BattleSummary is the immutable terminal artifact of a finished battle.
type BattleSummary struct {
	RoomID           string              `json:"roomId"`
	QuizID           string              `json:"quizId"`
	WinnerID         string              `json:"winnerId"`
	TotalQuestions   int                 `json:"totalQuestions"`
	TotalTimeSeconds int64               `json:"totalTimeSeconds"`
	Results          []ParticipantResult `json:"results"`
	FinishedAt       time.Time           `json:"finishedAt"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []Option `json:"options"`
	Points       int      `json:"points"`       // defaults to 10 if zero
	TimeLimitSec int      `json:"timeLimitSec"` // defaults to the configured limit if zero
}

// Quiz is a collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// QuestionView is the payload pushed to clients when a question is emitted.
// The correct flag never leaves the server.
type QuestionView struct {
	Index        int      `json:"index"`
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []Option `json:"options"`
	Points       int      `json:"points"`
	TimeLimitSec int      `json:"timeLimitSec"`
	IsLast       bool     `json:"isLast"`
}

// View returns the client-facing form of a question with correctness stripped.
func (q Question) View(index, defaultLimitSec, total int) QuestionView {
	options := make([]Option, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, Option{ID: opt.ID, Text: opt.Text})
	}
	return QuestionView{
		Index:        index,
		ID:           q.ID,
		Prompt:       q.Prompt,
		Options:      options,
		Points:       q.EffectivePoints(),
		TimeLimitSec: q.EffectiveTimeLimit(defaultLimitSec),
		IsLast:       index == total-1,
	}
}

// EffectivePoints returns the question's base points, defaulting to 10.
func (q Question) EffectivePoints() int {
	if q.Points > 0 {
		return q.Points
	}
	return 10
}

// EffectiveTimeLimit returns the per-question limit or the fallback.
func (q Question) EffectiveTimeLimit(defaultSec int) int {
	if q.TimeLimitSec > 0 {
		return q.TimeLimitSec
	}
	return defaultSec
}

// UserRef identifies a user at the service boundary.
type UserRef struct {
	UserID   string
	Username string
}

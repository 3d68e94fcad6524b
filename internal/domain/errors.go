package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a battle room does not exist.
	ErrRoomNotFound = errors.New("battle room not found")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrRoomNotJoinable is returned when joining a room that is not WAITING.
	ErrRoomNotJoinable = errors.New("room is not joinable")
	// ErrRoomFull is returned when the room already holds maxParticipants.
	ErrRoomFull = errors.New("room is full")
	// ErrAlreadyJoined is returned when a user is already a participant of the room.
	ErrAlreadyJoined = errors.New("user already joined room")
	// ErrUserBusy is returned when a user already holds an active participant elsewhere.
	ErrUserBusy = errors.New("user already in another active room")
	// ErrInvalidTransition is returned when an operation does not fit the room status.
	ErrInvalidTransition = errors.New("invalid room state transition")
	// ErrBattleNotActive is returned when submitting an answer outside IN_PROGRESS.
	ErrBattleNotActive = errors.New("battle is not in progress")
	// ErrDuplicateAnswer is returned when a participant answers the same question twice.
	ErrDuplicateAnswer = errors.New("question already answered")
	// ErrUnauthorized is returned for creator-only actions requested by others.
	ErrUnauthorized = errors.New("action restricted to room creator")
	// ErrQuestionMismatch is returned when an answer names a question that is not current.
	ErrQuestionMismatch = errors.New("answer does not match current question")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound indicates a transport session has no participant binding.
	ErrSessionNotFound = errors.New("session not bound to a participant")
	// ErrSummaryNotReady is returned when a summary is requested before the battle finished.
	ErrSummaryNotReady = errors.New("battle summary not ready")
)

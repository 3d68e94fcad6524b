package app

import (
	"context"
	"log"

	"quiz-battle-service/internal/domain"
)

// RoomRepository abstracts how live rooms are tracked (in-memory, Redis-marked).
type RoomRepository interface {
	Put(room *Room)
	Get(roomID string) (*Room, bool)
	Delete(roomID string)
	List() []*Room
}

// SessionBinding resolves a transport session back to its participant.
type SessionBinding struct {
	RoomID        string
	ParticipantID string
}

// SessionRegistry maps transport session IDs to participants. Entries expire
// with the room's maximum possible duration and are purged on room teardown.
type SessionRegistry interface {
	Bind(ctx context.Context, sessionID, roomID, participantID string) error
	Resolve(ctx context.Context, sessionID string) (SessionBinding, error)
	Unbind(ctx context.Context, sessionID string) error
	PurgeRoom(ctx context.Context, roomID string) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SummaryStore persists the immutable battle summary for downstream
// experience/statistics consumers, and serves it back once the live room has
// been evicted.
type SummaryStore interface {
	Save(ctx context.Context, summary domain.BattleSummary) error
	Load(ctx context.Context, roomID string) (domain.BattleSummary, error)
}

// BattleService contains the battle use cases.
type BattleService struct {
	rooms     RoomRepository
	sessions  SessionRegistry
	quizzes   QuizRepository
	summaries SummaryStore
	scores    *Scoreboard
	cfg       RoomConfig
}

func NewBattleService(rooms RoomRepository, sessions SessionRegistry, quizzes QuizRepository, summaries SummaryStore, cfg RoomConfig) *BattleService {
	return &BattleService{
		rooms:     rooms,
		sessions:  sessions,
		quizzes:   quizzes,
		summaries: summaries,
		scores:    NewScoreboard(),
		cfg:       cfg,
	}
}

// Create opens a WAITING room for the quiz with the creator auto-joined.
func (s *BattleService) Create(ctx context.Context, quizID string, maxParticipants int, creator domain.UserRef) (domain.BattleRoom, error) {
	if s.userBusy(creator.UserID) {
		return domain.BattleRoom{}, domain.ErrUserBusy
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.BattleRoom{}, err
	}
	if len(quiz.Questions) == 0 {
		return domain.BattleRoom{}, domain.ErrQuizNotFound
	}
	if maxParticipants < 2 {
		maxParticipants = 2
	}

	room := NewRoom(quizID, quiz, maxParticipants, creator, s.cfg, s.scores, s.finishHook())
	s.rooms.Put(room)
	return room.Snapshot(), nil
}

// Get returns the room record with participants.
func (s *BattleService) Get(ctx context.Context, roomID string) (domain.BattleRoom, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.BattleRoom{}, domain.ErrRoomNotFound
	}
	return room.Snapshot(), nil
}

// List returns rooms, optionally filtered by status.
func (s *BattleService) List(ctx context.Context, status domain.RoomStatus) []domain.BattleRoom {
	var out []domain.BattleRoom
	for _, room := range s.rooms.List() {
		snap := room.Snapshot()
		if status != "" && snap.Status != status {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// Join adds a user to a WAITING room.
func (s *BattleService) Join(ctx context.Context, roomID string, user domain.UserRef) (domain.BattleRoom, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.BattleRoom{}, domain.ErrRoomNotFound
	}
	if s.userBusy(user.UserID) {
		return domain.BattleRoom{}, domain.ErrUserBusy
	}
	return room.Join(user)
}

// Attach resolves the participant for a connecting user, joining the room if
// the user is not yet a member. Used by the websocket gateway on connect.
func (s *BattleService) Attach(ctx context.Context, roomID string, user domain.UserRef) (domain.Participant, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.Participant{}, domain.ErrRoomNotFound
	}
	snap := room.Snapshot()
	for _, p := range snap.Participants {
		if p.UserID == user.UserID && p.Active {
			return p, nil
		}
	}
	snap, err := room.Join(user)
	if err != nil {
		return domain.Participant{}, err
	}
	for _, p := range snap.Participants {
		if p.UserID == user.UserID {
			return p, nil
		}
	}
	return domain.Participant{}, domain.ErrParticipantNotFound
}

// ToggleReady flips the ready flag; the battle starts when everyone is ready.
func (s *BattleService) ToggleReady(ctx context.Context, roomID, participantID string) (domain.BattleRoom, bool, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.BattleRoom{}, false, domain.ErrRoomNotFound
	}
	return room.ToggleReady(participantID)
}

// Leave removes a participant. Returns nil when the room was discarded.
func (s *BattleService) Leave(ctx context.Context, roomID, participantID string) (*domain.BattleRoom, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	snap, gone, err := room.Leave(participantID)
	if err != nil {
		return nil, err
	}
	if gone && snap.Status == domain.RoomCancelled {
		s.teardown(ctx, room)
		return nil, nil
	}
	return &snap, nil
}

// Cancel discards a WAITING room; creator only.
func (s *BattleService) Cancel(ctx context.Context, roomID, requesterUserID string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if err := room.Cancel(requesterUserID); err != nil {
		return err
	}
	s.teardown(ctx, room)
	return nil
}

// SubmitAnswer scores one submission against the current question.
func (s *BattleService) SubmitAnswer(ctx context.Context, roomID, participantID string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrRoomNotFound
	}
	return room.SubmitAnswer(participantID, sub)
}

// Finish finalizes the battle, idempotently returning the cached summary.
// A finished room is evicted from the live repository shortly after, so the
// summary store answers for rooms that are already gone.
func (s *BattleService) Finish(ctx context.Context, roomID string) (domain.BattleSummary, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return s.summaries.Load(ctx, roomID)
	}
	if summary, done := room.Summary(); done {
		return summary, nil
	}
	return room.Finish()
}

// Summary returns the result of a finished battle without forcing one: a
// still-running room reports the summary as not ready, an evicted room is
// served from the summary store.
func (s *BattleService) Summary(ctx context.Context, roomID string) (domain.BattleSummary, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return s.summaries.Load(ctx, roomID)
	}
	summary, done := room.Summary()
	if !done {
		return domain.BattleSummary{}, domain.ErrSummaryNotReady
	}
	return summary, nil
}

// BindSession associates a transport session with a participant.
func (s *BattleService) BindSession(ctx context.Context, sessionID, roomID, participantID string) error {
	return s.sessions.Bind(ctx, sessionID, roomID, participantID)
}

// UnbindSession drops a session binding after an orderly leave.
func (s *BattleService) UnbindSession(ctx context.Context, sessionID string) error {
	return s.sessions.Unbind(ctx, sessionID)
}

// Disconnect resolves a vanished transport session to its participant and
// marks it inactive. Session store failures degrade to a no-op; a lost
// binding must not freeze room coordination.
func (s *BattleService) Disconnect(ctx context.Context, sessionID string) {
	binding, err := s.sessions.Resolve(ctx, sessionID)
	if err != nil {
		log.Printf("disconnect: resolve session %s: %v", sessionID, err)
		return
	}
	if err := s.sessions.Unbind(ctx, sessionID); err != nil {
		log.Printf("disconnect: unbind session %s: %v", sessionID, err)
	}

	room, ok := s.rooms.Get(binding.RoomID)
	if !ok {
		return
	}
	snap, gone, err := room.MarkInactive(binding.ParticipantID)
	if err != nil {
		log.Printf("disconnect: mark inactive %s in room %s: %v", binding.ParticipantID, binding.RoomID, err)
		return
	}
	if gone && snap.Status == domain.RoomCancelled {
		s.teardown(ctx, room)
	}
}

// Subscribe returns the event stream of a room for one participant.
func (s *BattleService) Subscribe(ctx context.Context, roomID, participantID string) (<-chan domain.Event, func(), error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.Subscribe(participantID)
	return ch, cancel, nil
}

// Shutdown tears down all live rooms (timers, subscriber channels).
func (s *BattleService) Shutdown() {
	for _, room := range s.rooms.List() {
		room.Shutdown()
	}
}

// finishHook runs off the room's finish path: it persists the summary and
// then evicts the live room, so the repository only ever holds WAITING and
// IN_PROGRESS rooms. Later reads are served from the summary store.
func (s *BattleService) finishHook() func(domain.BattleSummary) {
	return func(summary domain.BattleSummary) {
		ctx := context.Background()
		if err := s.summaries.Save(ctx, summary); err != nil {
			// Keep the room so its cached summary stays reachable.
			log.Printf("persist summary for room %s: %v", summary.RoomID, err)
			if err := s.sessions.PurgeRoom(ctx, summary.RoomID); err != nil {
				log.Printf("purge sessions for room %s: %v", summary.RoomID, err)
			}
			return
		}
		if room, ok := s.rooms.Get(summary.RoomID); ok {
			s.teardown(ctx, room)
		}
	}
}

// teardown drops a discarded room and its session bindings.
func (s *BattleService) teardown(ctx context.Context, room *Room) {
	room.Shutdown()
	s.rooms.Delete(room.ID())
	if err := s.sessions.PurgeRoom(ctx, room.ID()); err != nil {
		log.Printf("purge sessions for room %s: %v", room.ID(), err)
	}
}

// userBusy enforces one active participant per user across non-terminal rooms.
func (s *BattleService) userBusy(userID string) bool {
	for _, room := range s.rooms.List() {
		if room.HasActiveUser(userID) {
			return true
		}
	}
	return false
}

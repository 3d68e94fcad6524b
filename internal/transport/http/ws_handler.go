package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

type WSHandler struct {
	service  *app.BattleService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.BattleService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID  string `json:"questionId"`
	OptionID    string `json:"optionId"`
	TimeTakenMs int64  `json:"timeTakenMs"`
}

type joinedPayload struct {
	SessionID     string            `json:"sessionId"`
	ParticipantID string            `json:"participantId"`
	Room          domain.BattleRoom `json:"room"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// battle use cases. The connection is bound to a participant via the session
// registry so a later disconnect (carrying only the session id) can be
// resolved back to the room.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	userID := r.URL.Query().Get("userId")
	username := r.URL.Query().Get("name")
	if roomID == "" || userID == "" || username == "" {
		http.Error(w, "missing roomId, userId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	participant, err := h.service.Attach(ctx, roomID, domain.UserRef{UserID: userID, Username: username})
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	sessionID := uuid.NewString()
	if err := h.service.BindSession(ctx, sessionID, roomID, participant.ID); err != nil {
		log.Printf("ws bind session: %v", err)
	}

	updates, cancel, err := h.service.Subscribe(ctx, roomID, participant.ID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	left := false
	defer func() {
		if !left {
			// Use a fresh context: the request context is gone by the time
			// the transport notices the peer vanished.
			h.service.Disconnect(context.Background(), sessionID)
		}
	}()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: event.Type, Payload: event.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	room, _ := h.service.Get(ctx, roomID)
	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{
		SessionID:     sessionID,
		ParticipantID: participant.ID,
		Room:          room,
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "ready":
			if _, _, err := h.service.ToggleReady(ctx, roomID, participant.ID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			// The result reaches the submitter as a private
			// room-answer-result event through the subscription.
			if _, err := h.service.SubmitAnswer(ctx, roomID, participant.ID, domain.AnswerSubmission{
				QuestionID:  payload.QuestionID,
				OptionID:    payload.OptionID,
				TimeTakenMs: payload.TimeTakenMs,
			}); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "leave":
			if _, err := h.service.Leave(ctx, roomID, participant.ID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			if err := h.service.UnbindSession(ctx, sessionID); err != nil {
				log.Printf("ws unbind session: %v", err)
			}
			left = true
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		if left {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

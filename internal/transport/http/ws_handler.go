package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lingo-quiz-service/internal/app"
	"lingo-quiz-service/internal/domain"
)

type WSHandler struct {
	engine   *app.Engine
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine) *WSHandler {
	return &WSHandler{
		engine: engine,
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

type createPayload struct {
	Unit               string `json:"unit"`
	Level              string `json:"level"`
	QuestionCount      int    `json:"questionCount"`
	TimePerQuestionSec int    `json:"timePerQuestionSec"`
}

type roomPayload struct {
	RoomCode string `json:"roomCode"`
}

type nextPayload struct {
	RoomCode      string `json:"roomCode"`
	ExpectedIndex int    `json:"expectedIndex"`
}

type answerPayload struct {
	Answer   string `json:"answer"`
	OffsetMs int    `json:"offsetMs"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// questionView is a question as clients may see it; the correct answer is
// only present on the host side.
type questionView struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
}

// sessionView is the snapshot sent on every committed change, with the
// leaderboard derived on the fly — never stored.
type sessionView struct {
	RoomCode             string                `json:"roomCode"`
	Status               domain.SessionStatus  `json:"status"`
	CurrentQuestionIndex int                   `json:"currentQuestionIndex"`
	TotalQuestions       int                   `json:"totalQuestions"`
	Question             *questionView         `json:"question,omitempty"`
	TimePerQuestionSec   int                   `json:"timePerQuestionSec"`
	QuestionStartedAt    time.Time             `json:"questionStartedAt"`
	Leaderboard          []domain.RankedPlayer `json:"leaderboard"`
}

func newSessionView(s *domain.Session, forHost bool) sessionView {
	view := sessionView{
		RoomCode:             s.RoomCode,
		Status:               s.Status,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		TotalQuestions:       len(s.Questions),
		TimePerQuestionSec:   s.TimePerQuestionSec,
		QuestionStartedAt:    s.QuestionStartedAt,
		Leaderboard:          app.Rank(s.Players),
	}
	if q, ok := s.CurrentQuestion(); ok {
		qv := &questionView{Text: q.Text, Options: q.Options}
		if forHost {
			qv.CorrectAnswer = q.CorrectAnswer
		}
		view.Question = qv
	}
	return view
}

// ServeHost handles the host connection: create a room, then drive its
// progression. The host is subscribed to its room's snapshots.
func (h *WSHandler) ServeHost(w http.ResponseWriter, r *http.Request) {
	hostID := r.URL.Query().Get("hostId")
	if hostID == "" {
		http.Error(w, "missing hostId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := newWSConn(conn)
	defer c.shutdown()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "create":
			var payload createPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.sendError("invalid create payload")
				continue
			}
			session, err := h.engine.CreateQuiz(r.Context(), hostID, payload.Unit, payload.Level, payload.QuestionCount, payload.TimePerQuestionSec)
			if err != nil {
				c.sendError(err.Error())
				continue
			}
			if err := c.watch(r.Context(), h.engine, session.RoomCode, true); err != nil {
				c.sendError(err.Error())
				continue
			}
			c.send(outboundMessage[any]{Type: "created", Payload: newSessionView(session, true)})

		case "start":
			var payload roomPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.sendError("invalid start payload")
				continue
			}
			if _, err := h.engine.StartGame(r.Context(), payload.RoomCode, hostID); err != nil {
				c.sendError(err.Error())
			}

		case "next":
			var payload nextPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.sendError("invalid next payload")
				continue
			}
			if _, err := h.engine.NextQuestion(r.Context(), payload.RoomCode, hostID, payload.ExpectedIndex); err != nil {
				c.sendError(err.Error())
			}

		case "leaderboard":
			var payload roomPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.sendError("invalid leaderboard payload")
				continue
			}
			if _, err := h.engine.ShowLeaderboard(r.Context(), payload.RoomCode, hostID); err != nil {
				c.sendError(err.Error())
			}

		case "end":
			var payload roomPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.sendError("invalid end payload")
				continue
			}
			if _, err := h.engine.EndQuiz(r.Context(), payload.RoomCode, hostID); err != nil {
				c.sendError(err.Error())
			}

		default:
			c.sendError("unsupported message type")
		}
	}
}

// ServePlayer handles a player connection: join on connect, then accept
// answer submissions while streaming room snapshots.
func (h *WSHandler) ServePlayer(w http.ResponseWriter, r *http.Request) {
	roomCode := r.URL.Query().Get("roomCode")
	playerID := r.URL.Query().Get("playerId")
	nickname := r.URL.Query().Get("nickname")
	if roomCode == "" || nickname == "" {
		http.Error(w, "missing roomCode or nickname", http.StatusBadRequest)
		return
	}
	if playerID == "" {
		// Guest players get a generated stable id for the session.
		playerID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := newWSConn(conn)
	defer c.shutdown()

	session, err := h.engine.JoinQuiz(r.Context(), roomCode, playerID, nickname)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if err := c.watch(r.Context(), h.engine, roomCode, false); err != nil {
		c.sendError(err.Error())
		return
	}

	c.send(outboundMessage[any]{Type: "joined", Payload: struct {
		PlayerID string      `json:"playerId"`
		Session  sessionView `json:"session"`
	}{PlayerID: playerID, Session: newSessionView(session, false)}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.sendError("invalid answer payload")
				continue
			}
			result, err := h.engine.SubmitAnswer(r.Context(), roomCode, playerID, payload.Answer, payload.OffsetMs)
			if err != nil {
				c.sendError(err.Error())
				continue
			}
			c.send(outboundMessage[any]{Type: "answerResult", Payload: result})
		default:
			c.sendError("unsupported message type")
		}
	}
}

// wsConn serializes writes through one goroutine so snapshot forwarding
// and request replies never interleave on the socket.
type wsConn struct {
	out          chan outboundMessage[any]
	closeSignals chan struct{}
	writerDone   chan struct{}
	watchers     sync.WaitGroup
	unwatch      func()
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{
		out:          make(chan outboundMessage[any], 16),
		closeSignals: make(chan struct{}),
		writerDone:   make(chan struct{}),
	}
	go func() {
		defer close(c.writerDone)
		for msg := range c.out {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()
	return c
}

// watch subscribes the connection to a room and forwards snapshots.
// A second call replaces the previous subscription.
func (c *wsConn) watch(ctx context.Context, engine *app.Engine, roomCode string, forHost bool) error {
	updates, cancel, err := engine.Subscribe(ctx, roomCode)
	if err != nil {
		return err
	}
	if c.unwatch != nil {
		c.unwatch()
	}
	c.unwatch = cancel

	c.watchers.Add(1)
	go func() {
		defer c.watchers.Done()
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case c.out <- outboundMessage[any]{Type: "session", Payload: newSessionView(&update, forHost)}:
				case <-c.closeSignals:
					return
				}
			case <-c.closeSignals:
				return
			}
		}
	}()
	return nil
}

func (c *wsConn) send(msg outboundMessage[any]) {
	select {
	case c.out <- msg:
	case <-c.closeSignals:
	}
}

func (c *wsConn) sendError(message string) {
	c.send(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
}

func (c *wsConn) shutdown() {
	if c.unwatch != nil {
		c.unwatch()
	}
	close(c.closeSignals)
	c.watchers.Wait()
	close(c.out)
	<-c.writerDone
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lingo-quiz-service/internal/app"
	"lingo-quiz-service/internal/domain"
	"lingo-quiz-service/internal/infra/memory"
)

func TestHostAndPlayerFlow(t *testing.T) {
	engine, server := newTestServer(t)

	host := dial(t, server, "/ws/host?hostId=h1")
	defer host.Close()

	send(t, host, "create", map[string]any{
		"unit":               "animals",
		"level":              "a1",
		"questionCount":      2,
		"timePerQuestionSec": 30,
	})

	created := readUntil(t, host, "created")
	roomCode, _ := created["roomCode"].(string)
	if len(roomCode) != 6 {
		t.Fatalf("expected 6-char room code, got %q", roomCode)
	}

	player := dial(t, server, "/ws/play?roomCode="+roomCode+"&nickname=Alice")
	defer player.Close()

	joined := readUntil(t, player, "joined")
	playerID, _ := joined["playerId"].(string)
	if playerID == "" {
		t.Fatalf("expected generated player id, got %v", joined)
	}

	send(t, host, "start", map[string]any{"roomCode": roomCode})

	// The player sees the room go live with a question attached — and
	// without the correct answer.
	view := readSessionUntil(t, player, string(domain.StatusInProgress))
	question, _ := view["question"].(map[string]any)
	if question == nil {
		t.Fatalf("expected question in snapshot, got %v", view)
	}
	if _, leaked := question["correctAnswer"]; leaked {
		t.Fatalf("correct answer leaked to player: %v", question)
	}

	session, err := engine.GetSession(context.Background(), roomCode)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}

	send(t, player, "answer", map[string]any{
		"answer":   session.Questions[0].CorrectAnswer,
		"offsetMs": 1000,
	})

	result := readUntil(t, player, "answerResult")
	if result["correct"] != true {
		t.Fatalf("expected correct answer result, got %v", result)
	}
	if result["score"].(float64) != 10 {
		t.Fatalf("expected score 10, got %v", result["score"])
	}

	send(t, host, "end", map[string]any{"roomCode": roomCode})
	final := readSessionUntil(t, player, string(domain.StatusFinished))
	leaderboard, _ := final["leaderboard"].([]any)
	if len(leaderboard) != 1 {
		t.Fatalf("expected 1 leaderboard entry, got %v", final)
	}
}

func TestPlayerJoinErrors(t *testing.T) {
	_, server := newTestServer(t)

	conn := dial(t, server, "/ws/play?roomCode=ZZZZZZ&nickname=Alice")
	defer conn.Close()

	errMsg := readUntil(t, conn, "error")
	if errMsg["message"] == "" {
		t.Fatalf("expected error payload, got %v", errMsg)
	}
}

func TestNonHostCannotDrive(t *testing.T) {
	_, server := newTestServer(t)

	host := dial(t, server, "/ws/host?hostId=h1")
	defer host.Close()
	send(t, host, "create", map[string]any{
		"unit":               "animals",
		"level":              "a1",
		"questionCount":      2,
		"timePerQuestionSec": 30,
	})
	created := readUntil(t, host, "created")
	roomCode := created["roomCode"].(string)

	player := dial(t, server, "/ws/play?roomCode="+roomCode+"&nickname=Bob")
	defer player.Close()
	readUntil(t, player, "joined")

	impostor := dial(t, server, "/ws/host?hostId=h2")
	defer impostor.Close()
	send(t, impostor, "start", map[string]any{"roomCode": roomCode})

	errMsg := readUntil(t, impostor, "error")
	if errMsg["message"] != domain.ErrNotHost.Error() {
		t.Fatalf("expected not-host error, got %v", errMsg)
	}
}

func newTestServer(t *testing.T) (*app.Engine, *httptest.Server) {
	t.Helper()
	store := memory.NewSessionStore()
	vocab := memory.NewVocabRepository(memory.NewStaticVocabLoader(sampleVocab()), time.Minute)
	engine := app.NewEngine(store, vocab, app.EngineConfig{
		Scoring: app.ScoringConfig{BasePoints: 10},
		Pacing:  app.PacingHost,
	})
	t.Cleanup(engine.Close)

	handler := NewWSHandler(engine)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/host", handler.ServeHost)
	mux.HandleFunc("/ws/play", handler.ServePlayer)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return engine, server
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil skips frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != msgType {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		return payload
	}
	t.Fatalf("no %s frame within 20 messages", msgType)
	return nil
}

// readSessionUntil skips session frames until one carries the wanted status.
func readSessionUntil(t *testing.T, conn *websocket.Conn, status string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		payload := readUntil(t, conn, "session")
		if payload["status"] == status {
			return payload
		}
	}
	t.Fatalf("no session frame with status %s", status)
	return nil
}

func sampleVocab() []domain.VocabEntry {
	return []domain.VocabEntry{
		{ID: "v1", Term: "hund", Translation: "dog", Unit: "animals", Level: "a1"},
		{ID: "v2", Term: "katt", Translation: "cat", Unit: "animals", Level: "a1"},
		{ID: "v3", Term: "häst", Translation: "horse", Unit: "animals", Level: "a1"},
		{ID: "v4", Term: "fågel", Translation: "bird", Unit: "animals", Level: "a1"},
		{ID: "v5", Term: "fisk", Translation: "fish", Unit: "animals", Level: "a1"},
	}
}

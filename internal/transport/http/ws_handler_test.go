package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"trivia-live-service/internal/app"
	"trivia-live-service/internal/domain"
	"trivia-live-service/internal/game"
	"trivia-live-service/internal/infra/memory"
)

// wireEvent mirrors the outbound envelope with the payload left raw so
// each test decodes only what it asserts on.
type wireEvent struct {
	Type    domain.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func flowQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "flow-1",
		Title: "Flow Quiz",
		Questions: []domain.Question{
			{
				Ordinal:        0,
				Type:           domain.QuestionSingle,
				Prompt:         "first",
				Options:        []string{"a", "b"},
				Weight:         domain.WeightNormal,
				TimeLimitMs:    60000,
				CorrectIndices: []int{0},
			},
			{
				Ordinal:        1,
				Type:           domain.QuestionSingle,
				Prompt:         "second",
				Options:        []string{"a", "b"},
				Weight:         domain.WeightNormal,
				TimeLimitMs:    60000,
				CorrectIndices: []int{1},
			},
		},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.StatsStore) {
	t.Helper()
	log := quietLog()
	stats := memory.NewStatsStore()

	loader := memory.NewStaticQuizLoader(map[string]domain.Quiz{"flow-1": flowQuiz()})
	quizRepo := memory.NewQuizRepository(loader, time.Minute)

	registry := game.NewRegistry(game.DefaultConfig(), stats, log)
	t.Cleanup(registry.Close)

	router := app.NewRouter(registry, quizRepo, log)
	wsHandler := NewWSHandler(router, log)
	roomsHandler := NewRoomsHandler(router, log)

	mux := http.NewServeMux()
	mux.Handle("/api/rooms", roomsHandler)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, stats
}

func createRoom(t *testing.T, server *httptest.Server, quizID, hostID string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"quizId": quizID, "hostId": hostID})
	resp, err := http.Post(server.URL+"/api/rooms", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create room status = %d", resp.StatusCode)
	}
	var out createRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return out.Code
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", query, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil drains the connection until an event of the wanted type
// arrives; roster snapshots interleave freely with everything else.
func readUntil(t *testing.T, conn *websocket.Conn, want domain.EventType) wireEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var event wireEvent
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if event.Type == want {
			return event
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	msg := map[string]interface{}{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("send %s: %v", msgType, err)
	}
}

func TestRoomsHandlerValidation(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/rooms", "application/json", strings.NewReader(`{"quizId":"flow-1"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing hostId status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Post(server.URL+"/api/rooms", "application/json", strings.NewReader(`{"quizId":"missing","hostId":"host"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown quiz status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", resp.StatusCode)
	}
}

func TestWSJoinUnknownRoom(t *testing.T) {
	server, _ := newTestServer(t)

	conn := dial(t, server, "code=000000&name=Alice")
	event := readUntil(t, conn, domain.EventError)

	var payload domain.ErrorPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Code != domain.ErrCodeNotFound {
		t.Fatalf("error code = %s, want %s", payload.Code, domain.ErrCodeNotFound)
	}
}

func TestWSGuestIdentityMinted(t *testing.T) {
	server, _ := newTestServer(t)
	code := createRoom(t, server, "flow-1", "host")

	conn := dial(t, server, "code="+code+"&name=Drifter")
	event := readUntil(t, conn, domain.EventRoomJoined)

	var joined domain.RoomJoinedPayload
	if err := json.Unmarshal(event.Payload, &joined); err != nil {
		t.Fatalf("decode room_joined: %v", err)
	}
	if !strings.HasPrefix(joined.You.ID, "guest-") {
		t.Fatalf("expected minted guest id, got %q", joined.You.ID)
	}
	if joined.Phase != domain.PhaseLobby {
		t.Fatalf("phase = %s, want LOBBY", joined.Phase)
	}
}

func TestWSPingPong(t *testing.T) {
	server, _ := newTestServer(t)
	code := createRoom(t, server, "flow-1", "host")

	conn := dial(t, server, "code="+code+"&name=Host&userId=host")
	readUntil(t, conn, domain.EventRoomJoined)

	send(t, conn, "ping", nil)
	readUntil(t, conn, domain.EventPong)
}

func TestWSNonHostStartRejected(t *testing.T) {
	server, _ := newTestServer(t)
	code := createRoom(t, server, "flow-1", "host")

	host := dial(t, server, "code="+code+"&name=Host&userId=host")
	readUntil(t, host, domain.EventRoomJoined)

	player := dial(t, server, "code="+code+"&name=Alice&userId=u1")
	readUntil(t, player, domain.EventRoomJoined)

	send(t, player, "start", nil)
	event := readUntil(t, player, domain.EventError)

	var payload domain.ErrorPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Code != domain.ErrCodeNotHost {
		t.Fatalf("error code = %s, want %s", payload.Code, domain.ErrCodeNotHost)
	}
}

func TestWSFullGameFlow(t *testing.T) {
	server, stats := newTestServer(t)
	code := createRoom(t, server, "flow-1", "host")

	host := dial(t, server, "code="+code+"&name=Host&userId=host")
	readUntil(t, host, domain.EventRoomJoined)

	player := dial(t, server, "code="+code+"&name=Alice&userId=u1")
	readUntil(t, player, domain.EventRoomJoined)

	send(t, host, "start", nil)
	active := readUntil(t, player, domain.EventQuestionActive)

	var qa domain.QuestionActivePayload
	if err := json.Unmarshal(active.Payload, &qa); err != nil {
		t.Fatalf("decode question_active: %v", err)
	}
	if qa.Question.Ordinal != 0 || qa.Question.Total != 2 {
		t.Fatalf("unexpected first question %+v", qa.Question)
	}

	// Both answer question 0; host correct, player wrong. All connected
	// participants answering closes the question early.
	send(t, host, "answer", answerPayload{Ordinal: 0, Answer: domain.AnswerPayload{Indices: []int{0}}, ElapsedMs: 0})
	send(t, player, "answer", answerPayload{Ordinal: 0, Answer: domain.AnswerPayload{Indices: []int{1}}, ElapsedMs: 1000})

	reveal := readUntil(t, player, domain.EventQuestionReveal)
	// Drain the host's copy too so the next reveal read starts fresh.
	readUntil(t, host, domain.EventQuestionReveal)
	var qr domain.QuestionRevealPayload
	if err := json.Unmarshal(reveal.Payload, &qr); err != nil {
		t.Fatalf("decode question_reveal: %v", err)
	}
	if qr.LastOne {
		t.Fatal("first reveal flagged as last")
	}
	if len(qr.Key.CorrectIndices) != 1 || qr.Key.CorrectIndices[0] != 0 {
		t.Fatalf("unexpected answer key %+v", qr.Key)
	}
	if qr.Scoreboard[0].ID != "host" || qr.Scoreboard[0].Score != 100 {
		t.Fatalf("unexpected scoreboard %+v", qr.Scoreboard)
	}

	send(t, host, "advance", nil)
	active = readUntil(t, player, domain.EventQuestionActive)
	if err := json.Unmarshal(active.Payload, &qa); err != nil {
		t.Fatalf("decode question_active: %v", err)
	}
	if qa.Question.Ordinal != 1 {
		t.Fatalf("ordinal = %d, want 1", qa.Question.Ordinal)
	}

	// Both correct on the last question.
	send(t, host, "answer", answerPayload{Ordinal: 1, Answer: domain.AnswerPayload{Indices: []int{1}}, ElapsedMs: 0})
	send(t, player, "answer", answerPayload{Ordinal: 1, Answer: domain.AnswerPayload{Indices: []int{1}}, ElapsedMs: 0})

	reveal = readUntil(t, host, domain.EventQuestionReveal)
	if err := json.Unmarshal(reveal.Payload, &qr); err != nil {
		t.Fatalf("decode question_reveal: %v", err)
	}
	if !qr.LastOne {
		t.Fatal("final reveal not flagged as last")
	}

	send(t, host, "advance", nil)
	end := readUntil(t, player, domain.EventGameEnd)
	var ge domain.GameEndPayload
	if err := json.Unmarshal(end.Payload, &ge); err != nil {
		t.Fatalf("decode game_end: %v", err)
	}
	if len(ge.Scoreboard) != 2 {
		t.Fatalf("scoreboard size = %d, want 2", len(ge.Scoreboard))
	}
	if ge.Scoreboard[0].ID != "host" {
		t.Fatalf("winner = %s, want host", ge.Scoreboard[0].ID)
	}

	// Streak bonus: host's second correct answer carries +10%.
	wantHost := 100 + 110
	if ge.Scoreboard[0].Score != wantHost {
		t.Fatalf("host score = %d, want %d", ge.Scoreboard[0].Score, wantHost)
	}

	// Stats land once the game ends; both identities are registered users.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if stats.Total("host") == wantHost && stats.Total("u1") == 100 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("stats never written: host=%d u1=%d", stats.Total("host"), stats.Total("u1"))
}

func TestWSOverlappingReconnectKeepsSeat(t *testing.T) {
	server, _ := newTestServer(t)
	code := createRoom(t, server, "flow-1", "host")

	host := dial(t, server, "code="+code+"&name=Host&userId=host")
	readUntil(t, host, domain.EventRoomJoined)

	// The same identity opens a second socket while the first is still up,
	// then the stale first socket closes.
	stale := dial(t, server, "code="+code+"&name=Alice&userId=u1")
	readUntil(t, stale, domain.EventRoomJoined)
	live := dial(t, server, "code="+code+"&name=Alice&userId=u1")
	readUntil(t, live, domain.EventRoomJoined)

	stale.Close()

	// A fresh roster snapshot after the stale close must still show u1
	// connected, and the live socket must still receive broadcasts.
	send(t, host, "add_bot", addBotPayload{Name: "Botty"})

	var roster domain.LobbyUpdatePayload
	for {
		event := readUntil(t, host, domain.EventLobbyUpdate)
		if err := json.Unmarshal(event.Payload, &roster); err != nil {
			t.Fatalf("decode lobby_update: %v", err)
		}
		if len(roster.Roster) == 3 {
			break
		}
	}
	for _, p := range roster.Roster {
		if p.ID == "u1" && !p.Connected {
			t.Fatal("stale socket close disconnected the live connection")
		}
	}

	send(t, live, "ping", nil)
	readUntil(t, live, domain.EventPong)
}

func TestWSReconnectResyncsState(t *testing.T) {
	server, _ := newTestServer(t)
	code := createRoom(t, server, "flow-1", "host")

	host := dial(t, server, "code="+code+"&name=Host&userId=host")
	readUntil(t, host, domain.EventRoomJoined)

	player := dial(t, server, "code="+code+"&name=Alice&userId=u1")
	readUntil(t, player, domain.EventRoomJoined)

	send(t, host, "start", nil)
	readUntil(t, player, domain.EventQuestionActive)

	player.Close()

	// Same identity reconnects mid-question and gets the live state back.
	again := dial(t, server, "code="+code+"&name=Alice&userId=u1")
	event := readUntil(t, again, domain.EventRoomJoined)

	var joined domain.RoomJoinedPayload
	if err := json.Unmarshal(event.Payload, &joined); err != nil {
		t.Fatalf("decode room_joined: %v", err)
	}
	if joined.Phase != domain.PhaseQuestionActive {
		t.Fatalf("phase = %s, want QUESTION_ACTIVE", joined.Phase)
	}
	if joined.Question == nil || joined.Question.Prompt != "first" {
		t.Fatalf("resync payload missing question: %+v", joined.Question)
	}

	// A brand-new identity is turned away after start.
	late := dial(t, server, fmt.Sprintf("code=%s&name=Late&userId=late", code))
	errEvent := readUntil(t, late, domain.EventError)
	var payload domain.ErrorPayload
	if err := json.Unmarshal(errEvent.Payload, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Code != domain.ErrCodeRoomStarted {
		t.Fatalf("error code = %s, want %s", payload.Code, domain.ErrCodeRoomStarted)
	}
}

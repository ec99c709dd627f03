package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"trivia-live-service/internal/app"
	"trivia-live-service/internal/domain"
	"trivia-live-service/internal/game"
)

// WSHandler upgrades connections and feeds inbound events to the router.
type WSHandler struct {
	router   *app.Router
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

func NewWSHandler(router *app.Router, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		router: router,
		log:    log,
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
	Ordinal   int                  `json:"ordinal"`
	Answer    domain.AnswerPayload `json:"answer"`
	ElapsedMs int                  `json:"elapsedMs"`
}

type addBotPayload struct {
	Name string `json:"name"`
}

// ServeWS wires one participant connection into a room. Identity comes
// from the userId query parameter; without one a guest id is minted and
// echoed back so the tab can reuse it across reconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	displayName := r.URL.Query().Get("name")
	if code == "" || displayName == "" {
		http.Error(w, "missing code or name", http.StatusBadRequest)
		return
	}

	identity := r.URL.Query().Get("userId")
	guest := identity == ""
	if guest {
		identity = "guest-" + uuid.NewString()
	}
	anonymous := r.URL.Query().Get("anonymous") == "true"

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}

	client := newWSClient(conn, h.log)
	defer client.close()

	joined, err := h.router.Join(code, identity, displayName, game.JoinOptions{
		Guest:     guest,
		Anonymous: anonymous,
	}, client)
	if err != nil {
		_ = client.Send(errorEvent(err))
		return
	}
	_ = client.Send(domain.NewEvent(domain.EventRoomJoined, joined))

	h.readLoop(conn, client, code, identity)
	h.router.Disconnect(code, identity, client)
}

func (h *WSHandler) readLoop(conn *websocket.Conn, client *wsClient, code, identity string) {
	log := h.log.WithFields(logrus.Fields{"room": code, "participant": identity})
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("ws read ended")
			}
			return
		}

		switch inbound.Type {
		case "start":
			if err := h.router.Start(code, identity); err != nil {
				h.reportActionError(client, log, "start", err)
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				_ = client.Send(invalidMessageEvent("invalid answer payload"))
				continue
			}
			err := h.router.Submit(code, identity, payload.Ordinal, payload.Answer, payload.ElapsedMs)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrDuplicateSubmission), errors.Is(err, domain.ErrStaleSubmission):
				// Client retries and races are expected; reject silently.
				log.WithError(err).WithField("ordinal", payload.Ordinal).Debug("submission rejected")
			default:
				h.reportActionError(client, log, "answer", err)
			}
		case "advance":
			if err := h.router.Advance(code, identity); err != nil {
				if errors.Is(err, domain.ErrInvalidTransition) {
					log.WithError(err).Debug("advance ignored")
					continue
				}
				h.reportActionError(client, log, "advance", err)
			}
		case "add_bot":
			var payload addBotPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Name == "" {
				_ = client.Send(invalidMessageEvent("invalid add_bot payload"))
				continue
			}
			botID := "bot-" + uuid.NewString()
			if err := h.router.AddBot(code, identity, botID, payload.Name); err != nil {
				h.reportActionError(client, log, "add_bot", err)
			}
		case "ping":
			_ = client.Send(domain.NewEvent(domain.EventPong, nil))
		default:
			_ = client.Send(invalidMessageEvent("unsupported message type"))
		}
	}
}

func (h *WSHandler) reportActionError(client *wsClient, log *logrus.Entry, action string, err error) {
	log.WithError(err).WithField("action", action).Debug("action rejected")
	_ = client.Send(errorEvent(err))
}

func errorEvent(err error) domain.Event {
	code := domain.ErrCodeInternal
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		code = domain.ErrCodeNotFound
	case errors.Is(err, domain.ErrNotHost):
		code = domain.ErrCodeNotHost
	case errors.Is(err, domain.ErrGameAlreadyStarted):
		code = domain.ErrCodeRoomStarted
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrRoomClosed):
		code = domain.ErrCodeInvalidAction
	}
	return domain.NewEvent(domain.EventError, domain.ErrorPayload{Code: code, Message: err.Error()})
}

func invalidMessageEvent(message string) domain.Event {
	return domain.NewEvent(domain.EventError, domain.ErrorPayload{
		Code:    domain.ErrCodeInvalidMessage,
		Message: message,
	})
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"quiz-gate-service/internal/app"
	"quiz-gate-service/internal/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler runs one quiz session per websocket connection: the client sends
// intents, the server streams every state change and countdown tick.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWSHandler(service *app.QuizService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type beginPayload struct {
	DurationSeconds int `json:"durationSeconds"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type violationPayload struct {
	Kind string `json:"kind"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type outcomePayload struct {
	Outcome     domain.Outcome  `json:"outcome"`
	Destination string          `json:"destination"`
	Snapshot    domain.Snapshot `json:"snapshot"`
}

// ServeWS upgrades the request, starts a session for userId and serves it until
// the client disconnects. Disconnecting before the outcome abandons the session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	count := 0
	if raw := r.URL.Query().Get("questionCount"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid questionCount", http.StatusBadRequest)
			return
		}
		count = n
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// the request context ends with the handler; session operations must not
	ctx := context.WithoutCancel(r.Context())

	started, err := h.service.Start(ctx, userID, count)
	if err != nil {
		_ = conn.WriteJSON(errorMessageFor(err))
		return
	}
	sessionID := started.SessionID
	defer h.service.Abandon(ctx, sessionID)

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessageFor(err))
		return
	}
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.String("session_id", sessionID), zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- eventMessage(ev):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctx, sessionID, inbound); err != nil {
			reply(errorMessageFor(err))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch applies one client intent. Results reach the client through the
// session subscription, so only failures are answered directly.
func (h *WSHandler) dispatch(ctx context.Context, sessionID string, msg inboundMessage) error {
	switch msg.Type {
	case "begin":
		var p beginPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		_, err := h.service.BeginQuestionTimer(ctx, sessionID, p.DurationSeconds)
		return err
	case "answer":
		var p answerPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		_, err := h.service.SelectAnswer(ctx, sessionID, p.Option)
		return err
	case "advance":
		_, err := h.service.Advance(ctx, sessionID)
		return err
	case "violation":
		var p violationPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		kind, err := domain.ParseViolationKind(p.Kind)
		if err != nil {
			return &protocolError{msg: err.Error()}
		}
		_, err = h.service.ReportViolation(ctx, sessionID, kind)
		return err
	}
	return &protocolError{msg: "unsupported message type"}
}

type protocolError struct{ msg string }

func (e *protocolError) Error() string { return e.msg }

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &protocolError{msg: "invalid payload"}
	}
	return nil
}

func eventMessage(ev domain.Event) outboundMessage {
	if ev.Type == domain.EventOutcome && ev.Snapshot.Outcome != nil {
		return outboundMessage{Type: "outcome", Payload: outcomePayload{
			Outcome:     *ev.Snapshot.Outcome,
			Destination: ev.Snapshot.Outcome.Destination(),
			Snapshot:    ev.Snapshot,
		}}
	}
	return outboundMessage{Type: "state", Payload: ev.Snapshot}
}

func errorMessageFor(err error) outboundMessage {
	if perr, ok := err.(*protocolError); ok {
		return outboundMessage{Type: "error", Payload: errorPayload{Message: perr.msg, Code: "bad_request"}}
	}
	status, code := statusFor(err)
	return outboundMessage{Type: "error", Payload: errorPayload{Message: errorMessage(err, status), Code: code}}
}

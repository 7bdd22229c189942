package http

import (
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

const wsWriteWait = 10 * time.Second

type WSHandler struct {
	service  *app.SessionService
	logger   logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService, logger logrus.FieldLogger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger,
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

type questionPayload struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

type indexPayload struct {
	Index *int `json:"index"`
	Page  *int `json:"page"`
}

type restartPayload struct {
	CatalogID string `json:"catalogId"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS upgrades the request and binds the connection to one session. With
// catalogId a new session is started and discarded when the connection
// closes; with sessionId an existing session is attached.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("sessionId")
	catalogID := q.Get("catalogId")
	if sessionID == "" && catalogID == "" {
		http.Error(w, "missing sessionId or catalogId", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	owned := false
	if sessionID == "" {
		allowChange, _ := strconv.ParseBool(q.Get("allowAnswerChange"))
		snap, err := h.service.Start(ctx, app.StartRequest{
			CatalogID:         catalogID,
			UserID:            q.Get("userId"),
			AllowAnswerChange: allowChange,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		sessionID = snap.SessionID
		owned = true
	}

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()
	if owned {
		defer func() {
			// the creating connection owns the session lifetime
			_ = h.service.Discard(ctx, sessionID)
		}()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()
	// server-level timeouts must not cut long-lived sockets
	_ = conn.SetReadDeadline(time.Time{})

	log := h.logger.WithField("session_id", sessionID)
	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			data, err := json.Marshal(msg)
			if err != nil {
				log.WithError(err).Error("ws encode")
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.WithError(err).Debug("ws write")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					// session discarded elsewhere; ask the peer to hang up
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
						time.Now().Add(wsWriteWait))
					return
				}
				select {
				case send <- outboundMessage{Type: "snapshot", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var inbound inboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			send <- outboundMessage{Type: "error", Payload: errorPayload{Code: "invalid", Message: "malformed message"}}
			continue
		}
		if err := h.dispatch(r, sessionID, inbound); err != nil {
			send <- outboundMessage{Type: "error", Payload: toErrorPayload(err)}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	log.Debug("ws closed")
}

// dispatch applies one inbound command. Resulting state reaches the client
// through the session subscription.
func (h *WSHandler) dispatch(r *http.Request, sessionID string, msg inboundMessage) error {
	ctx := r.Context()
	var err error
	switch msg.Type {
	case "submitAnswer", "clearAnswer", "toggleReview":
		var p questionPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		switch msg.Type {
		case "submitAnswer":
			_, err = h.service.SubmitAnswer(ctx, sessionID, p.QuestionID, p.Value)
		case "clearAnswer":
			_, err = h.service.ClearAnswer(ctx, sessionID, p.QuestionID)
		default:
			_, err = h.service.ToggleReview(ctx, sessionID, p.QuestionID)
		}
	case "goTo", "selectPage":
		var p indexPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		switch {
		case msg.Type == "goTo" && p.Index != nil:
			_, err = h.service.GoTo(ctx, sessionID, *p.Index)
		case msg.Type == "selectPage" && p.Page != nil:
			_, err = h.service.SelectPage(ctx, sessionID, *p.Page)
		default:
			return errBadRequest
		}
	case "next":
		_, err = h.service.Next(ctx, sessionID)
	case "prev":
		_, err = h.service.Prev(ctx, sessionID)
	case "finish":
		_, err = h.service.Finish(ctx, sessionID)
	case "restart":
		var p restartPayload
		if len(msg.Payload) > 0 {
			if err := decodePayload(msg.Payload, &p); err != nil {
				return err
			}
		}
		_, err = h.service.Restart(ctx, sessionID, p.CatalogID)
	case "stroke":
		var stroke domain.Stroke
		if err := decodePayload(msg.Payload, &stroke); err != nil {
			return err
		}
		_, err = h.service.AddStroke(ctx, sessionID, stroke)
	case "clearStrokes":
		_, err = h.service.ClearStrokes(ctx, sessionID)
	default:
		return errUnsupported
	}
	return err
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errBadRequest
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadRequest
	}
	return nil
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

type WSHandler struct {
	service   *app.QuizService
	tokens    TokenParser
	timeLimit int
	log       logrus.FieldLogger
	upgrader  websocket.Upgrader
}

// NewWSHandler serves the quiz protocol. timeLimit is used when a start
// message does not carry its own. tokens may be nil, in which case every
// connection plays anonymously.
func NewWSHandler(service *app.QuizService, tokens TokenParser, timeLimit int, log logrus.FieldLogger) *WSHandler {
	return &WSHandler{
		service:   service,
		tokens:    tokens,
		timeLimit: timeLimit,
		log:       log,
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

type startPayload struct {
	domain.QuizConfig
	TimeLimit int `json:"timeLimit"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type resumePayload struct {
	TimeRemaining int    `json:"timeRemaining"`
	FormattedTime string `json:"formattedTime"`
	Answered      int    `json:"answered"`
	Total         int    `json:"total"`
}

type reviewItem struct {
	Question       string `json:"question"`
	CorrectAnswer  string `json:"correctAnswer"`
	SelectedAnswer string `json:"selectedAnswer,omitempty"`
	IsCorrect      bool   `json:"isCorrect"`
}

type resultPayload struct {
	domain.QuizResult
	Review []reviewItem `json:"review"`
}

// ServeWS upgrades HTTP requests to websockets and drives one player's quiz.
// Query: token (optional access token), deviceId (optional).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	player, err := h.playerFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	c := &wsConn{
		h:      h,
		player: player,
		send:   make(chan outboundMessage[any], 16),
		done:   make(chan struct{}),
		log:    h.log.WithFields(logrus.Fields{"user_id": player.UserID, "device_id": player.DeviceID}),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				c.log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	ctx := r.Context()
	if candidate, ok := h.service.CheckResume(ctx, player); ok {
		c.emit("resumeAvailable", resumePayload{
			TimeRemaining: candidate.Remaining,
			FormattedTime: app.FormatRemaining(candidate.Remaining),
			Answered:      candidate.Answered,
			Total:         candidate.Total,
		})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		c.handle(ctx, inbound)
	}

	close(c.done)
	c.disconnect()
	c.wg.Wait()
	close(c.send)
	<-writerDone
}

func (h *WSHandler) playerFor(r *http.Request) (domain.Player, error) {
	q := r.URL.Query()
	player := domain.Player{DeviceID: q.Get("deviceId")}
	if token := q.Get("token"); token != "" && h.tokens != nil {
		userID, err := h.tokens.Parse(token)
		if err != nil {
			return domain.Player{}, err
		}
		player.UserID = userID
	}
	if player.DeviceID == "" {
		if player.Anonymous() {
			player.DeviceID = uuid.NewString()
		} else {
			player.DeviceID = player.UserID
		}
	}
	return player, nil
}

// wsConn is one connection's state. Only the read loop mutates session.
type wsConn struct {
	h      *WSHandler
	player domain.Player
	log    logrus.FieldLogger

	send chan outboundMessage[any]
	done chan struct{}
	wg   sync.WaitGroup

	session     *app.Session
	unsubscribe func()
}

func (c *wsConn) emit(kind string, payload any) bool {
	select {
	case c.send <- outboundMessage[any]{Type: kind, Payload: payload}:
		return true
	case <-c.done:
		return false
	}
}

func (c *wsConn) fail(err error) {
	c.emit("error", errorPayload{Message: err.Error()})
}

func (c *wsConn) handle(ctx context.Context, inbound inboundMessage) {
	svc := c.h.service
	switch inbound.Type {
	case "start":
		var payload startPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.emit("error", errorPayload{Message: "invalid start payload"})
			return
		}
		limit := payload.TimeLimit
		if limit == 0 {
			limit = c.h.timeLimit
		}
		session, err := svc.Start(ctx, c.player, payload.QuizConfig, limit)
		if err != nil {
			c.fail(err)
			return
		}
		c.follow(ctx, session)
	case "resume":
		session, err := svc.Resume(ctx, c.player)
		if err != nil {
			c.fail(err)
			return
		}
		c.follow(ctx, session)
	case "discard":
		if err := svc.Discard(ctx, c.player); err != nil {
			c.fail(err)
			return
		}
		c.emit("discarded", struct{}{})
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.emit("error", errorPayload{Message: "invalid answer payload"})
			return
		}
		// The next question or the result arrives through the subscription.
		if _, err := svc.Answer(ctx, c.player, payload.Answer); err != nil {
			c.fail(err)
		}
	case "finish":
		if _, err := svc.Finish(ctx, c.player); err != nil {
			c.fail(err)
		}
	case "pause":
		status, live := c.status()
		if err := svc.PauseAndExit(ctx, c.player); err != nil {
			c.fail(err)
			return
		}
		c.stopFollowing()
		if live {
			c.emit("paused", status)
		} else {
			c.emit("paused", struct{}{})
		}
	case "quit":
		if err := svc.DiscardAndExit(ctx, c.player); err != nil {
			c.fail(err)
			return
		}
		c.stopFollowing()
		c.emit("discarded", struct{}{})
	default:
		c.emit("error", errorPayload{Message: "unsupported message type"})
	}
}

// follow forwards the session's events to the client until it finishes or
// the connection moves on to another session.
func (c *wsConn) follow(ctx context.Context, session *app.Session) {
	c.stopFollowing()
	c.session = session

	events, cancel, err := c.h.service.Subscribe(ctx, c.player)
	if err != nil {
		// Already over before we could subscribe.
		if result, ok := session.Result(); ok {
			c.emit("result", resultFor(session, result))
			return
		}
		c.fail(err)
		return
	}
	c.unsubscribe = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if !c.forward(session, ev) {
					return
				}
			case <-c.done:
				return
			}
		}
	}()
}

func (c *wsConn) forward(session *app.Session, ev domain.SessionEvent) bool {
	switch ev.Type {
	case domain.EventFinished:
		if ev.Result != nil {
			c.emit("result", resultFor(session, *ev.Result))
		}
		return false
	case domain.EventTick:
		return c.emit("tick", ev)
	default:
		return c.emit("question", ev)
	}
}

func (c *wsConn) stopFollowing() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.session = nil
}

func (c *wsConn) status() (domain.SessionEvent, bool) {
	if c.session == nil {
		return domain.SessionEvent{}, false
	}
	return c.session.Status(), true
}

// disconnect keeps an interrupted session resumable, unless another
// connection has taken it over.
func (c *wsConn) disconnect() {
	session := c.session
	c.stopFollowing()
	if session == nil {
		return
	}
	if live, ok := c.h.service.Session(c.player); ok && live == session {
		live.Pause()
		c.log.Info("connection closed, quiz paused")
	}
}

func resultFor(session *app.Session, result domain.QuizResult) resultPayload {
	state := session.State()
	answers := make(map[string]domain.Answer, len(state.Answers))
	for _, a := range state.Answers {
		answers[a.QuestionID] = a
	}
	review := make([]reviewItem, 0, len(state.Questions))
	for _, q := range state.Questions {
		item := reviewItem{Question: q.Prompt, CorrectAnswer: q.CorrectAnswer}
		if a, ok := answers[q.ID]; ok {
			item.SelectedAnswer = a.SelectedAnswer
			item.IsCorrect = a.IsCorrect
		}
		review = append(review, item)
	}
	return resultPayload{QuizResult: result, Review: review}
}

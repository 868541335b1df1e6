package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"heartrisk/dataset"
	"heartrisk/ml"
	"heartrisk/risk"
)

type SessionState string

const (
	StateCollecting SessionState = "collecting"
	StateRequested  SessionState = "requested"
	StateAssessed   SessionState = "assessed"
)

// AssessmentSession is the state of one interactive assessment: the record
// being edited and whether an assessment was requested or delivered. Any
// edit returns the session to collecting.
//
// The websocket handler assesses synchronously on the read pump, so
// requested only lasts while one message is handled and every reply reports
// collecting or assessed. A session is not safe for concurrent use.
type AssessmentSession struct {
	state    SessionState
	encoders *ml.EncoderBank
	defaults dataset.RawRecord
	record   dataset.RawRecord
	last     *risk.Assessment
}

// NewAssessmentSession starts from the form defaults. When encoders is
// non-nil each categorical column defaults to its first fitted class.
func NewAssessmentSession(encoders *ml.EncoderBank) *AssessmentSession {
	defaults := dataset.DefaultRecord().Raw()
	if encoders != nil {
		for _, column := range encoders.Columns() {
			if enc, ok := encoders.Encoder(column); ok && len(enc.Classes()) > 0 {
				defaults[column] = enc.Classes()[0]
			}
		}
	}
	s := &AssessmentSession{encoders: encoders, defaults: defaults}
	s.Reset()
	return s
}

func (s *AssessmentSession) State() SessionState {
	return s.state
}

// Record returns a copy of the record being edited.
func (s *AssessmentSession) Record() dataset.RawRecord {
	return s.record.Clone()
}

func (s *AssessmentSession) Last() *risk.Assessment {
	return s.last
}

// Set validates and stores one field value. Category labels are checked
// against the fitted encoders when the session has them.
func (s *AssessmentSession) Set(name string, value any) error {
	field, ok := dataset.Lookup(name)
	if !ok {
		return &dataset.InvalidValueError{Column: name, Value: value, Reason: "unknown field"}
	}
	if field.IsCategorical() {
		label, err := field.CoerceCategory(value)
		if err != nil {
			return err
		}
		if s.encoders != nil && s.encoders.Has(name) {
			if _, err := s.encoders.Encode(name, label); err != nil {
				return err
			}
		}
		s.record[name] = label
	} else {
		number, err := field.CoerceNumber(value)
		if err != nil {
			return err
		}
		s.record[name] = number
	}
	s.state = StateCollecting
	s.last = nil
	return nil
}

func (s *AssessmentSession) Reset() {
	s.record = s.defaults.Clone()
	s.state = StateCollecting
	s.last = nil
}

// Request moves the session to requested and returns the record to assess.
// A second Request before Complete or Fail is an error.
func (s *AssessmentSession) Request() (dataset.RawRecord, error) {
	if s.state == StateRequested {
		return nil, errors.New("an assessment is already in progress")
	}
	s.state = StateRequested
	return s.record.Clone(), nil
}

func (s *AssessmentSession) Complete(a risk.Assessment) {
	s.state = StateAssessed
	s.last = &a
}

// Fail returns a requested session to collecting.
func (s *AssessmentSession) Fail() {
	s.state = StateCollecting
	s.last = nil
}

type sessionRequest struct {
	Type  string          `json:"type"` // set, reset, assess, state
	Field string          `json:"field,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

type sessionReply struct {
	Type       string            `json:"type"` // state, assessment, error
	State      SessionState      `json:"state"`
	Record     dataset.RawRecord `json:"record,omitempty"`
	Assessment *risk.Assessment  `json:"assessment,omitempty"`
	Error      *apiError         `json:"error,omitempty"`
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	session *AssessmentSession
	handler *Handler
	logger  *zap.Logger
}

func (h *Handler) handleAssessWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	var encoders *ml.EncoderBank
	if p := h.predictor.Load(); p != nil {
		encoders = p.Bundle().Encoders
	}
	c := &wsClient{
		conn:    conn,
		send:    make(chan []byte, 16),
		session: NewAssessmentSession(encoders),
		handler: h,
		logger:  h.logger.With(zap.String("request_id", GetRequestID(r.Context()))),
	}
	h.metrics.SessionOpened()
	c.logger.Info("assessment session opened")

	go c.writePump()
	c.reply(c.stateReply())
	c.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		close(c.send)
		c.handler.metrics.SessionClosed()
		c.logger.Info("assessment session closed")
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		var req sessionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(c.errorReply(apiError{Error: "message must be a JSON object", Kind: "bad_request"}))
			continue
		}
		c.reply(c.handle(req))
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle applies one client message to the session.
func (c *wsClient) handle(req sessionRequest) sessionReply {
	switch req.Type {
	case "set":
		var value any
		dec := json.NewDecoder(bytes.NewReader(req.Value))
		dec.UseNumber()
		if err := dec.Decode(&value); err != nil {
			return c.errorReply(apiError{Error: fmt.Sprintf("value for %s is not valid JSON", req.Field), Kind: "bad_request", Column: req.Field})
		}
		if err := c.session.Set(req.Field, value); err != nil {
			_, body := classify(err)
			return c.errorReply(body)
		}
		return c.stateReply()
	case "reset":
		c.session.Reset()
		return c.stateReply()
	case "state":
		return c.stateReply()
	case "assess":
		record, err := c.session.Request()
		if err != nil {
			return c.errorReply(apiError{Error: err.Error(), Kind: "bad_request"})
		}
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteWait)
		defer cancel()
		assessment, err := c.handler.assess(ctx, record)
		if err != nil {
			c.session.Fail()
			_, body := classify(err)
			return c.errorReply(body)
		}
		c.session.Complete(assessment)
		return sessionReply{Type: "assessment", State: c.session.State(), Record: c.session.Record(), Assessment: c.session.Last()}
	default:
		return c.errorReply(apiError{Error: fmt.Sprintf("unknown message type %q", req.Type), Kind: "bad_request"})
	}
}

func (c *wsClient) stateReply() sessionReply {
	return sessionReply{Type: "state", State: c.session.State(), Record: c.session.Record()}
}

func (c *wsClient) errorReply(body apiError) sessionReply {
	return sessionReply{Type: "error", State: c.session.State(), Error: &body}
}

func (c *wsClient) reply(r sessionReply) {
	data, err := json.Marshal(r)
	if err != nil {
		c.logger.Error("encode session reply", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("session send buffer full, dropping reply")
	}
}

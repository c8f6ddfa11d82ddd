package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/rapidrevise/internal/examprep"
	"github.com/p-n-ai/rapidrevise/internal/studyplan"
)

// Stream message types.
const (
	MessageEvent  = "event"
	MessageResult = "result"
	MessageError  = "error"
)

// StreamMessage is one frame of the progress stream. The last frame is
// either a result or an error.
type StreamMessage struct {
	Type  string               `json:"type"`
	Event *examprep.Event      `json:"event,omitempty"`
	Plan  *studyplan.StudyPlan `json:"plan,omitempty"`
	Error string               `json:"error,omitempty"`
}

// handleExamPrepStream runs a workflow and pushes its events over a
// websocket. Input errors are reported before the upgrade as plain 400s.
func (s *Server) handleExamPrepStream(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	// The client only listens; a close from its side cancels the run.
	ctx := conn.CloseRead(r.Context())

	sink := examprep.FuncEventSink(func(ctx context.Context, e examprep.Event) error {
		return wsjson.Write(ctx, conn, StreamMessage{Type: MessageEvent, Event: &e})
	})
	res := s.runner.Run(ctx, req, sink)

	final := StreamMessage{Type: MessageResult, Plan: res.Plan}
	if res.Err != nil {
		final = StreamMessage{Type: MessageError, Error: res.Err.Error()}
	} else {
		s.persist(r, res.Plan)
	}
	if err := wsjson.Write(ctx, conn, final); err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("writing stream result failed", "error", err)
		}
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/rapidrevise/internal/ai"
	"github.com/p-n-ai/rapidrevise/internal/api"
	"github.com/p-n-ai/rapidrevise/internal/examprep"
)

func dialStream(t *testing.T, runner api.Runner, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ts := httptest.NewServer(newServer(t, runner, nil, ""))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/exam-prep/stream?" + query
	return websocket.Dial(ctx, url, nil)
}

func readAll(t *testing.T, conn *websocket.Conn) []api.StreamMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var msgs []api.StreamMessage
	for {
		var m api.StreamMessage
		if err := wsjson.Read(ctx, conn, &m); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.Fatalf("read error = %v", err)
			}
			return msgs
		}
		msgs = append(msgs, m)
	}
}

func TestExamPrepStream(t *testing.T) {
	conn, _, err := dialStream(t, &stubRunner{}, validQuery)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	msgs := readAll(t, conn)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 2 events and a result: %+v", len(msgs), msgs)
	}
	if msgs[0].Type != api.MessageEvent || msgs[0].Event.Type != examprep.EventRunStarted {
		t.Errorf("first message = %+v", msgs[0])
	}
	last := msgs[2]
	if last.Type != api.MessageResult || last.Plan == nil || last.Plan.Topics[0].Name != "Optics" {
		t.Errorf("last message = %+v", last)
	}
}

func TestExamPrepStream_WorkflowError(t *testing.T) {
	runner := &stubRunner{err: &ai.GenerationError{Stage: ai.StageFetchSource, Err: errors.New("boom")}}
	conn, _, err := dialStream(t, runner, validQuery)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	msgs := readAll(t, conn)
	last := msgs[len(msgs)-1]
	if last.Type != api.MessageError || !strings.Contains(last.Error, "boom") || last.Plan != nil {
		t.Errorf("last message = %+v", last)
	}
}

func TestExamPrepStream_BadRequest(t *testing.T) {
	_, resp, err := dialStream(t, &stubRunner{}, "subject=Physics")
	if err == nil {
		t.Fatal("Dial() should fail for an invalid request")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("response = %+v, want 400", resp)
	}
}

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lcroft/pond/internal/pond/domain"
)

// sseFrame is one parsed server-sent event.
type sseFrame struct {
	ID    string
	Event string
	Data  string
}

// readFrames consumes the stream until want frames with data arrived or
// the context expired. Comment-only frames (heartbeats) are skipped.
func readFrames(ctx context.Context, t *testing.T, r *bufio.Reader, want int) []sseFrame {
	t.Helper()

	var (
		frames  []sseFrame
		current sseFrame
	)
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				errs <- err
				return
			}
			select {
			case lines <- strings.TrimRight(line, "\n"):
			case <-ctx.Done():
				return
			}
		}
	}()

	for len(frames) < want {
		select {
		case <-ctx.Done():
			t.Fatalf("timed out with %d/%d frames", len(frames), want)
		case err := <-errs:
			t.Fatalf("read stream: %v", err)
		case line := <-lines:
			switch {
			case line == "":
				if current.Data != "" {
					frames = append(frames, current)
				}
				current = sseFrame{}
			case strings.HasPrefix(line, "id: "):
				current.ID = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "event: "):
				current.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				current.Data = strings.TrimPrefix(line, "data: ")
			}
		}
	}
	return frames
}

func TestStreamDeliversEvents(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	alice := h.token(t, "user-alice", "Alice")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.server.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+alice)
	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type = %q", got)
	}

	reader := bufio.NewReader(resp.Body)

	// The reconnect hint is the first thing on the wire.
	retryLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read retry hint: %v", err)
	}
	if strings.TrimSpace(retryLine) != "retry: 3000" {
		t.Fatalf("retry hint = %q, want retry: 3000", retryLine)
	}

	// Events appended after connect reach the stream.
	obj := h.addFish(t, alice, "Koi")
	catchResp := h.do(t, http.MethodPost, "/api/fish/"+obj.ID+"/catch", alice, nil, "")
	if catchResp.StatusCode != http.StatusOK {
		t.Fatalf("catch status = %d", catchResp.StatusCode)
	}

	frames := readFrames(ctx, t, reader, 2)
	if frames[0].Event != string(domain.EventAdd) || frames[1].Event != string(domain.EventCatch) {
		t.Fatalf("frame order = %s, %s; want ADD then CATCH", frames[0].Event, frames[1].Event)
	}
	if frames[0].ID == "" || frames[1].ID == "" {
		t.Errorf("frames missing ids: %+v", frames)
	}

	var event domain.Event
	if err := json.Unmarshal([]byte(frames[1].Data), &event); err != nil {
		t.Fatalf("decode catch frame: %v", err)
	}
	if event.Type != domain.EventCatch || event.ObjectName != "Koi" || event.ActorName != "Alice" {
		t.Errorf("catch event = %+v", event)
	}
}

func TestStreamSkipsHistoryByDefault(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	alice := h.token(t, "user-alice", "Alice")

	// History written before the stream connects.
	before := h.addFish(t, alice, "Old Fish")
	_ = before

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.server.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+alice)
	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatalf("read retry hint: %v", err)
	}

	fresh := h.addFish(t, alice, "New Fish")

	frames := readFrames(ctx, t, reader, 1)
	var event domain.Event
	if err := json.Unmarshal([]byte(frames[0].Data), &event); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if event.ObjectID != fresh.ID {
		t.Errorf("first delivered event is %s (%s), want the post-connect fish", event.ObjectID, event.ObjectName)
	}
}

func TestStreamResumesFromLastEventID(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	alice := h.token(t, "user-alice", "Alice")

	first := h.addFish(t, alice, "First")
	second := h.addFish(t, alice, "Second")
	_ = first

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.server.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+alice)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatalf("read retry hint: %v", err)
	}

	frames := readFrames(ctx, t, reader, 1)
	var event domain.Event
	if err := json.Unmarshal([]byte(frames[0].Data), &event); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if event.ObjectID != second.ID {
		t.Errorf("resumed event object = %s, want the second fish", event.ObjectID)
	}
}

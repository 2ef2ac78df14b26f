package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lcroft/pond/internal/pond/domain"
)

const defaultReconnectDelay = 3 * time.Second

// Stream reads the server's event feed and delivers pond events in
// order, reconnecting on connection loss. Duplicate ids across
// reconnects are dropped; within one session delivered ids are strictly
// increasing.
type Stream struct {
	client *Client
	events chan domain.Event

	// reconnectDelay follows the server's retry hint once seen.
	reconnectDelay time.Duration
	lastID         int64
}

// OpenStream starts reading the event feed. The returned channel closes
// when ctx is done.
func (c *Client) OpenStream(ctx context.Context) *Stream {
	s := &Stream{
		client:         c,
		events:         make(chan domain.Event, 16),
		reconnectDelay: defaultReconnectDelay,
	}
	go s.run(ctx)
	return s
}

// Events returns the ordered event channel.
func (s *Stream) Events() <-chan domain.Event {
	return s.events
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.events)
	for {
		if err := s.connectOnce(ctx); err != nil && ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Stream) connectOnce(ctx context.Context) error {
	req, err := s.client.newRequest(ctx, http.MethodGet, "/api/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if s.lastID > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatInt(s.lastID, 10))
	}

	// The stream request must not share the API client's timeout.
	resp, err := (&http.Client{Transport: s.client.http.Transport}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	return s.readFrames(ctx, resp.Body)
}

func (s *Stream) readFrames(ctx context.Context, body io.Reader) error {
	reader := bufio.NewReader(body)
	var frame sseFrame
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			s.dispatch(ctx, frame)
			frame = sseFrame{}
		case strings.HasPrefix(line, "retry:"):
			if ms, err := strconv.Atoi(strings.TrimSpace(line[len("retry:"):])); err == nil && ms > 0 {
				s.reconnectDelay = time.Duration(ms) * time.Millisecond
			}
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment.
		case strings.HasPrefix(line, "id:"):
			frame.id = strings.TrimSpace(line[len("id:"):])
		case strings.HasPrefix(line, "event:"):
			frame.event = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			frame.data = strings.TrimSpace(line[len("data:"):])
		}
	}
}

type sseFrame struct {
	id    string
	event string
	data  string
}

func (s *Stream) dispatch(ctx context.Context, frame sseFrame) {
	if frame.data == "" {
		return
	}
	var event domain.Event
	if err := json.Unmarshal([]byte(frame.data), &event); err != nil {
		return
	}
	if event.ID == 0 && frame.id != "" {
		if parsed, err := strconv.ParseInt(frame.id, 10, 64); err == nil {
			event.ID = parsed
		}
	}
	// Drop replays from reconnects; delivered ids only move forward.
	if event.ID <= s.lastID {
		return
	}
	s.lastID = event.ID

	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

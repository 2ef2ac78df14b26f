package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// handleStream serves the pond event log as server-sent events.
//
// The distributor is a per-connection cursor poll: each connection
// remembers the last event id it wrote and periodically reads anything
// newer from the log. Fresh connections start at the current top of the
// log; clients recover anything older with a snapshot refetch.
// Reconnecting clients present Last-Event-ID and resume from there.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	cursor, resumed := lastEventID(r)
	if !resumed {
		latest, err := s.svc.LatestEventID(ctx)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		cursor = latest
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Reconnect backoff hint, sent once per connection.
	fmt.Fprintf(w, "retry: %d\n\n", s.streamRetryHint.Milliseconds())
	flusher.Flush()

	poll := time.NewTicker(s.streamPoll)
	defer poll.Stop()
	heartbeat := time.NewTicker(s.streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-poll.C:
			events, err := s.svc.EventsAfter(ctx, cursor, 0)
			if err != nil {
				// Transient read failures drop this poll; the next tick
				// retries from the same cursor.
				continue
			}
			if len(events) == 0 {
				continue
			}
			for _, event := range events {
				data, err := json.Marshal(event)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)
				cursor = event.ID
			}
			flusher.Flush()
		}
	}
}

func lastEventID(r *http.Request) (int64, bool) {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

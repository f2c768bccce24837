package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cuemby/herald/pkg/events"
)

// streamEvents writes lifecycle events as server-sent events until the
// client disconnects. ?bot=<id> limits the stream to one bot.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	var filter events.Filter
	if botID := r.URL.Query().Get("bot"); botID != "" {
		filter = events.ForBot(botID)
	}

	broker := s.manager.GetEventBroker()
	sub := broker.Subscribe(filter)
	defer broker.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeEvent(w, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)
	return err
}

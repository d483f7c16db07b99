package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// streamEvents relays lifecycle notices as server-sent events until the
// client disconnects or the notice hub closes.
func (rt *Router) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported"})
		return
	}

	notices, release := rt.notices.Subscribe()
	defer release()
	if rt.metrics != nil {
		defer rt.metrics.StreamOpened()()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(rt.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case notice, ok := <-notices:
			if !ok {
				return
			}
			payload, err := json.Marshal(notice)
			if err != nil {
				rt.logger.Error("notice_encode_failed", "kind", notice.Kind, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", notice.Kind, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

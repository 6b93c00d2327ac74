package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type streamEvent struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// vectorSearchStream runs the same pipeline as vectorSearch but forwards
// completion chunks as server-sent events. Pipeline failures before the first
// chunk use the regular JSON error mapping; once the event stream has started
// the only option left is an error event followed by termination.
func (rt *Router) vectorSearchStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	query, err := rt.parseQuery(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		rt.writeError(w, r, fmt.Errorf("streaming is not supported by response writer"))
		return
	}

	start := time.Now()
	chunks, err := rt.answerer.StreamAnswer(r.Context(), query)
	if err != nil {
		rt.recordOutcome(err, time.Since(start))
		rt.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for chunk := range chunks {
		if chunk.Err != nil {
			rt.metrics.RecordPipelineOutcome(rt.service, "error", time.Since(start))
			logRequestError(r, "stream failed", chunk.Err)
			writeEvent(w, flusher, streamEvent{Error: genericErrorMessage})
			return
		}
		writeEvent(w, flusher, streamEvent{Text: chunk.Text})
	}
	rt.metrics.RecordPipelineOutcome(rt.service, "success", time.Since(start))

	_, _ = io.WriteString(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event streamEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

package streamsrv

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vtengine/core/pkg/metrics"
)

// metricsSource is the subset of *engine.Engine the SSE tail needs,
// narrowed so tests can supply a fake snapshot sequence instead of a
// full engine.
type metricsSource interface {
	GetMetrics(structSize uint32) (metrics.Snapshot, error)
}

// handleSSE tails one connection's metrics, polling at a fixed interval
// and emitting the full set of fields whenever the snapshot differs
// from the last one sent.
// Grounded on the teacher's SSEStreamer.Stream, replacing "tail a
// recorded asciinema file" with "tail a live engine's present counters."
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	s.mu.Lock()
	src, ok := s.metricsSources[sessionID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var last metrics.Snapshot
	first := true

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap, err := src.GetMetrics(metrics.Size)
			if err != nil {
				writeSSEError(w, err)
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if !first && snap == last {
				continue
			}
			first = false
			last = snap
			if err := writeSSEFrame(w, snap); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}

type sseFrame struct {
	FrameIndex      uint64 `json:"frame_index"`
	BytesEmitted    uint64 `json:"bytes_emitted"`
	FramesDropped   uint64 `json:"frames_dropped"`
	DamageRects     uint32 `json:"damage_rects"`
	RowsRepainted   uint32 `json:"rows_repainted"`
	DamageFullFrame bool   `json:"damage_full_frame"`
	ScrollOptimized bool   `json:"scroll_optimized"`
	EventsQueued    uint64 `json:"events_queued"`
	EventsDropped   uint64 `json:"events_dropped"`
	QueueHighWater  uint32 `json:"queue_high_water"`
}

func writeSSEFrame(w http.ResponseWriter, snap metrics.Snapshot) error {
	frame := sseFrame{
		FrameIndex:      snap.FrameIndex,
		BytesEmitted:    snap.BytesEmitted,
		FramesDropped:   snap.FramesDropped,
		DamageRects:     snap.DamageRects,
		RowsRepainted:   snap.RowsRepainted,
		DamageFullFrame: snap.DamageFullFrame,
		ScrollOptimized: snap.ScrollOptimized,
		EventsQueued:    snap.EventsQueued,
		EventsDropped:   snap.EventsDropped,
		QueueHighWater:  snap.QueueHighWater,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: frame\ndata: %s\n\n", data)
	return err
}

func writeSSEError(w http.ResponseWriter, err error) {
	data, _ := json.Marshal(map[string]string{"message": err.Error()})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
}

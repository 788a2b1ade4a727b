package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// maxTopN caps the ?top= override so one request cannot ask for the whole
// symptom vocabulary.
const maxTopN = 100

// Handler serves aggregated query analytics over HTTP.
type Handler struct {
	aggregator *Aggregator
	collector  *Collector
	topN       int
	logger     *slog.Logger
}

// NewHandler serves agg. collector may be nil; when set, its drop counter is
// reported alongside the stats.
func NewHandler(agg *Aggregator, collector *Collector, topN int) *Handler {
	return &Handler{
		aggregator: agg,
		collector:  collector,
		topN:       topN,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
}

type statsResponse struct {
	Stats
	DroppedEvents *int64 `json:"dropped_events,omitempty"`
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	topN := h.topN
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.write(w, http.StatusBadRequest, map[string]string{"error": "top must be a positive integer"})
			return
		}
		topN = min(n, maxTopN)
	}

	resp := statsResponse{Stats: h.aggregator.Stats(topN)}
	if h.collector != nil {
		dropped := h.collector.Dropped()
		resp.DroppedEvents = &dropped
	}
	h.write(w, http.StatusOK, resp)
}

func (h *Handler) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

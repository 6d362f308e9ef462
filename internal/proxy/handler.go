package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"claimpoint/internal"
	"claimpoint/internal/logging"
	"claimpoint/internal/ratelimit"
)

const maxBodyBytes = 10 << 20

const (
	msgInvalidTable  = "Invalid table parameter"
	msgInvalidBody   = "Invalid request body"
	msgInternalError = "Internal Server Error"
)

// Handler serves the record-set API over a RecordStore.
type Handler struct {
	Store   internal.RecordStore
	Tables  []string
	Limiter *ratelimit.Limiter
	Logger  *zap.Logger
}

func NewHandler(store internal.RecordStore, tables []string, limiter *ratelimit.Limiter, logger *zap.Logger) *Handler {
	return &Handler{
		Store:   store,
		Tables:  tables,
		Limiter: limiter,
		Logger:  logging.OrNop(logger).Named("proxy"),
	}
}

// Routes returns the mux with rate limiting and request logging applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/records", h.HandleFetch)
	mux.HandleFunc("POST /api/records", h.HandleInsert)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	return h.logRequests(h.limit(mux))
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidTable)
		return
	}

	records, err := h.Store.Fetch(r.Context(), table)
	if err != nil {
		h.fail(w, "fetch", table, err)
		return
	}
	if records == nil {
		records = []internal.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidTable)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	records, err := internal.DecodeRecords(body)
	if err != nil || len(records) == 0 {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	stored, err := h.Store.Insert(r.Context(), table, records)
	if err != nil {
		h.fail(w, "insert", table, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *Handler) table(r *http.Request) (string, bool) {
	table := strings.TrimSpace(r.URL.Query().Get("table"))
	if table == "" {
		return "", false
	}
	if len(h.Tables) > 0 && !slices.Contains(h.Tables, table) {
		return "", false
	}
	return table, true
}

// fail reports store errors. Rejected input is a 400; every backend fault is the same
// generic 500 and the detail goes to the log only.
func (h *Handler) fail(w http.ResponseWriter, op, table string, err error) {
	if errors.Is(err, internal.ErrValidation) {
		h.Logger.Info("record request rejected", zap.String("op", op), zap.String("table", table), zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.Logger.Error("record store failure", zap.String("op", op), zap.String("table", table), zap.Error(err))
	writeError(w, http.StatusInternalServerError, msgInternalError)
}

func (h *Handler) limit(next http.Handler) http.Handler {
	if h.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.Limiter.Wait(r.Context()); err != nil {
			retry := int(math.Ceil(h.Limiter.Delay().Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
			writeError(w, http.StatusServiceUnavailable, "Service Unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.Logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("table", r.URL.Query().Get("table")),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

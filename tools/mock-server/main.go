// Package main implements a mock Thanos query API for local development.
// It answers instant and range queries from a JSON fixture of canned series
// and accepts Pushgateway pushes, so a full report run works without a
// cluster.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// series is one canned answer. The first series whose Match is a substring
// of the query expression answers it.
type series struct {
	Match  string    `json:"match"`
	Values []float64 `json:"values"`
}

type fixture struct {
	Series []series `json:"series"`
}

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	fixtureFile := flag.String("fixture", "tools/mock-server/testdata/series.json", "path to series fixture")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fx, err := loadFixture(*fixtureFile)
	if err != nil {
		logger.Error("failed to load fixture", "path", *fixtureFile, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded fixture", "series", len(fx.Series))

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/query", queryHandler(logger, fx))
	mux.HandleFunc("/api/v1/query_range", queryRangeHandler(logger, fx))
	mux.HandleFunc("/metrics/job/", pushHandler(logger))

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock thanos server", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var fx fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &fx, nil
}

// lookup returns the values canned for expr, or nil when nothing matches.
func (fx *fixture) lookup(expr string) []float64 {
	for _, s := range fx.Series {
		if strings.Contains(expr, s.Match) {
			return s.Values
		}
	}
	return nil
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

type apiResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

type queryData struct {
	ResultType string `json:"resultType"`
	Result     []any  `json:"result"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
	json.NewEncoder(w).Encode(v)
}

func badData(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, apiResponse{Status: "error", Error: msg})
}

// point renders a sample the way the Prometheus API does: [unix, "value"].
func point(at time.Time, v float64) []any {
	return []any{float64(at.UnixMilli()) / 1000, strconv.FormatFloat(v, 'f', -1, 64)}
}

func queryHandler(logger *slog.Logger, fx *fixture) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expr := r.FormValue("query")
		if expr == "" {
			badData(w, "missing query")
			return
		}
		at := time.Now()
		if ts := r.FormValue("time"); ts != "" {
			parsed, err := parseTime(ts)
			if err != nil {
				badData(w, err.Error())
				return
			}
			at = parsed
		}

		data := queryData{ResultType: "vector", Result: []any{}}
		if values := fx.lookup(expr); len(values) > 0 {
			data.Result = append(data.Result, map[string]any{
				"metric": map[string]string{},
				"value":  point(at, values[len(values)-1]),
			})
		}

		writeJSON(w, http.StatusOK, apiResponse{Status: "success", Data: data})
		logger.Info("query", "expr", expr, "series", len(data.Result))
	}
}

func queryRangeHandler(logger *slog.Logger, fx *fixture) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expr := r.FormValue("query")
		if expr == "" {
			badData(w, "missing query")
			return
		}
		start, err := parseTime(r.FormValue("start"))
		if err != nil {
			badData(w, "start: "+err.Error())
			return
		}
		end, err := parseTime(r.FormValue("end"))
		if err != nil {
			badData(w, "end: "+err.Error())
			return
		}
		if end.Before(start) {
			badData(w, "end timestamp must not be before start time")
			return
		}

		data := queryData{ResultType: "matrix", Result: []any{}}
		if values := fx.lookup(expr); len(values) > 0 {
			data.Result = append(data.Result, map[string]any{
				"metric": map[string]string{},
				"values": spread(start, end, values),
			})
		}

		writeJSON(w, http.StatusOK, apiResponse{Status: "success", Data: data})
		logger.Info("query_range", "expr", expr, "series", len(data.Result))
	}
}

// spread places values evenly across [start, end].
func spread(start, end time.Time, values []float64) [][]any {
	out := make([][]any, 0, len(values))
	if len(values) == 1 {
		return append(out, point(end, values[0]))
	}
	gap := end.Sub(start) / time.Duration(len(values)-1)
	for i, v := range values {
		out = append(out, point(start.Add(time.Duration(i)*gap), v))
	}
	return out
}

// parseTime accepts unix seconds with an optional fraction, or RFC 3339.
func parseTime(s string) (time.Time, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse %q to a valid timestamp", s)
	}
	return t, nil
}

func pushHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut && r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		n, err := io.Copy(io.Discard, r.Body)
		if err != nil {
			logger.Warn("reading push body", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		logger.Info("push", "method", r.Method, "group", strings.TrimPrefix(r.URL.Path, "/metrics/job/"), "bytes", n)
	}
}

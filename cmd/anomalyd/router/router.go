// Package router configures HTTP routes for the anomalyd HTTP API.
//
// Routes configured:
//   - GET /                                 - Usage note (HTML)
//   - GET /predict?csv_path=<path>          - Score every row of a CSV file
//   - GET /reports/latest?csv_path=<path>   - Latest run report for a file (when reports are enabled)
//   - GET /healthz                          - Health check endpoint
//   - GET /metrics                          - Prometheus metrics endpoint
//
// /predict answers 200 with a JSON array of scored rows, 400 with
// {"error": ...} for a missing path or missing columns, and 500 with
// {"error": ...} for any other failure. Other methods on these routes get 405.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/anomalyd/cmd/anomalyd/metrics"
	"github.com/HatiCode/anomalyd/pkg/detect"
	"github.com/HatiCode/anomalyd/pkg/httpx"
	"github.com/HatiCode/anomalyd/pkg/storage"
)

// SourceParam is the query parameter carrying the CSV path.
const SourceParam = "csv_path"

const indexHTML = `<h1>Anomaly Detection API</h1>
<p>Use the following URL to score a CSV file:</p>
<code>http://localhost:5000/predict?csv_path=your_file_path</code>
`

// Predictor scores the table at source.
type Predictor interface {
	Predict(ctx context.Context, source string) (*detect.Result, error)
}

// SetupRoutes configures HTTP endpoints. store may be nil, which leaves
// /reports/latest unregistered; health may be nil for an always-OK check.
// m may be nil.
func SetupRoutes(
	predictor Predictor,
	store storage.Store,
	health func(ctx context.Context) error,
	m *metrics.Metrics,
	logger *slog.Logger,
) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.Use(
		httpx.RequestIDMiddleware,
		httpx.LoggingMiddleware(logger),
		httpx.RecoveryMiddleware(logger),
	)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteErrorMessage(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/", handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/predict", handlePredict(predictor, m, logger)).Methods(http.MethodGet)

	if store != nil {
		r.HandleFunc("/reports/latest", handleLatestReport(store, logger)).Methods(http.MethodGet)
	}

	if health == nil {
		r.Handle("/healthz", httpx.HealthHandler()).Methods(http.MethodGet)
	} else {
		r.Handle("/healthz", httpx.HealthHandlerWithCheck(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return health(ctx)
		})).Methods(http.MethodGet)
	}

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(indexHTML)); err != nil {
		slog.Error("failed to write index page", "error", err)
	}
}

// handlePredict returns a handler for GET /predict?csv_path=<path>.
func handlePredict(predictor Predictor, m *metrics.Metrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := r.URL.Query().Get(SourceParam)

		result, err := predictor.Predict(r.Context(), source)
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				logger.Error("predict failed",
					"request_id", httpx.RequestID(r.Context()),
					"source", source,
					"error", err,
				)
				recordPredict(m, "server_error")
			} else {
				logger.Info("predict rejected", "source", source, "error", err)
				recordPredict(m, "client_error")
			}
			httpx.WriteErrorMessage(w, status, err.Error())
			return
		}

		recordPredict(m, "ok")
		if err := httpx.WriteJSON(w, http.StatusOK, result); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var verr *detect.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func recordPredict(m *metrics.Metrics, outcome string) {
	if m != nil {
		m.RecordPredict(outcome)
	}
}

// handleLatestReport returns a handler for GET /reports/latest?csv_path=<path>.
func handleLatestReport(store storage.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := r.URL.Query().Get(SourceParam)
		if source == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, detect.MissingPathMessage)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		report, found, err := store.GetLatest(ctx, source)
		if err != nil {
			logger.Error("failed to get report", "source", source, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("no report for %q", source))
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, report); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

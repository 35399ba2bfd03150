// Package detect implements the anomaly detection pipeline behind the
// predict endpoint:
//
//	load → resolve columns → build features → transform → score → threshold
//
// A Detector holds its Scaler and Scorer for the process lifetime and never
// mutates them, so a single Detector serves concurrent requests. Each stage
// is timed and reported through an optional Recorder; failures are returned
// as *ValidationError or *ProcessingError.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/HatiCode/anomalyd/pkg/adapters"
	"github.com/HatiCode/anomalyd/pkg/features"
	"github.com/HatiCode/anomalyd/pkg/models"
	"github.com/HatiCode/anomalyd/pkg/storage"
)

// Pipeline stage names used in errors, logs and metrics.
const (
	StageRequest   = "request"
	StageLoad      = "load"
	StageResolve   = "resolve"
	StageFeatures  = "features"
	StageTransform = "transform"
	StageScore     = "score"
	StageReport    = "report"
)

// Recorder receives pipeline measurements.
type Recorder interface {
	RecordStage(stage string, seconds float64)
	RecordScored(rows, anomalies int)
	RecordError(kind, stage string)
}

// Detector scores tables of operational metrics.
type Detector struct {
	loader  adapters.Adapter
	schema  features.Schema
	builder *features.Builder
	scaler  models.Scaler
	scorer  models.Scorer
	store   storage.Store
	logger  *slog.Logger
	metrics Recorder

	reportQuantile float64
}

// New creates a Detector. store and metrics may be nil; a nil store
// disables run reports.
func New(
	loader adapters.Adapter,
	schema features.Schema,
	scaler models.Scaler,
	scorer models.Scorer,
	store storage.Store,
	logger *slog.Logger,
	metrics Recorder,
) *Detector {
	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		loader:  loader,
		schema:  schema,
		builder: features.NewBuilder(),
		scaler:  scaler,
		scorer:  scorer,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// WithReportQuantile makes run reports carry the q-quantile of the decision
// scores. Zero disables it. It must be called before serving.
func (d *Detector) WithReportQuantile(q float64) *Detector {
	d.reportQuantile = q
	return d
}

// Mode returns the column resolution mode.
func (d *Detector) Mode() features.Mode {
	return d.schema.Mode
}

// Store returns the report store, or nil when reports are disabled.
func (d *Detector) Store() storage.Store {
	return d.store
}

// Predict loads the table at source and returns one scored row per input
// row, in input order. Nothing partial is returned on error.
func (d *Detector) Predict(ctx context.Context, source string) (*Result, error) {
	start := time.Now()

	if source == "" {
		d.recordError("validation", StageRequest)
		return nil, validation(ErrMissingPath)
	}

	df, loadDuration, err := d.load(ctx, source)
	if err != nil {
		d.recordError("processing", StageLoad)
		return nil, processing(StageLoad, err)
	}

	res, err := d.schema.Resolve(df.Columns)
	if err != nil {
		d.recordError("validation", StageResolve)
		return nil, validation(err)
	}

	frame, err := d.builder.BuildFeatures(df, res)
	if err != nil {
		d.recordError("processing", StageFeatures)
		return nil, processing(StageFeatures, err)
	}

	result := &Result{Rows: []ScoredRow{}, Scores: []float64{}}
	var scoreDuration time.Duration

	if frame.Len() > 0 {
		scores, duration, err := d.score(ctx, frame)
		if err != nil {
			return nil, err
		}
		scoreDuration = duration

		result.Scores = scores
		result.Rows = make([]ScoredRow, frame.Len())
		for i, score := range scores {
			status := Status(score)
			result.Anomalies += status
			result.Rows[i] = d.scoredRow(res, frame.Samples[i], score, status)
		}
	}

	if d.metrics != nil {
		d.metrics.RecordScored(len(result.Rows), result.Anomalies)
	}

	d.recordReport(ctx, source, result)

	d.logger.Info("predict complete",
		"source", source,
		"mode", d.schema.Mode,
		"rows", len(result.Rows),
		"anomalies", result.Anomalies,
		"load_ms", loadDuration.Milliseconds(),
		"score_ms", scoreDuration.Milliseconds(),
		"total_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// load reads the table from the adapter.
func (d *Detector) load(ctx context.Context, source string) (*adapters.DataFrame, time.Duration, error) {
	start := time.Now()

	df, err := d.loader.Load(ctx, source)
	if err != nil {
		return nil, 0, err
	}

	duration := time.Since(start)
	d.recordStage(StageLoad, duration)

	d.logger.Debug("loaded table",
		"adapter", d.loader.Name(),
		"source", source,
		"columns", len(df.Columns),
		"rows", df.Len(),
		"duration_ms", duration.Milliseconds(),
	)

	return df, duration, nil
}

// score runs the scaler and scorer over the feature frame and checks the
// shape of what they return.
func (d *Detector) score(ctx context.Context, frame features.Frame) ([]float64, time.Duration, error) {
	start := time.Now()

	scaled, err := d.scaler.Transform(ctx, frame.Vectors)
	if err != nil {
		d.recordError("processing", StageTransform)
		return nil, 0, processing(StageTransform, err)
	}
	if err := checkScaled(scaled, frame.Len()); err != nil {
		d.recordError("processing", StageTransform)
		return nil, 0, processing(StageTransform, err)
	}
	d.recordStage(StageTransform, time.Since(start))

	scoreStart := time.Now()
	scores, err := d.scorer.DecisionFunction(ctx, scaled)
	if err != nil {
		d.recordError("processing", StageScore)
		return nil, 0, processing(StageScore, err)
	}
	if err := checkScores(scores, frame.Len()); err != nil {
		d.recordError("processing", StageScore)
		return nil, 0, processing(StageScore, err)
	}
	d.recordStage(StageScore, time.Since(scoreStart))

	duration := time.Since(start)
	d.logger.Debug("scored batch",
		"scaler", d.scaler.Name(),
		"scorer", d.scorer.Name(),
		"rows", frame.Len(),
		"duration_ms", duration.Milliseconds(),
	)

	return scores, duration, nil
}

func checkScaled(scaled [][]float64, rows int) error {
	if len(scaled) != rows {
		return fmt.Errorf("scaler returned %d rows for %d inputs", len(scaled), rows)
	}
	for i, v := range scaled {
		if len(v) != features.Width {
			return fmt.Errorf("scaler returned %d features for row %d, expected %d", len(v), i+1, features.Width)
		}
	}
	return nil
}

func checkScores(scores []float64, rows int) error {
	if len(scores) != rows {
		return fmt.Errorf("scorer returned %d scores for %d rows", len(scores), rows)
	}
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("scorer returned a non-finite score for row %d", i+1)
		}
	}
	return nil
}

// scoredRow lays out the resolved columns in schema order, keyed by the
// header names they resolved to, then the score and status.
func (d *Detector) scoredRow(res *features.Resolution, s features.Sample, score float64, status int) ScoredRow {
	row := make(ScoredRow, 0, len(res.Schema.Columns)+2)
	for _, spec := range res.Schema.Columns {
		var value any
		switch spec.Column {
		case features.ColumnTimestamp:
			value = s.Timestamp
		case features.ColumnCPU:
			value = s.CPU
		case features.ColumnMemory:
			value = s.Memory
		case features.ColumnLatency:
			value = s.Latency
		}
		row = append(row, Field{Name: res.Name(spec.Column), Value: value})
	}
	return append(row,
		Field{Name: ScoreField, Value: score},
		Field{Name: StatusField, Value: status},
	)
}

// recordReport stores a run summary when reports are enabled. A failure is
// logged and does not affect the predict result.
func (d *Detector) recordReport(ctx context.Context, source string, result *Result) {
	if d.store == nil {
		return
	}

	report := storage.Report{
		ID:          uuid.NewString(),
		Source:      source,
		Mode:        string(d.schema.Mode),
		Scorer:      d.scorer.Name(),
		GeneratedAt: time.Now().UTC(),
		Rows:        len(result.Rows),
		Anomalies:   result.Anomalies,
	}
	if len(result.Scores) > 0 {
		report.MinScore, report.MaxScore = result.Scores[0], result.Scores[0]
		for _, s := range result.Scores[1:] {
			report.MinScore = math.Min(report.MinScore, s)
			report.MaxScore = math.Max(report.MaxScore, s)
		}
		if d.reportQuantile > 0 {
			report.QuantileLevel = FormatQuantileLevel(d.reportQuantile)
			report.ScoreQuantile = scoreQuantile(result.Scores, d.reportQuantile)
		}
	}

	if err := d.store.Put(ctx, report); err != nil {
		d.recordError("processing", StageReport)
		d.logger.Warn("failed to record run report", "source", source, "error", err)
		return
	}

	d.logger.Debug("recorded run report", "id", report.ID, "source", source)
}

func (d *Detector) recordStage(stage string, duration time.Duration) {
	if d.metrics != nil {
		d.metrics.RecordStage(stage, duration.Seconds())
	}
}

func (d *Detector) recordError(kind, stage string) {
	if d.metrics != nil {
		d.metrics.RecordError(kind, stage)
	}
}

// Package models builds the configured scaler and scorer.
package models

import (
	"fmt"
	"log/slog"

	"github.com/HatiCode/anomalyd/cmd/anomalyd/config"
	"github.com/HatiCode/anomalyd/pkg/features"
	"github.com/HatiCode/anomalyd/pkg/httpx"
	"github.com/HatiCode/anomalyd/pkg/models"
)

// widther is implemented by models that know their input width.
type widther interface {
	Width() int
}

// NewScaler loads the scaler selected by cfg.Scaler.
func NewScaler(cfg *config.Config, logger *slog.Logger) (models.Scaler, error) {
	if cfg.Scaler == "identity" {
		logger.Info("initializing identity scaler")
		return models.IdentityScaler{}, nil
	}

	scaler, err := models.LoadScaler(cfg.ScalerFile)
	if err != nil {
		return nil, err
	}
	if scaler.Name() != cfg.Scaler {
		return nil, fmt.Errorf("scaler file %q holds a %s scaler, want %s", cfg.ScalerFile, scaler.Name(), cfg.Scaler)
	}
	if err := checkWidth(scaler); err != nil {
		return nil, fmt.Errorf("scaler %q: %w", cfg.ScalerFile, err)
	}

	logger.Info("initializing scaler", "kind", scaler.Name(), "file", cfg.ScalerFile)
	return scaler, nil
}

// NewScorer builds the scorer selected by cfg.Scorer.
func NewScorer(cfg *config.Config, logger *slog.Logger) (models.Scorer, error) {
	switch cfg.Scorer {
	case "iforest":
		forest, err := models.LoadIsolationForest(cfg.ScorerFile)
		if err != nil {
			return nil, err
		}
		if err := checkWidth(forest); err != nil {
			return nil, fmt.Errorf("isolation forest %q: %w", cfg.ScorerFile, err)
		}
		logger.Info("initializing isolation forest scorer", "file", cfg.ScorerFile)
		return forest, nil

	case "byom":
		transport, err := httpx.NewTransport(cfg.BYOMTLS)
		if err != nil {
			return nil, fmt.Errorf("byom client: %w", err)
		}
		client := models.NewBYOMClient(cfg.BYOMTimeout, transport)
		logger.Info("initializing BYOM scorer",
			"url", cfg.BYOMURL,
			"score_path", cfg.BYOMScorePath,
			"timeout", cfg.BYOMTimeout,
			"tls", cfg.BYOMTLS.Enabled,
		)
		return models.NewBYOMScorer(cfg.BYOMURL, cfg.BYOMScorePath, client), nil

	default:
		return nil, fmt.Errorf("invalid scorer %q", cfg.Scorer)
	}
}

func checkWidth(m any) error {
	w, ok := m.(widther)
	if !ok {
		return nil
	}
	if w.Width() != features.Width {
		return fmt.Errorf("fit on %d features, expected %d (%v)", w.Width(), features.Width, features.Names)
	}
	return nil
}

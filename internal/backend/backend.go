// Package backend selects the implementation behind the ranking and
// consensus entry points.
//
// Pure runs the Go implementations in internal/ranking and
// internal/consensus. WASM hands the same work to an accelerated
// WebAssembly module and falls back to Pure for any call the module cannot
// serve, so both produce the same contracts.
package backend

import (
	"context"
	"sync"
	"time"

	"github.com/abelbrown/skyrank/internal/consensus"
	"github.com/abelbrown/skyrank/internal/logging"
	"github.com/abelbrown/skyrank/internal/model"
)

// Backend computes rankings and consensus results.
type Backend interface {
	// Name identifies the implementation ("pure" or "wasm")
	Name() string

	Newest(posts []model.PostMetrics) []model.PostMetrics
	Trending(posts []model.PostMetrics, now time.Time) []model.PostMetrics
	WilsonScore(posts []model.PostMetrics) []model.PostMetrics
	Score(posts []model.PostMetrics) []model.PostMetrics
	Controversial(posts []model.PostMetrics) []model.PostMetrics

	Analyze(votes []model.Vote) model.ConsensusResult
}

// Config selects and tunes a backend.
type Config struct {
	// WASMPath is the accelerated module; empty means pure only
	WASMPath string `koanf:"wasm_path"`

	Consensus consensus.Options `koanf:"consensus"`
}

// consensusOptions returns the clustering options, defaulting an unset
// block.
func (c Config) consensusOptions() consensus.Options {
	if c.Consensus == (consensus.Options{}) {
		return consensus.DefaultOptions()
	}
	return c.Consensus
}

// Select returns a WASM backend when cfg.WASMPath loads, Pure otherwise.
func Select(ctx context.Context, cfg Config) Backend {
	pure := NewPure(cfg.consensusOptions())
	if cfg.WASMPath == "" {
		logging.Debug("Backend selected", "backend", pure.Name())
		return pure
	}

	w, err := LoadWASM(ctx, cfg.WASMPath, pure)
	if err != nil {
		logging.Warn("Accelerated backend unavailable, using pure", "path", cfg.WASMPath, "error", err)
		return pure
	}
	logging.Info("Backend selected", "backend", w.Name(), "path", cfg.WASMPath)
	return w
}

var (
	defaultMu      sync.Mutex
	defaultConfig  Config
	defaultOnce    sync.Once
	defaultBackend Backend
)

// Configure sets the config used by the first call to Default. Later calls
// have no effect on an already selected backend.
func Configure(cfg Config) {
	defaultMu.Lock()
	defaultConfig = cfg
	defaultMu.Unlock()
}

// Default returns the process-wide backend, selecting it on first use.
func Default() Backend {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		cfg := defaultConfig
		defaultMu.Unlock()
		defaultBackend = Select(context.Background(), cfg)
	})
	return defaultBackend
}

// Reset discards the process-wide backend so the next Default call selects
// again. It must not race with Default.
func Reset() {
	if w, ok := defaultBackend.(*WASM); ok {
		_ = w.Close(context.Background())
	}
	defaultOnce = sync.Once{}
	defaultBackend = nil
	Configure(Config{})
}

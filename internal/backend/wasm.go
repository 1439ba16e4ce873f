package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/abelbrown/skyrank/internal/logging"
	"github.com/abelbrown/skyrank/internal/model"
)

// ErrExportMissing is returned when the module lacks a required export.
var ErrExportMissing = errors.New("wasm export missing")

// Module exports. Each entry point takes (ptr, len) of a UTF-8 JSON payload
// in linear memory and returns ptr<<32 | len of a JSON result allocated by
// the module. sort_by_trending also takes "now" in Unix milliseconds.
const (
	exportAlloc         = "alloc"
	exportDealloc       = "dealloc"
	exportNewest        = "sort_by_newest"
	exportTrending      = "sort_by_trending"
	exportWilson        = "sort_by_wilson_score"
	exportScore         = "sort_by_score"
	exportControversial = "sort_by_controversial"
	exportConsensus     = "analyze_consensus"
)

// WASM runs entry points in a WebAssembly module. Calls are serialized since
// module memory is shared. Any missing export or failed call is served by
// the fallback instead.
type WASM struct {
	mu       sync.Mutex
	runtime  wazero.Runtime
	mod      api.Module
	alloc    api.Function
	dealloc  api.Function
	fallback *Pure
}

// LoadWASM reads and instantiates the module at path.
func LoadWASM(ctx context.Context, path string, fallback *Pure) (*WASM, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wasm module: %w", err)
	}
	return NewWASM(ctx, code, fallback)
}

// NewWASM instantiates a module from its binary. The module must export
// memory plus alloc and dealloc; entry point exports are optional.
func NewWASM(ctx context.Context, code []byte, fallback *Pure) (*WASM, error) {
	if fallback == nil {
		fallback = NewPure(Config{}.consensusOptions())
	}

	r := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}

	compiled, err := r.CompileModule(ctx, code)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}

	cfg := wazero.NewModuleConfig().
		WithName("skyrank").
		WithStartFunctions("_initialize")
	mod, err := r.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate wasm module: %w", err)
	}

	w := &WASM{
		runtime:  r,
		mod:      mod,
		alloc:    mod.ExportedFunction(exportAlloc),
		dealloc:  mod.ExportedFunction(exportDealloc),
		fallback: fallback,
	}
	if w.alloc == nil || w.dealloc == nil || mod.Memory() == nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("%w: memory, %s and %s are required", ErrExportMissing, exportAlloc, exportDealloc)
	}

	logging.Debug("WASM module loaded", "exports", w.exports())
	return w, nil
}

func (w *WASM) Name() string { return "wasm" }

// Close releases the runtime.
func (w *WASM) Close(ctx context.Context) error {
	return w.runtime.Close(ctx)
}

// exports lists the entry points the module provides.
func (w *WASM) exports() []string {
	var names []string
	for _, name := range []string{exportNewest, exportTrending, exportWilson, exportScore, exportControversial, exportConsensus} {
		if w.mod.ExportedFunction(name) != nil {
			names = append(names, name)
		}
	}
	return names
}

// call writes payload into module memory, invokes export and copies the
// result out.
func (w *WASM) call(ctx context.Context, export string, payload []byte, extra ...uint64) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fn := w.mod.ExportedFunction(export)
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrExportMissing, export)
	}

	size := uint64(len(payload))
	res, err := w.alloc.Call(ctx, size)
	if err != nil {
		return nil, fmt.Errorf("alloc %d bytes: %w", size, err)
	}
	inPtr := res[0]
	defer w.free(ctx, inPtr, size)

	mem := w.mod.Memory()
	if !mem.Write(uint32(inPtr), payload) {
		return nil, fmt.Errorf("write %d bytes at %d: out of range", size, inPtr)
	}

	params := append([]uint64{inPtr, size}, extra...)
	res, err = fn.Call(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", export, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("call %s: no result", export)
	}

	outPtr, outLen := uint32(res[0]>>32), uint32(res[0])
	view, ok := mem.Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("read %d bytes at %d: out of range", outLen, outPtr)
	}
	out := make([]byte, len(view))
	copy(out, view)

	if uint64(outPtr) != inPtr {
		w.free(ctx, uint64(outPtr), uint64(outLen))
	}
	return out, nil
}

func (w *WASM) free(ctx context.Context, ptr, size uint64) {
	if _, err := w.dealloc.Call(ctx, ptr, size); err != nil {
		logging.Debug("WASM dealloc failed", "ptr", ptr, "size", size, "error", err)
	}
}

func (w *WASM) sort(export string, posts []model.PostMetrics, extra ...uint64) ([]model.PostMetrics, error) {
	if len(posts) == 0 {
		return []model.PostMetrics{}, nil
	}
	payload, err := encodePosts(posts)
	if err != nil {
		return nil, err
	}
	out, err := w.call(context.Background(), export, payload, extra...)
	if err != nil {
		return nil, err
	}
	return decodeOrder(out, posts)
}

func (w *WASM) fallbackSort(export string, posts []model.PostMetrics, extra []uint64, pure func() []model.PostMetrics) []model.PostMetrics {
	sorted, err := w.sort(export, posts, extra...)
	if err != nil {
		logFallback(export, err)
		return pure()
	}
	return sorted
}

func logFallback(export string, err error) {
	if errors.Is(err, ErrExportMissing) {
		logging.Debug("WASM export not provided, using pure", "export", export)
		return
	}
	logging.Warn("WASM call failed, using pure", "export", export, "error", err)
}

func (w *WASM) Newest(posts []model.PostMetrics) []model.PostMetrics {
	return w.fallbackSort(exportNewest, posts, nil, func() []model.PostMetrics {
		return w.fallback.Newest(posts)
	})
}

func (w *WASM) Trending(posts []model.PostMetrics, now time.Time) []model.PostMetrics {
	return w.fallbackSort(exportTrending, posts, []uint64{uint64(now.UnixMilli())}, func() []model.PostMetrics {
		return w.fallback.Trending(posts, now)
	})
}

func (w *WASM) WilsonScore(posts []model.PostMetrics) []model.PostMetrics {
	return w.fallbackSort(exportWilson, posts, nil, func() []model.PostMetrics {
		return w.fallback.WilsonScore(posts)
	})
}

func (w *WASM) Score(posts []model.PostMetrics) []model.PostMetrics {
	return w.fallbackSort(exportScore, posts, nil, func() []model.PostMetrics {
		return w.fallback.Score(posts)
	})
}

func (w *WASM) Controversial(posts []model.PostMetrics) []model.PostMetrics {
	return w.fallbackSort(exportControversial, posts, nil, func() []model.PostMetrics {
		return w.fallback.Controversial(posts)
	})
}

func (w *WASM) Analyze(votes []model.Vote) model.ConsensusResult {
	if len(votes) == 0 {
		return model.EmptyConsensus()
	}

	res, err := w.analyze(votes)
	if err != nil {
		logFallback(exportConsensus, err)
		return w.fallback.Analyze(votes)
	}
	return res
}

func (w *WASM) analyze(votes []model.Vote) (model.ConsensusResult, error) {
	payload, err := encodeVotes(votes)
	if err != nil {
		return model.ConsensusResult{}, err
	}
	out, err := w.call(context.Background(), exportConsensus, payload)
	if err != nil {
		return model.ConsensusResult{}, err
	}
	return decodeConsensus(out)
}

package sheetfill

import (
	"context"
	"sync"
	"time"
)

// DefaultAcquireTimeout bounds how long an export waits for a free renderer
// handle before surfacing pool exhaustion as a retryable error.
const DefaultAcquireTimeout = 30 * time.Second

// PoolConfig supplies dependencies for a renderer pool.
type PoolConfig struct {
	Size           int
	Factory        EngineFactory
	AcquireTimeout time.Duration
}

// RendererHandle owns one renderer engine. Exactly one render job occupies
// a handle at a time; the engine is started lazily on first use.
type RendererHandle struct {
	pool   *RendererPool
	engine RenderEngine
}

// Render runs a job on the handle's engine, starting it if needed.
func (h *RendererHandle) Render(ctx context.Context, job RenderJob) ([]byte, error) {
	if h == nil || h.pool == nil {
		return nil, NewError(KindInternal, "renderer handle is nil", nil)
	}
	if h.engine == nil {
		engine, err := h.pool.factory()
		if err != nil {
			return nil, NewError(KindRendererCrashed, "renderer engine start failed", err)
		}
		h.engine = engine
	}
	return h.engine.Render(ctx, job)
}

// RendererPool bounds concurrent access to external renderer processes.
// External converters are expensive to start and typically single-instance,
// so requests beyond pool capacity queue as intentional backpressure.
type RendererPool struct {
	factory        EngineFactory
	handles        chan *RendererHandle
	acquireTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// NewRendererPool creates a pool of size handles. Engines are created
// lazily, so construction never blocks on converter startup.
func NewRendererPool(cfg PoolConfig) (*RendererPool, error) {
	if cfg.Size <= 0 {
		return nil, NewError(KindValidation, "pool size must be positive", nil)
	}
	if cfg.Factory == nil {
		return nil, NewError(KindValidation, "pool requires an engine factory", nil)
	}
	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	pool := &RendererPool{
		factory:        cfg.Factory,
		handles:        make(chan *RendererHandle, cfg.Size),
		acquireTimeout: timeout,
		closed:         make(chan struct{}),
	}
	for i := 0; i < cfg.Size; i++ {
		pool.handles <- &RendererHandle{pool: pool}
	}
	return pool, nil
}

// Acquire blocks until a handle frees up, the caller cancels, or the
// queue-wait timeout fires. A timed-out acquire consumes nothing.
func (p *RendererPool) Acquire(ctx context.Context) (*RendererHandle, error) {
	if p == nil {
		return nil, NewError(KindInternal, "renderer pool is nil", nil)
	}

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case handle := <-p.handles:
		return handle, nil
	case <-ctx.Done():
		return nil, NewError(KindCanceled, "renderer acquisition canceled", ctx.Err())
	case <-timer.C:
		return nil, NewError(KindPoolExhausted, "no renderer available within queue-wait timeout", nil)
	case <-p.closed:
		return nil, NewError(KindInternal, "renderer pool is closed", nil)
	}
}

// Release returns a handle to the pool for the next job.
func (p *RendererPool) Release(handle *RendererHandle) {
	if p == nil || handle == nil {
		return
	}
	select {
	case p.handles <- handle:
	case <-p.closed:
		if handle.engine != nil {
			_ = handle.engine.Close()
		}
	}
}

// Discard drops a crashed or timed-out handle and replaces it with a fresh
// one, so one bad job cannot poison subsequent jobs and pool capacity never
// decays.
func (p *RendererPool) Discard(handle *RendererHandle) {
	if p == nil || handle == nil {
		return
	}
	if handle.engine != nil {
		_ = handle.engine.Close()
		handle.engine = nil
	}
	p.Release(&RendererHandle{pool: p})
}

// Close shuts the pool down and closes every idle engine. Handles checked
// out at close time are closed when released.
func (p *RendererPool) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.closed)
		for {
			select {
			case handle := <-p.handles:
				if handle.engine != nil {
					_ = handle.engine.Close()
				}
			default:
				return
			}
		}
	})
}

// Package pipeline runs a conversion: a counting scan, a bounded convert pool
// and a bounded write pool connected by blocking queues.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/codec"
)

// ErrStopped is returned by Run when the error policy stopped the run. It
// wraps the error that caused the stop.
var ErrStopped = errors.New("pipeline: stopped")

// errAlreadyRun guards against reusing a Pipeline.
var errAlreadyRun = errors.New("pipeline: Run called twice")

const (
	DefaultConvertQueueFactor = 32
	DefaultWriteQueueFactor   = 8
)

// Options configures a Pipeline.
type Options struct {
	// Parallelism is the size of each worker pool. Zero means runtime.NumCPU.
	Parallelism int
	// ConvertQueueFactor and WriteQueueFactor scale the queue capacities by
	// Parallelism. Zero selects the defaults.
	ConvertQueueFactor int
	WriteQueueFactor   int
	// ErrorHandler decides about failed units. Nil stops and keeps output.
	ErrorHandler codec.ErrorHandler
	Logger       *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.NumCPU()
	}
	if o.ConvertQueueFactor <= 0 {
		o.ConvertQueueFactor = DefaultConvertQueueFactor
	}
	if o.WriteQueueFactor <= 0 {
		o.WriteQueueFactor = DefaultWriteQueueFactor
	}
	if o.ErrorHandler == nil {
		o.ErrorHandler = Fixed(codec.StopKeep)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// QueueStat is a snapshot of one queue.
type QueueStat struct {
	Fill     int
	Capacity int
}

// Progress is a snapshot of a running conversion.
type Progress struct {
	// Total is the number of units found by counting, or -1 while counting
	// and after counting was canceled.
	Total int64
	// Counted is the number of units found so far.
	Counted      int64
	Submitted    int64
	Converted    int64
	Written      int64
	ConvertQueue QueueStat
	WriteQueue   QueueStat
}

// Pipeline connects a reader, a converter and a writer.
type Pipeline[IN, OUT any] struct {
	reader    codec.Reader[IN]
	converter codec.Converter[IN, OUT]
	writer    codec.Writer[OUT]
	opts      Options
	logger    *zap.Logger

	convertQ chan IN
	writeQ   chan OUT

	started      atomic.Bool
	countingDone atomic.Bool
	counted      atomic.Int64
	submitted    atomic.Int64
	converted    atomic.Int64
	written      atomic.Int64

	policy policy
}

// New returns a pipeline ready to Run.
func New[IN, OUT any](r codec.Reader[IN], c codec.Converter[IN, OUT], w codec.Writer[OUT], opts Options) *Pipeline[IN, OUT] {
	opts = opts.withDefaults()
	p := &Pipeline[IN, OUT]{
		reader:    r,
		converter: c,
		writer:    w,
		opts:      opts,
		logger:    opts.Logger.With(zap.String("run_id", uuid.NewString())),
		convertQ:  make(chan IN, opts.ConvertQueueFactor*opts.Parallelism),
		writeQ:    make(chan OUT, opts.WriteQueueFactor*opts.Parallelism),
	}
	p.policy.handler = opts.ErrorHandler
	return p
}

// Progress returns a snapshot of the run.
func (p *Pipeline[IN, OUT]) Progress() Progress {
	pr := Progress{
		Total:        -1,
		Counted:      p.counted.Load(),
		Submitted:    p.submitted.Load(),
		Converted:    p.converted.Load(),
		Written:      p.written.Load(),
		ConvertQueue: QueueStat{Fill: len(p.convertQ), Capacity: cap(p.convertQ)},
		WriteQueue:   QueueStat{Fill: len(p.writeQ), Capacity: cap(p.writeQ)},
	}
	if p.countingDone.Load() {
		pr.Total = pr.Counted
	}
	return pr
}

// Run executes the conversion and closes the writer and reader.
//
// Precondition: Run has not been called before on p.
// Postcondition: the writer and reader are closed. If the error policy stopped
// the run the error wraps ErrStopped; if ctx was canceled it wraps ctx.Err().
func (p *Pipeline[IN, OUT]) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errAlreadyRun
	}
	start := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.policy.cancel = func() {
		cancel()
		p.reader.Stop()
	}

	countCtx, stopCounting := context.WithCancel(runCtx)
	defer stopCounting()
	var counting errgroup.Group
	counting.Go(func() error {
		err := p.reader.CountUnits(countCtx, func() { p.counted.Add(1) })
		if err == nil && countCtx.Err() == nil {
			p.countingDone.Store(true)
			p.logger.Info("counting done", zap.Int64("units", p.counted.Load()), zap.Duration("elapsed", time.Since(start)))
		}
		return err
	})

	var writers errgroup.Group
	for i := 0; i < p.opts.Parallelism; i++ {
		writers.Go(func() error { p.writeLoop(runCtx); return nil })
	}
	var converters errgroup.Group
	for i := 0; i < p.opts.Parallelism; i++ {
		converters.Go(func() error { p.convertLoop(runCtx); return nil })
	}

	loadErr := p.reader.LoadUnits(runCtx, func(in IN) error {
		select {
		case p.convertQ <- in:
			p.submitted.Add(1)
			return nil
		case <-runCtx.Done():
			return runCtx.Err()
		}
	}, p.policy.handle)

	close(p.convertQ)
	_ = converters.Wait()
	p.logger.Info("convert drained", zap.Int64("converted", p.converted.Load()), zap.Duration("elapsed", time.Since(start)))
	close(p.writeQ)
	_ = writers.Wait()
	p.logger.Info("write drained", zap.Int64("written", p.written.Load()), zap.Duration("elapsed", time.Since(start)))

	stopCounting()
	countErr := counting.Wait()

	closeErr := p.writer.Close()
	p.logger.Info("writer closed", zap.Duration("elapsed", time.Since(start)))
	closeErr = multierr.Append(closeErr, p.reader.Close())

	if stop, cause := p.policy.stopped(); stop.Stops() {
		if stop == codec.StopDiscard {
			p.logger.Info("discarding written data")
			closeErr = multierr.Append(closeErr, p.writer.DiscardData())
		}
		return multierr.Append(fmt.Errorf("%w: %w", ErrStopped, cause), closeErr)
	}
	if err := ctx.Err(); err != nil {
		return multierr.Append(fmt.Errorf("conversion canceled: %w", err), closeErr)
	}
	if loadErr != nil {
		return multierr.Append(fmt.Errorf("loading units: %w", loadErr), closeErr)
	}
	if countErr != nil && !errors.Is(countErr, context.Canceled) {
		return multierr.Append(fmt.Errorf("counting units: %w", countErr), closeErr)
	}
	p.logger.Info("conversion finished",
		zap.Int64("written", p.written.Load()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return closeErr
}

// convertLoop drains the convert queue. Once ctx is canceled queued units are
// dropped without converting them.
func (p *Pipeline[IN, OUT]) convertLoop(ctx context.Context) {
	for in := range p.convertQ {
		if ctx.Err() != nil {
			continue
		}
		outs, err := p.converter.Convert(in)
		if err != nil {
			p.logger.Error("convert failed", zap.Error(err))
			p.policy.handle(ctx, fmt.Errorf("converting unit: %w", err))
			continue
		}
		p.converted.Add(1)
		for _, out := range outs {
			select {
			case p.writeQ <- out:
			case <-ctx.Done():
			}
		}
	}
}

func (p *Pipeline[IN, OUT]) writeLoop(ctx context.Context) {
	for out := range p.writeQ {
		if ctx.Err() != nil {
			continue
		}
		if err := p.writer.Accept(ctx, out); err != nil {
			p.logger.Error("write failed", zap.Error(err))
			p.policy.handle(ctx, fmt.Errorf("writing unit: %w", err))
			continue
		}
		p.written.Add(1)
	}
}

// policy applies the error handler's decisions. Requests are serialized so a
// blocking handler sees one failure at a time.
type policy struct {
	mu        sync.Mutex
	handler   codec.ErrorHandler
	cancel    func()
	ignoreAll bool
	decision  codec.Decision
	cause     error
}

func (pl *policy) handle(ctx context.Context, err error) codec.Decision {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.decision.Stops() {
		return pl.decision
	}
	if pl.ignoreAll {
		return codec.Ignore
	}
	d := pl.handler(ctx, err)
	switch {
	case d == codec.IgnoreAll:
		pl.ignoreAll = true
	case d.Stops():
		pl.decision, pl.cause = d, err
		if pl.cancel != nil {
			pl.cancel()
		}
	}
	return d
}

func (pl *policy) stopped() (codec.Decision, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if !pl.decision.Stops() {
		return codec.Ignore, nil
	}
	return pl.decision, pl.cause
}

// Fixed returns a handler that always decides d.
func Fixed(d codec.Decision) codec.ErrorHandler {
	return func(context.Context, error) codec.Decision { return d }
}

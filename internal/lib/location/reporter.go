package location

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mealdash/ordersync/internal/config"
)

// UplinkFunc forwards an accepted sample to the backend.
type UplinkFunc func(ctx context.Context, s Sample) error

// Options control the reporter's filters.
type Options struct {
	// MinInterval is the minimum spacing between forwarded samples.
	// Samples arriving sooner are discarded for uplink but still update
	// the locally displayed position. Default 5s.
	MinInterval time.Duration
	// MaxAccuracyMeters discards samples with a worse reported accuracy.
	// Default 100.
	MaxAccuracyMeters float64
	// TrailSize bounds the retained recent-sample trail. Default 50.
	TrailSize int

	AcquireTimeout time.Duration
	MaxStaleness   time.Duration
}

// OptionsFromConfig builds reporter options from configuration.
func OptionsFromConfig(cfg *config.LocationConfig) Options {
	return Options{
		MinInterval:       cfg.MinInterval,
		MaxAccuracyMeters: cfg.MaxAccuracyMeters,
		TrailSize:         cfg.TrailSize,
		AcquireTimeout:    cfg.AcquireTimeout,
		MaxStaleness:      cfg.MaxStaleness,
	}
}

func (o *Options) applyDefaults() {
	if o.MinInterval <= 0 {
		o.MinInterval = 5 * time.Second
	}
	if o.MaxAccuracyMeters <= 0 {
		o.MaxAccuracyMeters = 100
	}
	if o.TrailSize <= 0 {
		o.TrailSize = 50
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = 15 * time.Second
	}
	if o.MaxStaleness <= 0 {
		o.MaxStaleness = 3 * time.Second
	}
}

// Reporter samples the device position stream, filters by accuracy and
// rate, and forwards accepted samples to the uplink. Uplink failures are
// logged and reporting continues; permission denial is terminal for the
// session. Stream errors never propagate as panics or crashes, only as
// state.
type Reporter struct {
	opts   Options
	uplink UplinkFunc

	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	stopped atomic.Bool
	done    chan struct{}

	mu             sync.Mutex
	state          State
	lastErrKind    ErrorKind
	lastErr        error
	lastSample     *Sample
	lastForwarded  time.Time
	lastUplinkAt   time.Time
	trail          []Sample
	accepted       int
	discardedAcc   int
	discardedRate  int
	uplinkFailures int
}

// Start subscribes to the position stream and begins reporting. The
// returned Reporter must be released with Stop.
func Start(stream Stream, uplink UplinkFunc, opts Options) (*Reporter, error) {
	opts.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	samples, errs, err := stream.Watch(ctx, StreamOptions{
		AcquireTimeout: opts.AcquireTimeout,
		MaxStaleness:   opts.MaxStaleness,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	r := &Reporter{
		opts:   opts,
		uplink: uplink,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateActive,
	}

	go r.run(samples, errs)

	return r, nil
}

// Stop terminates the stream subscription and renders pending uplinks
// inert. Idempotent, and safe to call from within the uplink function.
func (r *Reporter) Stop() {
	r.once.Do(func() {
		r.stopped.Store(true)
		r.cancel()

		r.mu.Lock()
		if r.state != StatePermissionDenied {
			r.state = StateStopped
		}
		r.mu.Unlock()
	})
}

// Done is closed once the reporting loop has fully exited.
func (r *Reporter) Done() <-chan struct{} {
	return r.done
}

// Status returns a snapshot of the reporter state.
func (r *Reporter) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		State:             r.state,
		LastErrorKind:     r.lastErrKind,
		LastUplinkAt:      r.lastUplinkAt,
		Accepted:          r.accepted,
		DiscardedAccuracy: r.discardedAcc,
		DiscardedRate:     r.discardedRate,
		UplinkFailures:    r.uplinkFailures,
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	if r.lastSample != nil {
		s := *r.lastSample
		st.LastSample = &s
	}
	return st
}

// Trail returns a copy of the bounded recent-sample trail, oldest first.
func (r *Reporter) Trail() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	trail := make([]Sample, len(r.trail))
	copy(trail, r.trail)
	return trail
}

// run consumes the stream until it ends, an error is terminal, or Stop.
func (r *Reporter) run(samples <-chan Sample, errs <-chan error) {
	defer close(r.done)

	for {
		select {
		case <-r.ctx.Done():
			return

		case sample, ok := <-samples:
			if !ok {
				r.streamEnded()
				return
			}
			r.handleSample(sample)

		case err, ok := <-errs:
			if !ok {
				r.streamEnded()
				return
			}
			if terminal := r.handleError(err); terminal {
				r.cancel()
				return
			}
		}
	}
}

// handleSample applies the accuracy filter, then the rate filter, and
// forwards the sample if both pass. Discarded samples still update the
// locally displayed position and trail.
func (r *Reporter) handleSample(sample Sample) {
	r.mu.Lock()
	s := sample
	r.lastSample = &s
	r.trail = append(r.trail, sample)
	if len(r.trail) > r.opts.TrailSize {
		r.trail = r.trail[len(r.trail)-r.opts.TrailSize:]
	}

	if sample.AccuracyMeters > r.opts.MaxAccuracyMeters {
		r.discardedAcc++
		r.mu.Unlock()
		return
	}

	now := time.Now()
	if !r.lastForwarded.IsZero() && now.Sub(r.lastForwarded) < r.opts.MinInterval {
		r.discardedRate++
		r.mu.Unlock()
		return
	}
	r.lastForwarded = now
	r.mu.Unlock()

	if r.stopped.Load() || r.uplink == nil {
		return
	}

	if err := r.uplink(r.ctx, sample); err != nil {
		if r.ctx.Err() != nil {
			return
		}
		log.Printf("Location uplink failed: %v", err)
		r.mu.Lock()
		r.uplinkFailures++
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.accepted++
	r.lastUplinkAt = now
	r.mu.Unlock()
}

// handleError classifies a stream error. Permission denial is terminal;
// everything else is surfaced as recoverable status.
func (r *Reporter) handleError(err error) bool {
	kind := Classify(err)

	r.mu.Lock()
	r.lastErrKind = kind
	r.lastErr = err
	if kind == KindPermissionDenied {
		r.state = StatePermissionDenied
	}
	r.mu.Unlock()

	if kind == KindPermissionDenied {
		log.Printf("Location reporting stopped: %v", err)
		return true
	}

	log.Printf("Position stream error (%s): %v", kind, err)
	return false
}

// streamEnded records that the underlying stream closed on its own.
func (r *Reporter) streamEnded() {
	if r.ctx.Err() != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateActive {
		r.state = StateStopped
		r.lastErrKind = KindUnavailable
		r.lastErr = ErrPositionUnavailable
	}
}

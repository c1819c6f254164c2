package pipeline

import (
	"context"
	"sync"

	"tile-locator/internal/capture"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// loop is the cycle driver shared by Locator and Finder. Stop and context
// cancellation are honoured between cycles only; a cycle in progress always
// completes.
type loop struct {
	name   string
	source capture.Source
	input  InputProvider
	logger *zap.SugaredLogger

	state   stateCell
	stop    atomic.Bool
	running atomic.Bool
	cycles  atomic.Uint64

	releaseOnce sync.Once
	releaseErr  error

	cycle     func(Input) (CycleResult, error)
	onRelease func() error
}

func newLoop(name string, source capture.Source, input InputProvider, logger *zap.SugaredLogger) (*loop, error) {
	if source == nil {
		return nil, errors.New("no frame source")
	}
	if input == nil {
		return nil, errors.New("no input provider")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &loop{name: name, source: source, input: input, logger: logger}, nil
}

// run loops until Stop, ctx cancellation, a ShouldExit snapshot or an error.
// The source is released on the way out.
func (l *loop) run(ctx context.Context) (err error) {
	if !l.running.CompareAndSwap(false, true) {
		return errors.Errorf("%s: already running", l.name)
	}
	defer l.running.Store(false)
	defer func() {
		l.state.set(Terminated)
		err = multierr.Append(err, l.release())
		l.logger.Infow(l.name+": stopped", "cycles", l.cycles.Load(), "error", err)
	}()

	l.logger.Infow(l.name + ": started")
	for {
		if l.stop.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		in := l.input.NextInput()
		if in.ShouldExit {
			l.logger.Infow(l.name + ": exit requested")
			return nil
		}
		if _, err := l.cycle(in); err != nil {
			return err
		}
	}
}

// next numbers a new cycle and moves to Capturing. It fails once the loop is
// terminated.
func (l *loop) next() (uint64, error) {
	if !l.state.set(Capturing) {
		return 0, errors.Wrapf(capture.ErrSourceUnavailable, "%s terminated", l.name)
	}
	return l.cycles.Inc(), nil
}

// stopLoop requests termination. An idle loop is terminated at once.
func (l *loop) stopLoop() error {
	l.stop.Store(true)
	if l.running.Load() {
		return nil
	}
	l.state.set(Terminated)
	return l.release()
}

func (l *loop) release() error {
	l.releaseOnce.Do(func() {
		l.releaseErr = l.source.Release()
		if l.onRelease != nil {
			l.releaseErr = multierr.Append(l.releaseErr, l.onRelease())
		}
	})
	return l.releaseErr
}

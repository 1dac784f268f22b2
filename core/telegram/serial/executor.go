// Package serial runs jobs one at a time per key on short-lived actor
// goroutines, so updates of one user keep their order while different users
// proceed in parallel.
package serial

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
)

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("serial: executor closed")
	// ErrQueueFull is returned when the key already has QueueSize jobs waiting.
	ErrQueueFull = errors.New("serial: queue full")
)

// Options tunes an Executor.
type Options struct {
	// QueueSize bounds the jobs waiting per key.
	QueueSize int
	// IdleTimeout is how long an actor waits for work before exiting.
	IdleTimeout time.Duration
}

type actor struct {
	jobs chan func()
}

// Executor owns one actor per active key.
type Executor struct {
	opts Options

	mu     sync.Mutex
	actors map[int64]*actor
	closed bool
	wg     sync.WaitGroup
}

// New returns an executor with defaults for zero options.
func New(opts Options) *Executor {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = time.Minute
	}
	return &Executor{opts: opts, actors: make(map[int64]*actor)}
}

// Submit queues job behind earlier jobs of key. It never blocks.
func (e *Executor) Submit(key int64, job func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	a, ok := e.actors[key]
	if !ok {
		a = &actor{jobs: make(chan func(), e.opts.QueueSize)}
		e.actors[key] = a
		e.wg.Add(1)
		go e.loop(key, a)
	}
	select {
	case a.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Active reports the number of live actors.
func (e *Executor) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.actors)
}

// Close rejects new jobs, lets actors drain their queues and waits for them
// until ctx is done.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		for key, a := range e.actors {
			close(a.jobs)
			delete(e.actors, key)
		}
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) loop(key int64, a *actor) {
	defer e.wg.Done()
	idle := time.NewTimer(e.opts.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case job, ok := <-a.jobs:
			if !ok {
				return
			}
			run(key, job)
			idle.Reset(e.opts.IdleTimeout)
		case <-idle.C:
			// Submit holds mu while queueing, so an empty queue here stays empty.
			e.mu.Lock()
			if len(a.jobs) == 0 && e.actors[key] == a {
				delete(e.actors, key)
				e.mu.Unlock()
				return
			}
			e.mu.Unlock()
			idle.Reset(e.opts.IdleTimeout)
		}
	}
}

func run(key int64, job func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(context.Background(), "tg.serial", "job.panic",
				slog.Int64("user_id", key),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	job()
}

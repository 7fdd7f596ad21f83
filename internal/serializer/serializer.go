package serializer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/spf13/viper"

	"wallet-service/internal/models"
)

// ErrQueueFull rejects a submission when the operation buffer is at capacity.
// The caller may retry later; nothing was enqueued.
var ErrQueueFull = errors.New("operation queue is full")

// ErrStopped rejects submissions once the worker has shut down for good.
var ErrStopped = errors.New("operation worker stopped")

// Executor runs one wallet operation to completion.
type Executor interface {
	Execute(ctx context.Context, req models.WalletOperationRequest) error
}

type task struct {
	req  models.WalletOperationRequest
	done chan error
}

// Serializer is the single global mutation lane: a bounded FIFO buffer
// drained by exactly one worker goroutine, so no two mutations ever execute
// concurrently, regardless of which wallet they target. It holds no wallet
// state of its own.
type Serializer struct {
	tasks     chan *task
	exec      Executor
	stopped   chan struct{}
	startOnce sync.Once
}

func New(exec Executor) *Serializer {
	viper.AutomaticEnv()
	viper.SetDefault("OPERATION_QUEUE_SIZE", 1024)
	return NewWithBuffer(exec, viper.GetInt("OPERATION_QUEUE_SIZE"))
}

func NewWithBuffer(exec Executor, size int) *Serializer {
	return &Serializer{
		tasks:   make(chan *task, size),
		exec:    exec,
		stopped: make(chan struct{}),
	}
}

// Start launches the worker once for the process lifetime. The worker is
// supervised: if its loop ever exits for any reason other than ctx
// cancellation, it is restarted so queued submissions keep completing.
func (s *Serializer) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.supervise(ctx)
	})
}

// Submit enqueues the request and blocks until its serialized execution
// finishes. Admission is non-blocking; once enqueued the request cannot be
// cancelled, the caller waits for the outcome. Only worker shutdown cuts the
// wait short, so a submitter can never hang on a lane nobody drains.
func (s *Serializer) Submit(req models.WalletOperationRequest) error {
	select {
	case <-s.stopped:
		return ErrStopped
	default:
	}

	t := &task{req: req, done: make(chan error, 1)}
	select {
	case s.tasks <- t:
	default:
		return ErrQueueFull
	}

	select {
	case err := <-t.done:
		return err
	case <-s.stopped:
		return ErrStopped
	}
}

func (s *Serializer) supervise(ctx context.Context) {
	defer close(s.stopped)
	for {
		err := s.drain(ctx)
		if ctx.Err() != nil {
			s.flush(ctx.Err())
			return
		}
		log.Printf("Operation worker exited unexpectedly, restarting: %v", err)
	}
}

// drain is the single consumer loop. A panicking execution resolves only its
// own task; the recover here is a second net for a panic in the loop itself.
func (s *Serializer) drain(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation worker panic: %v", r)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-s.tasks:
			t.done <- s.safeExecute(ctx, t.req)
		}
	}
}

func (s *Serializer) safeExecute(ctx context.Context, req models.WalletOperationRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return s.exec.Execute(ctx, req)
}

// flush resolves whatever is still queued at shutdown so no submitter hangs.
func (s *Serializer) flush(cause error) {
	for {
		select {
		case t := <-s.tasks:
			t.done <- cause
		default:
			return
		}
	}
}

// Package notify sends email in the background.
//
// Request handlers never talk to SMTP directly: they enqueue a Message and a
// small worker pool delivers it. Enqueue never blocks; a full queue drops the
// message and reports false.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/agrilink/usermgmt/internal/logger"
)

// Job is a queued message plus an optional completion callback.
type Job struct {
	Message Message
	// OnSent runs on the worker goroutine after successful delivery.
	OnSent func()
}

// Observer receives delivery outcomes, e.g. for metrics.
type Observer func(ok bool)

type Dispatcher struct {
	mailer   Mailer
	timeout  time.Duration
	observer Observer

	mu     sync.RWMutex
	closed bool
	queue  chan Job
	wg     sync.WaitGroup
}

func NewDispatcher(m Mailer, workers, queueLen int, observer Observer) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueLen < 1 {
		queueLen = 1
	}
	d := &Dispatcher{
		mailer:   m,
		timeout:  30 * time.Second,
		observer: observer,
		queue:    make(chan Job, queueLen),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.mailer.Send(ctx, job.Message)
		cancel()
		if err != nil {
			logger.Error("mail %q to %v failed: %v", job.Message.Subject, job.Message.To, err)
		} else if job.OnSent != nil {
			job.OnSent()
		}
		if d.observer != nil {
			d.observer(err == nil)
		}
	}
}

// Enqueue schedules job. It returns false if the dispatcher is closed or full.
func (d *Dispatcher) Enqueue(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- job:
		return true
	default:
		logger.Warn("mail queue full, dropping %q", job.Message.Subject)
		return false
	}
}

// Close stops accepting jobs and waits for queued ones until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AlertMessage is the disease alert sent when detections pass the threshold.
func AlertMessage(to, disease string) Message {
	return Message{
		To:      []string{to},
		Subject: "Disease Alert: " + disease + " Detected",
		Body: "Multiple detections of " + disease + " have been recorded on your farm. " +
			"Please consult an expert or refer to educational resources.",
	}
}

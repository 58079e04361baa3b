package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iMokhles/candidate-pdf-uploader/internal/pipeline"
)

// ErrBufferFull is returned when the queue is full and the event is dropped.
var ErrBufferFull = errors.New("notifier buffer full, event dropped")

// ErrClosed is returned when enqueueing after Close.
var ErrClosed = errors.New("notifier is closed")

// Config holds notifier settings.
type Config struct {
	URL        string        // webhook endpoint
	SigningKey string        // HMAC key, empty disables signing
	Timeout    time.Duration // per-request timeout (default: 10s)
	BufferSize int           // pending events (default: 256)
	Workers    int           // delivery goroutines (default: 2)
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	return c
}

// MetricsRecorder is an optional interface for recording delivery metrics.
type MetricsRecorder interface {
	RecordNotificationDelivered(ctx context.Context, durationSeconds float64)
	RecordNotificationFailed(ctx context.Context)
	RecordNotificationDropped(ctx context.Context)
}

// Stats holds notifier statistics.
type Stats struct {
	QueueDepth int
	Queued     int64
	Delivered  int64
	Failed     int64
	Dropped    int64
}

// Notifier delivers events asynchronously from a bounded queue.
// Each event gets a single delivery attempt.
type Notifier struct {
	cfg     Config
	queue   chan *CloudEvent
	sender  *Sender
	logger  *slog.Logger
	metrics MetricsRecorder

	queued    atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	mu       sync.RWMutex // guards closed against concurrent enqueue
	closed   bool
	wg       sync.WaitGroup
	shutdown chan struct{}
}

// New creates a Notifier and starts its workers.
func New(cfg Config, metrics MetricsRecorder) *Notifier {
	cfg = cfg.withDefaults()
	n := &Notifier{
		cfg:      cfg,
		queue:    make(chan *CloudEvent, cfg.BufferSize),
		sender:   NewSender(cfg.Timeout),
		logger:   slog.With("component", "notifier", "destination", host(cfg.URL)),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	n.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go n.worker()
	}
	n.logger.Info("Notifier started", "workers", cfg.Workers, "buffer", cfg.BufferSize, "signed", cfg.SigningKey != "")
	return n
}

// SubmissionFinished queues the run's event. It never blocks.
func (n *Notifier) SubmissionFinished(_ context.Context, report *pipeline.Report) {
	_ = n.Enqueue(FromReport(report))
}

// Enqueue queues an event for delivery.
func (n *Notifier) Enqueue(event *CloudEvent) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}

	select {
	case n.queue <- event:
		n.queued.Add(1)
		return nil
	default:
		n.dropped.Add(1)
		if n.metrics != nil {
			n.metrics.RecordNotificationDropped(context.Background())
		}
		n.logger.Warn("Event dropped, buffer full", "type", event.Type, "subject", event.Subject)
		return ErrBufferFull
	}
}

// Stats returns current statistics.
func (n *Notifier) Stats() Stats {
	return Stats{
		QueueDepth: len(n.queue),
		Queued:     n.queued.Load(),
		Delivered:  n.delivered.Load(),
		Failed:     n.failed.Load(),
		Dropped:    n.dropped.Load(),
	}
}

// Close stops accepting events and delivers what is queued.
// The context deadline bounds the drain.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	n.logger.Info("Notifier shutting down", "queued", len(n.queue))
	close(n.shutdown)

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.sender.CloseIdleConnections()
		n.logger.Info("Notifier shutdown complete",
			"delivered", n.delivered.Load(),
			"failed", n.failed.Load(),
			"dropped", n.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		n.logger.Warn("Notifier shutdown timed out", "remaining", len(n.queue))
		return ctx.Err()
	}
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for {
		select {
		case <-n.shutdown:
			n.drain()
			return
		case event := <-n.queue:
			n.deliver(event)
		}
	}
}

func (n *Notifier) drain() {
	for {
		select {
		case event := <-n.queue:
			n.deliver(event)
		default:
			return
		}
	}
}

func (n *Notifier) deliver(event *CloudEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout)
	defer cancel()

	start := time.Now()
	if err := n.sender.Send(ctx, n.cfg.URL, event, n.cfg.SigningKey); err != nil {
		n.failed.Add(1)
		if n.metrics != nil {
			n.metrics.RecordNotificationFailed(ctx)
		}
		n.logger.Warn("Delivery failed", "type", event.Type, "subject", event.Subject, "error", err)
		return
	}

	n.delivered.Add(1)
	if n.metrics != nil {
		n.metrics.RecordNotificationDelivered(ctx, time.Since(start).Seconds())
	}
	n.logger.Debug("Event delivered", "type", event.Type, "subject", event.Subject)
}

// host keeps credentials and paths out of logs.
func host(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

var _ pipeline.Observer = (*Notifier)(nil)

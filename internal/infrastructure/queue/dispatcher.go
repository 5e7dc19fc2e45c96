package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/policynav/accounts/internal/api/metrics"
	"github.com/policynav/accounts/internal/core/domain"
	"github.com/policynav/accounts/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher delivers account notices on a fixed set of workers, sharded by
// email so notices for one account are sent in order.
type Dispatcher struct {
	workers []chan domain.Notice
	sender  ports.NoticeSender
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sender ports.NoticeSender, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.Notice, numWorkers),
		sender:  sender,
		log:     log.With().Str("component", "notice_dispatcher").Logger(),
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.Notice, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. ctx is passed to every send.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands a notice to the worker responsible for its email. It never
// blocks: a notice is dropped when the worker's buffer is full or the
// dispatcher is closed.
func (d *Dispatcher) Enqueue(notice domain.Notice) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn().Str("kind", string(notice.Kind)).Msg("dispatcher closed, notice dropped")
		return
	}

	idx := d.shardIndex(notice.Email)
	select {
	case d.workers[idx] <- notice:
		metrics.NoticeQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
	default:
		metrics.NoticesTotal.WithLabelValues(string(notice.Kind), "dropped").Inc()
		d.log.Warn().Str("kind", string(notice.Kind)).Int("worker_id", idx).Msg("notice queue full, notice dropped")
	}
}

// Close stops accepting notices and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// shardIndex maps an email deterministically to a worker index.
func (d *Dispatcher) shardIndex(email string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.Notice) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for notice := range ch {
		metrics.NoticeQueueDepth.WithLabelValues(label).Dec()
		if err := d.sender.SendNotice(ctx, notice); err != nil {
			metrics.NoticesTotal.WithLabelValues(string(notice.Kind), "failed").Inc()
			d.log.Error().Err(err).
				Str("kind", string(notice.Kind)).
				Int("worker_id", id).
				Msg("notice delivery failed")
			continue
		}
		metrics.NoticesTotal.WithLabelValues(string(notice.Kind), "sent").Inc()
	}
}

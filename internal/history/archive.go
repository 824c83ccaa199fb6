package history

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askdb/askdb/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

type ArchiveConfig struct {
	Service       string
	BatchSize     int
	FlushInterval time.Duration
	// MaxBuffered bounds memory while the object store is unreachable;
	// the oldest records are dropped past it.
	MaxBuffered int
}

// Archiver buffers records and writes them to the object store as parquet
// batches, on size or on FlushInterval, whichever comes first.
type Archiver struct {
	Store  storage.ObjectStore
	Config ArchiveConfig
	Logger *slog.Logger
	Clock  func() time.Time

	mu      sync.Mutex
	pending []Record
	dropped int
	full    chan struct{}
	once    sync.Once
}

func NewArchiver(store storage.ObjectStore, cfg ArchiveConfig, logger *slog.Logger) *Archiver {
	a := &Archiver{Store: store, Config: cfg, Logger: logger}
	a.ensureDefaults()
	return a
}

func (a *Archiver) ensureDefaults() {
	a.once.Do(func() {
		if a.Clock == nil {
			a.Clock = time.Now
		}
		if a.Config.Service == "" {
			a.Config.Service = "askdb-api"
		}
		if a.Config.BatchSize <= 0 {
			a.Config.BatchSize = 100
		}
		if a.Config.FlushInterval <= 0 {
			a.Config.FlushInterval = time.Minute
		}
		if a.Config.MaxBuffered < a.Config.BatchSize {
			a.Config.MaxBuffered = a.Config.BatchSize * 10
		}
		a.full = make(chan struct{}, 1)
	})
}

// Record queues rec for the next flush. It never blocks on the object store.
func (a *Archiver) Record(_ context.Context, rec Record) {
	a.ensureDefaults()

	a.mu.Lock()
	a.pending = append(a.pending, rec)
	if over := len(a.pending) - a.Config.MaxBuffered; over > 0 {
		a.pending = append(a.pending[:0], a.pending[over:]...)
		a.dropped += over
	}
	ready := len(a.pending) >= a.Config.BatchSize
	a.mu.Unlock()

	if ready {
		select {
		case a.full <- struct{}{}:
		default:
		}
	}
}

func (a *Archiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Run flushes until ctx is cancelled, then makes a final flush with
// shutdownTimeout to spare.
func (a *Archiver) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	a.ensureDefaults()

	ticker := time.NewTicker(a.Config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return a.Flush(flushCtx)
		case <-ticker.C:
		case <-a.full:
		}
		if err := a.Flush(ctx); err != nil && a.Logger != nil {
			a.Logger.ErrorContext(ctx, "history archive flush failed", slog.Any("error", err))
		}
	}
}

// Flush writes everything buffered, one object per BatchSize records. Records
// of a failed batch go back to the front of the buffer.
func (a *Archiver) Flush(ctx context.Context) error {
	a.ensureDefaults()

	for {
		a.mu.Lock()
		if a.dropped > 0 && a.Logger != nil {
			a.Logger.WarnContext(ctx, "history archive dropped records", slog.Int("count", a.dropped))
		}
		a.dropped = 0
		n := min(len(a.pending), a.Config.BatchSize)
		batch := append([]Record(nil), a.pending[:n]...)
		a.pending = a.pending[n:]
		a.mu.Unlock()

		if len(batch) == 0 {
			return nil
		}
		if err := a.writeBatch(ctx, batch); err != nil {
			a.mu.Lock()
			a.pending = append(batch, a.pending...)
			a.mu.Unlock()
			return err
		}
	}
}

func (a *Archiver) writeBatch(ctx context.Context, batch []Record) error {
	data, err := EncodeParquet(batch)
	if err != nil {
		return fmt.Errorf("encode history batch: %w", err)
	}

	batchID := uuid.NewString()
	key, err := storage.BuildHistoryPath(a.Config.Service, a.Clock(), batchID)
	if err != nil {
		return fmt.Errorf("build history path: %w", err)
	}
	info, err := a.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: parquetContentType})
	if err != nil {
		return fmt.Errorf("put history batch: %w", err)
	}

	if a.Logger != nil {
		a.Logger.InfoContext(ctx, "history batch archived",
			slog.String("batch_id", batchID),
			slog.String("object_path", key),
			slog.Int("record_count", len(batch)),
			slog.Int64("size_bytes", info.Size),
		)
	}
	return nil
}

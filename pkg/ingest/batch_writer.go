package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// WriteFunc is a callback that performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// BatchWriter groups row writes of an index build into transactions of a fixed size. Batches
// are committed in submission order by a single goroutine. After the first failed batch nothing
// else is executed: the build is going to be discarded, so later rows are dropped and every
// further Submit reports the failure.
type BatchWriter struct {
	db   *sql.DB
	size int

	mu     sync.Mutex
	buf    []WriteFunc
	closed bool

	commitCh chan []WriteFunc
	done     chan struct{}

	// OnError is called once, with the error of the first failed batch.
	OnError func(error)
	// Logger receives a debug line per committed batch. nil means no logging.
	Logger *logrus.Entry

	errOnce sync.Once
	failed  chan struct{}
	err     error

	written atomic.Int64
	batches atomic.Int64
}

// NewBatchWriter starts a writer committing batchSize writes per transaction on conn.
func NewBatchWriter(conn *sql.DB, batchSize int) *BatchWriter {
	if batchSize <= 0 {
		batchSize = 10
	}
	bw := &BatchWriter{
		db:       conn,
		size:     batchSize,
		buf:      make([]WriteFunc, 0, batchSize),
		commitCh: make(chan []WriteFunc, 2), // one batch committing, two waiting
		done:     make(chan struct{}),
		failed:   make(chan struct{}),
	}
	go bw.committer()
	return bw
}

// Submit queues w. It blocks while the committer is behind, and returns early when ctx is done
// or an earlier batch failed.
func (bw *BatchWriter) Submit(ctx context.Context, w WriteFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := bw.Err(); err != nil {
		return err
	}

	// The lock is held while handing a full batch over so batches keep submission order.
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.buf = append(bw.buf, w)
	if len(bw.buf) < bw.size {
		return nil
	}
	batch := bw.buf
	bw.buf = make([]WriteFunc, 0, bw.size)
	select {
	case bw.commitCh <- batch:
		return nil
	case <-bw.failed:
		return bw.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error of the first failed batch, if any.
func (bw *BatchWriter) Err() error {
	select {
	case <-bw.failed:
		return bw.err
	default:
		return nil
	}
}

func (bw *BatchWriter) fail(err error) {
	bw.errOnce.Do(func() {
		bw.err = err
		close(bw.failed)
		if bw.OnError != nil {
			bw.OnError(err)
		}
	})
}

func (bw *BatchWriter) committer() {
	defer close(bw.done)
	for batch := range bw.commitCh {
		if bw.Err() != nil {
			continue // drain without executing
		}
		if err := bw.executeBatch(batch); err != nil {
			bw.fail(err)
		}
	}
}

func (bw *BatchWriter) executeBatch(batch []WriteFunc) error {
	// Rows already handed over are written even if the caller's context ends meanwhile;
	// the caller decides whether the build survives.
	ctx := context.Background()

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, w := range batch {
		if err := w(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch (%d items): %w", len(batch), err)
	}
	n := bw.batches.Add(1)
	total := bw.written.Add(int64(len(batch)))
	if bw.Logger != nil {
		bw.Logger.WithFields(logrus.Fields{"batch": n, "items": len(batch), "written": total}).Debug("batch committed")
	}
	return nil
}

// Written reports how many write functions have been committed so far.
func (bw *BatchWriter) Written() int64 { return bw.written.Load() }

// Batches reports how many transactions have been committed so far.
func (bw *BatchWriter) Batches() int64 { return bw.batches.Load() }

// Close commits the partial last batch, waits for the committer and returns the first batch
// error. The partial batch is dropped when a batch already failed.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if len(bw.buf) > 0 && bw.Err() == nil {
		// Never blocks for long: the committer drains commitCh until it is closed.
		bw.commitCh <- bw.buf
	}
	bw.buf = nil
	bw.mu.Unlock()

	close(bw.commitCh)
	<-bw.done
	return bw.Err()
}

// ErrBatchWriterClosed is returned by Submit after Close, and by a second Close.
var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

// BatchWriterError is the typed error for writer lifecycle misuse.
type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }

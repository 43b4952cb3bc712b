package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// CopyFn abstracts a backend's bulk insert. Implementations insert rows
// aligned to columns and return the number of rows inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// Stream feeds n rows built by row(i) into a channel. The channel is closed
// after the last row or when ctx is done.
func Stream(ctx context.Context, n int, row func(i int) []any) <-chan []any {
	out := make(chan []any, 64)
	go func() {
		defer close(out)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case out <- row(i):
			}
		}
	}()
	return out
}

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn per non-empty batch. It returns the total reported by copyFn
// and the first error encountered.
func LoadBatches(ctx context.Context, columns []string, in <-chan []any, batchSize int, copyFn CopyFn) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("storage: batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, errors.New("storage: copyFn must not be nil")
	}

	var (
		total   int64
		batches int64
		batch   = make([][]any, 0, batchSize)
		start   = time.Now()
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = make([][]any, 0, batchSize)
		if err != nil {
			return err
		}
		batches++
		log.Debugf("storage: batch #%d inserted=%d total=%d elapsed=%s",
			batches, n, total, time.Since(start).Truncate(time.Millisecond))
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case row, ok := <-in:
			if !ok {
				if ctx.Err() != nil {
					return total, ctx.Err()
				}
				return total, flush()
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}

package resilience

import (
	"context"
	"time"
)

// Retry calls fn up to retries+1 times, sleeping delay between attempts.
// It stops early when fn succeeds, when permanent reports the error as not
// worth retrying, or when ctx is done. The last error is returned.
func Retry(ctx context.Context, retries int, delay time.Duration, permanent func(error) bool, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if permanent != nil && permanent(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

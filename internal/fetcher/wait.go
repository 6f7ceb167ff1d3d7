package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/IshaanNene/newsdesk/internal/types"
)

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retry runs fn up to attempts times with a fixed delay between attempts.
// It stops early when ctx is done or fn returns a non-retryable FetchError.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if fe, ok := types.AsFetchError(err); ok && !fe.IsRetryable() {
			break
		}
		if attempt == attempts || ctx.Err() != nil {
			break
		}
		if serr := sleepCtx(ctx, delay); serr != nil {
			return errors.Join(err, serr)
		}
	}
	return err
}

// imageProgress reports how many images have settled out of the total.
type imageProgress struct {
	Settled int
	Total   int
}

// imageCheck reads the current image load state of a page.
type imageCheck func(ctx context.Context) (imageProgress, error)

// waitForImages polls check until every image has loaded or errored, or
// until limit elapses. Running out of time is not an error; the last
// observed progress is returned with complete=false.
func waitForImages(ctx context.Context, check imageCheck, limit, interval time.Duration) (imageProgress, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	var last imageProgress
	for {
		p, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return last, false, nil
			}
			return last, false, err
		}
		last = p
		if p.Settled >= p.Total {
			return p, true, nil
		}
		if sleepCtx(ctx, interval) != nil {
			return last, false, nil
		}
	}
}

// scrollUntilStable scrolls to the bottom up to maxScrolls times and stops
// once the document height no longer grows. It returns the number of
// scrolls performed.
func scrollUntilStable(ctx context.Context, height func() (int, error), scroll func() error, maxScrolls int, pause time.Duration) (int, error) {
	prev, err := height()
	if err != nil {
		return 0, err
	}
	for i := 1; i <= maxScrolls; i++ {
		if err := scroll(); err != nil {
			return i - 1, err
		}
		if err := sleepCtx(ctx, pause); err != nil {
			return i, err
		}
		cur, err := height()
		if err != nil {
			return i, err
		}
		if cur <= prev {
			return i, nil
		}
		prev = cur
	}
	return maxScrolls, nil
}

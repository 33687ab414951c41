package checkin

import "context"

type attempt func(ctx context.Context) (bool, error)

// firstOf runs a and b concurrently and returns whichever settles first,
// success or failure. The loser's context is cancelled on return and its
// result is dropped.
func firstOf(ctx context.Context, a, b attempt) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type settled struct {
		ok  bool
		err error
	}
	results := make(chan settled, 2)

	for _, fn := range []attempt{a, b} {
		go func() {
			ok, err := fn(ctx)
			results <- settled{ok: ok, err: err}
		}()
	}

	r := <-results
	return r.ok, r.err
}

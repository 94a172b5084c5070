package pay

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fake is an in-process Gateway for tests. Err fails every call; Delay
// simulates a slow processor and honours ctx cancellation.
type Fake struct {
	Err   error
	Delay time.Duration

	mu    sync.Mutex
	calls []Authorization
}

func (f *Fake) Authorize(ctx context.Context, a Authorization) (Authorized, error) {
	f.mu.Lock()
	f.calls = append(f.calls, a)
	n := len(f.calls)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return Authorized{}, ctx.Err()
		}
	}
	if f.Err != nil {
		return Authorized{}, f.Err
	}
	if err := validate(a); err != nil {
		return Authorized{}, err
	}
	return Authorized{
		Reference:    fmt.Sprintf("pi_fake_%d", n),
		ClientSecret: fmt.Sprintf("pi_fake_%d_secret", n),
	}, nil
}

// Calls returns a copy of the authorizations received so far.
func (f *Fake) Calls() []Authorization {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Authorization(nil), f.calls...)
}

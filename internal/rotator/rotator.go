package rotator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ragchat/internal/domain"
)

// Rotator hands each dispatch to the credential pool round-robin. The cursor
// is shared across all calls and keeps advancing even on failure, so every
// credential gets an equal fresh chance on every call.
type Rotator struct {
	generator domain.Generator
	pool      []string
	// maxAttempts caps attempts per dispatch; 0 means one pass over the pool.
	maxAttempts int
	log         *zap.Logger

	mu     sync.Mutex
	cursor int
}

func New(generator domain.Generator, pool []string, maxAttempts int, log *zap.Logger) *Rotator {
	return &Rotator{
		generator:   generator,
		pool:        pool,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// PoolSize reports the number of configured credentials.
func (r *Rotator) PoolSize() int {
	return len(r.pool)
}

// next takes the credential at the cursor and advances it modulo pool size.
func (r *Rotator) next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.pool[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.pool)
	return key
}

// Dispatch invokes the generator with rotating credentials until one succeeds.
// On exhaustion it fails with ErrAllCredentialsExhausted wrapping the last
// observed error, no aggregation.
func (r *Rotator) Dispatch(ctx context.Context, prompt string) (string, error) {
	if len(r.pool) == 0 {
		return "", fmt.Errorf("%w: empty credential pool", domain.ErrAllCredentialsExhausted)
	}

	attempts := r.maxAttempts
	if attempts <= 0 {
		attempts = len(r.pool)
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		credential := r.next()

		answer, err := r.generator.Generate(ctx, prompt, credential)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		r.log.Warn("credential attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("attempts", attempts),
			zap.Error(err))
	}

	return "", fmt.Errorf("%w after %d attempts: %v", domain.ErrAllCredentialsExhausted, attempts, lastErr)
}

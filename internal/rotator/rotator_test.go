package rotator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ragchat/internal/domain"
)

type fakeGenerator struct {
	used []string
	fn   func(credential string) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, credential string) (string, error) {
	f.used = append(f.used, credential)
	return f.fn(credential)
}

func TestDispatchFirstCredentialSucceeds(t *testing.T) {
	gen := &fakeGenerator{fn: func(string) (string, error) { return "ok", nil }}
	r := New(gen, []string{"k1", "k2", "k3"}, 0, zap.NewNop())

	answer, err := r.Dispatch(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.Equal(t, []string{"k1"}, gen.used)
}

func TestDispatchFailsOverToNextCredential(t *testing.T) {
	gen := &fakeGenerator{fn: func(credential string) (string, error) {
		if credential == "k1" {
			return "", errors.New("quota")
		}
		return "answer", nil
	}}
	r := New(gen, []string{"k1", "k2"}, 0, zap.NewNop())

	answer, err := r.Dispatch(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
	assert.Equal(t, []string{"k1", "k2"}, gen.used)
}

func TestDispatchExhaustsAfterExactlyPoolSizeAttempts(t *testing.T) {
	boom := errors.New("upstream 429")
	gen := &fakeGenerator{fn: func(string) (string, error) { return "", boom }}
	r := New(gen, []string{"k1", "k2", "k3"}, 0, zap.NewNop())

	_, err := r.Dispatch(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAllCredentialsExhausted)
	// Last error wins, not an aggregate.
	assert.Contains(t, err.Error(), "upstream 429")
	assert.Len(t, gen.used, 3)
}

func TestCursorIsMonotonicAcrossCalls(t *testing.T) {
	gen := &fakeGenerator{fn: func(string) (string, error) { return "ok", nil }}
	r := New(gen, []string{"k1", "k2", "k3"}, 0, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := r.Dispatch(context.Background(), "q")
		require.NoError(t, err)
	}
	// One attempt per call, cursor advances mod pool size.
	assert.Equal(t, []string{"k1", "k2", "k3", "k1", "k2"}, gen.used)
}

func TestCursorNotResetAfterFailedCall(t *testing.T) {
	fail := true
	gen := &fakeGenerator{fn: func(string) (string, error) {
		if fail {
			return "", errors.New("down")
		}
		return "ok", nil
	}}
	r := New(gen, []string{"k1", "k2", "k3"}, 0, zap.NewNop())

	_, err := r.Dispatch(context.Background(), "q")
	require.Error(t, err)

	// The failed call burned a full revolution; the next call starts where
	// the cursor landed, not back at k1.
	fail = false
	_, err = r.Dispatch(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "k1", gen.used[len(gen.used)-1])

	gen.used = nil
	r2 := New(gen, []string{"a", "b", "c"}, 1, zap.NewNop())
	_, err = r2.Dispatch(context.Background(), "q")
	require.NoError(t, err)
	_, err = r2.Dispatch(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, gen.used)
}

func TestDispatchEmptyPool(t *testing.T) {
	r := New(&fakeGenerator{fn: func(string) (string, error) { return "", nil }}, nil, 0, zap.NewNop())
	_, err := r.Dispatch(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrAllCredentialsExhausted)
}

func TestMaxAttemptsOverride(t *testing.T) {
	boom := errors.New("down")
	gen := &fakeGenerator{fn: func(string) (string, error) { return "", boom }}
	r := New(gen, []string{"k1", "k2", "k3", "k4"}, 2, zap.NewNop())

	_, err := r.Dispatch(context.Background(), "q")
	require.ErrorIs(t, err, domain.ErrAllCredentialsExhausted)
	assert.Len(t, gen.used, 2)
}

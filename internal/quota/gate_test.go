package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

// fakeUserRepo implements just enough of domain.UserRepository for the gate.
type fakeUserRepo struct {
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	m := make(map[string]*domain.User)
	for _, u := range users {
		m[u.ID] = u
	}
	return &fakeUserRepo{users: m}
}

func (f *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	f.users[id].LastLogin = &at
	return nil
}

func (f *fakeUserRepo) ResetQuota(_ context.Context, id string, resetAt time.Time) error {
	f.users[id].QueryCount = 0
	f.users[id].LimitResetTime = resetAt
	return nil
}

func (f *fakeUserRepo) IncrementQuota(_ context.Context, id string) error {
	f.users[id].QueryCount++
	return nil
}

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestRegisteredDeniedAfterLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeUserRepo(&domain.User{ID: "u1", IsActive: true})
	g := NewGate(repo, 5, 3, 24*time.Hour, WithClock(fixedClock(&now)))
	ctx := context.Background()
	id := domain.RegisteredIdentity("u1")

	for i := 0; i < 5; i++ {
		dec, err := g.Check(ctx, id)
		require.NoError(t, err)
		assert.True(t, dec.Allowed, "query %d should be allowed", i+1)
		assert.Equal(t, 5-i, dec.Remaining)
		require.NoError(t, g.Increment(ctx, id))
	}

	dec, err := g.Check(ctx, id)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 5, dec.Current)
	assert.Equal(t, 24, dec.RetryAfterHours)
	assert.NotEmpty(t, dec.Message)
}

func TestRegisteredWindowResetsLazily(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeUserRepo(&domain.User{
		ID:             "u1",
		QueryCount:     5,
		LimitResetTime: now.Add(time.Hour),
	})
	g := NewGate(repo, 5, 3, 24*time.Hour, WithClock(fixedClock(&now)))
	ctx := context.Background()
	id := domain.RegisteredIdentity("u1")

	dec, err := g.Check(ctx, id)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)

	// No background timer: the stored counter is untouched until the next call.
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 5, repo.users["u1"].QueryCount)

	dec, err = g.Check(ctx, id)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 0, dec.Current)
	assert.Equal(t, 0, repo.users["u1"].QueryCount)
	assert.Equal(t, now.Add(24*time.Hour), repo.users["u1"].LimitResetTime)
}

func TestRegisteredZeroResetTimeStartsWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeUserRepo(&domain.User{ID: "u1", QueryCount: 3})
	g := NewGate(repo, 5, 3, 24*time.Hour, WithClock(fixedClock(&now)))

	dec, err := g.Check(context.Background(), domain.RegisteredIdentity("u1"))
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 0, dec.Current)
}

func TestRegisteredUnknownUser(t *testing.T) {
	g := NewGate(newFakeUserRepo(), 5, 3, 24*time.Hour)
	_, err := g.Check(context.Background(), domain.RegisteredIdentity("nobody"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnonymousLimitAndReset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := NewGate(newFakeUserRepo(), 5, 3, 24*time.Hour, WithClock(fixedClock(&now)))
	ctx := context.Background()
	id := domain.AnonymousIdentity("203.0.113.9")

	for i := 0; i < 3; i++ {
		dec, err := g.Check(ctx, id)
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
		require.NoError(t, g.Increment(ctx, id))
	}

	dec, err := g.Check(ctx, id)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 3, dec.Limit)

	now = now.Add(25 * time.Hour)
	dec, err = g.Check(ctx, id)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 3, dec.Remaining)
}

func TestAnonymousAddressesAreIndependent(t *testing.T) {
	g := NewGate(newFakeUserRepo(), 5, 1, 24*time.Hour)
	ctx := context.Background()

	require.NoError(t, g.Increment(ctx, domain.AnonymousIdentity("10.0.0.1")))

	dec, err := g.Check(ctx, domain.AnonymousIdentity("10.0.0.1"))
	require.NoError(t, err)
	assert.False(t, dec.Allowed)

	dec, err = g.Check(ctx, domain.AnonymousIdentity("10.0.0.2"))
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestAnonymousConcurrentIncrements(t *testing.T) {
	g := NewGate(newFakeUserRepo(), 5, 1000, 24*time.Hour)
	ctx := context.Background()
	id := domain.AnonymousIdentity("10.0.0.1")

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 10; j++ {
				_ = g.Increment(ctx, id)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	dec, err := g.Check(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100, dec.Current)
}

func TestRetryAfterRoundsUp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeUserRepo(&domain.User{
		ID:             "u1",
		QueryCount:     5,
		LimitResetTime: now.Add(90 * time.Minute),
	})
	g := NewGate(repo, 5, 3, 24*time.Hour, WithClock(fixedClock(&now)))

	dec, err := g.Check(context.Background(), domain.RegisteredIdentity("u1"))
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 2, dec.RetryAfterHours)
}

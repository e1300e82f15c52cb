package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r := NewRegistry(30*time.Minute, opts...)
	t.Cleanup(r.Close)
	return r
}

func TestCreateAndLookup(t *testing.T) {
	r := newTestRegistry(t)

	ses, err := r.Create(1, "admin", "admin")
	require.NoError(t, err)
	require.Len(t, ses.Token, 64)
	require.Empty(t, ses.Cart)
	require.False(t, ses.PendingAutologin)

	got, ok := r.Lookup(ses.Token)
	require.True(t, ok)
	require.Equal(t, uint(1), got.UserID)
	require.Equal(t, "admin", got.Username)

	_, ok = r.Lookup("nope")
	require.False(t, ok)
}

func TestCreateRequiresIdentity(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Create(0, "", "")
	require.Error(t, err)
}

func TestRotateInvalidatesOldToken(t *testing.T) {
	r := newTestRegistry(t)

	ses, err := r.Create(1, "admin", "admin")
	require.NoError(t, err)

	next, ok := r.Rotate(ses.Token)
	require.True(t, ok)
	require.NotEqual(t, ses.Token, next)

	// the replaced token never resolves again
	_, ok = r.Lookup(ses.Token)
	require.False(t, ok)

	got, ok := r.Lookup(next)
	require.True(t, ok)
	require.Equal(t, "admin", got.Username)

	_, ok = r.Rotate(ses.Token)
	require.False(t, ok)
}

func TestUpdateMergesOnlyProvidedFields(t *testing.T) {
	r := newTestRegistry(t)

	ses, err := r.Create(1, "admin", "admin")
	require.NoError(t, err)

	on := true
	require.True(t, r.Update(ses.Token, Update{PendingAutologin: &on}))

	got, _ := r.Lookup(ses.Token)
	require.True(t, got.PendingAutologin)
	require.Equal(t, "admin", got.Username)
	require.Equal(t, uint(1), got.UserID)

	name := "manager"
	require.True(t, r.Update(ses.Token, Update{Username: &name}))
	got, _ = r.Lookup(ses.Token)
	require.Equal(t, "manager", got.Username)
	require.True(t, got.PendingAutologin)

	require.False(t, r.Update("nope", Update{Username: &name}))
}

func TestSingleLoginPolicy(t *testing.T) {
	r := newTestRegistry(t, WithSingleLogin(true))

	_, err := r.Create(1, "admin", "admin")
	require.NoError(t, err)

	_, err = r.Create(1, "admin", "admin")
	require.ErrorIs(t, err, ErrAlreadyConnected)

	// default policy logs but allows
	r2 := newTestRegistry(t)
	_, err = r2.Create(1, "admin", "admin")
	require.NoError(t, err)
	_, err = r2.Create(1, "admin", "admin")
	require.NoError(t, err)
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	r := newTestRegistry(t)

	ses, err := r.Create(1, "admin", "admin")
	require.NoError(t, err)
	fresh, err := r.Create(2, "cashier1", "cashier")
	require.NoError(t, err)

	r.mu.Lock()
	r.sessions[ses.Token].LastActivity = time.Now().Add(-time.Hour)
	r.mu.Unlock()

	r.Sweep()

	_, ok := r.Lookup(ses.Token)
	require.False(t, ok)
	_, ok = r.Lookup(fresh.Token)
	require.True(t, ok)
	require.Equal(t, []string{"cashier1"}, r.LiveUsernames())
}

func TestSweepRemovesStalePendingAutologin(t *testing.T) {
	r := newTestRegistry(t)

	ses, err := r.Create(1, "admin", "admin")
	require.NoError(t, err)

	on := true
	r.Update(ses.Token, Update{PendingAutologin: &on})

	// an uncompleted reload handoff is revoked regardless of idle time
	r.Sweep()

	_, ok := r.Lookup(ses.Token)
	require.False(t, ok)
}

func TestRemoveAndRemoveAll(t *testing.T) {
	r := newTestRegistry(t)

	a, _ := r.Create(1, "admin", "admin")
	b, _ := r.Create(2, "cashier1", "cashier")

	require.True(t, r.Remove(a.Token))
	require.False(t, r.Remove(a.Token))

	r.RemoveAll()
	_, ok := r.Lookup(b.Token)
	require.False(t, ok)
	require.Zero(t, r.Len())
}

func TestCartMutationsThroughRegistry(t *testing.T) {
	r := newTestRegistry(t)

	ses, err := r.Create(1, "admin", "admin")
	require.NoError(t, err)

	cart, err := r.AddToCart(ses.Token, line(7, 1, 2))
	require.NoError(t, err)
	require.Len(t, cart, 1)

	cart, err = r.AddToCart(ses.Token, line(7, 1, 2))
	require.NoError(t, err)
	require.Equal(t, uint(2), cart[0].Quantity)

	_, err = r.AddToCart(ses.Token, line(7, 1, 2))
	require.ErrorIs(t, err, ErrCapacityExceeded)

	// failed mutation left the session cart untouched
	got, _ := r.Lookup(ses.Token)
	require.Equal(t, uint(2), got.Cart[0].Quantity)

	cart, err = r.ReduceQuantity(ses.Token, 7)
	require.NoError(t, err)
	require.Equal(t, uint(1), cart[0].Quantity)

	cart, err = r.RemoveFromCart(ses.Token, 7)
	require.NoError(t, err)
	require.Empty(t, cart)

	_, err = r.RemoveFromCart(ses.Token, 7)
	require.ErrorIs(t, err, ErrLineNotFound)

	_, err = r.AddToCart("nope", line(7, 1, 2))
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEmptyCartIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)

	ses, _ := r.Create(1, "admin", "admin")
	_, err := r.AddToCart(ses.Token, line(7, 1, 2))
	require.NoError(t, err)

	cart, err := r.EmptyCart(ses.Token)
	require.NoError(t, err)
	require.Empty(t, cart)

	cart, err = r.EmptyCart(ses.Token)
	require.NoError(t, err)
	require.Empty(t, cart)
}

func TestSnapshotsAreCopies(t *testing.T) {
	r := newTestRegistry(t)

	ses, _ := r.Create(1, "admin", "admin")
	cart, err := r.AddToCart(ses.Token, line(7, 1, 5))
	require.NoError(t, err)

	// mutating the returned slice must not leak into the registry
	cart[0].Quantity = 99

	got, _ := r.Lookup(ses.Token)
	require.Equal(t, uint(1), got.Cart[0].Quantity)
}

func TestTokensAreUniqueAcrossSessions(t *testing.T) {
	r := newTestRegistry(t)

	seen := make(map[string]bool)
	for i := uint(1); i <= 50; i++ {
		ses, err := r.Create(i, "user"+string(rune('a'+i%26))+time.Now().String(), "cashier")
		require.NoError(t, err)
		require.False(t, seen[ses.Token])
		seen[ses.Token] = true
	}
}

package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/habitual/internal/keyring"
)

const secret = "0123456789abcdef0123456789abcdef"

func next(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case st, ok := <-ch:
		require.True(t, ok, "channel closed")
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state")
	}
	return State{}
}

func TestStatic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := Static{UserID: "alice"}.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, State{Status: SignedIn, UserID: "alice"}, st)

	st, _ = Static{}.Current(ctx)
	assert.Equal(t, NoUser, st.Status)

	ch := Static{UserID: "alice"}.Watch(ctx)
	assert.Equal(t, Loading, next(t, ch).Status)
	assert.Equal(t, "alice", next(t, ch).UserID)

	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestKeyringWatchFollowsLoginAndLogout(t *testing.T) {
	gokeyring.MockInit()
	fc := clockwork.NewFakeClock()
	k := NewKeyring(fc, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := k.Watch(ctx)

	assert.Equal(t, Loading, next(t, ch).Status)
	assert.Equal(t, NoUser, next(t, ch).Status)

	require.NoError(t, keyring.SetCurrentUser("bob"))
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(time.Second)
	assert.Equal(t, State{Status: SignedIn, UserID: "bob"}, next(t, ch))

	require.NoError(t, keyring.ClearCurrentUser())
	fc.Advance(time.Second)
	assert.Equal(t, NoUser, next(t, ch).Status)
}

func TestKeyringErrorKeepsLastState(t *testing.T) {
	fc := clockwork.NewFakeClock()
	calls := 0
	k := &Keyring{Clock: fc, Interval: time.Second, get: func() (string, error) {
		calls++
		if calls == 1 {
			return "carol", nil
		}
		return "", keyring.ErrKeyringUnavailable
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := k.Watch(ctx)

	assert.Equal(t, Loading, next(t, ch).Status)
	assert.Equal(t, "carol", next(t, ch).UserID)

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(time.Second)
	select {
	case st := <-ch:
		t.Fatalf("unexpected state %+v after keyring error", st)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestVerifyToken(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	tok, err := IssueToken(secret, "dave", now, time.Hour)
	require.NoError(t, err)

	sub, err := VerifyToken(secret, tok, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "dave", sub)

	_, err = VerifyToken(secret, tok, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	_, err = VerifyToken("another-secret-another-secret-xx", tok, now)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	_, err = VerifyToken("", tok, now)
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = VerifyToken(secret, "", now)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsMissingSubject(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	tok, err := IssueToken(secret, "", now, 0)
	require.NoError(t, err)

	_, err = VerifyToken(secret, tok, now)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenProviderSignsOutOnExpiry(t *testing.T) {
	start := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	fc := clockwork.NewFakeClockAt(start)
	tok, err := IssueToken(secret, "erin", start, 90*time.Second)
	require.NoError(t, err)

	p := &Token{Secret: secret, Raw: tok, Clock: fc, Interval: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := p.Watch(ctx)

	assert.Equal(t, Loading, next(t, ch).Status)
	assert.Equal(t, State{Status: SignedIn, UserID: "erin"}, next(t, ch))

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(2 * time.Minute)
	assert.Equal(t, NoUser, next(t, ch).Status)
}

func TestTokenProviderWithoutSecret(t *testing.T) {
	p := &Token{Raw: "x"}
	_, err := p.Current(context.Background())
	assert.True(t, errors.Is(err, ErrNoSecret))
}

package signal

import (
	"testing"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAddDelHas(t *testing.T) {
	s := EmptySet()
	s = s.Add(SIGTERM).Add(SIGINT)
	assert.True(t, s.Has(SIGTERM))
	assert.True(t, s.Has(SIGINT))
	assert.False(t, s.Has(SIGKILL))

	s = s.Del(SIGTERM)
	assert.False(t, s.Has(SIGTERM))
	assert.True(t, s.Has(SIGINT))
}

func TestSetAccessorsIgnoreOutOfRange(t *testing.T) {
	s := EmptySet()
	assert.Equal(t, s, s.Add(0))
	assert.Equal(t, s, s.Add(NSIG+1))
	assert.False(t, s.Has(0))
	assert.False(t, s.Has(NSIG+1))
}

func TestSIGKILLAndSIGSTOPCannotBeCaughtOrIgnored(t *testing.T) {
	st := NewState()
	err := st.SetAction(SIGKILL, Action{Handler: 0xdead})
	assert.ErrorIs(t, err, errors.EINVAL)

	err = st.SetAction(SIGSTOP, Action{Handler: SigIGN})
	assert.ErrorIs(t, err, errors.EINVAL)

	require.NoError(t, st.SetAction(SIGKILL, Action{Handler: SigDFL}))
}

func TestSIGKILLAndSIGSTOPCannotBeBlocked(t *testing.T) {
	st := NewState()
	_, err := st.SetBlocked(SIGBLOCK, FullSet().Add(SIGKILL).Add(SIGSTOP))
	require.NoError(t, err)
	assert.False(t, st.Blocked.Has(SIGKILL))
	assert.False(t, st.Blocked.Has(SIGSTOP))
}

func TestRaiseIgnoredSignalNeverBecomesPending(t *testing.T) {
	st := NewState()
	require.NoError(t, st.SetAction(SIGUSR1, Action{Handler: SigIGN}))
	st.Raise(SIGUSR1)
	assert.False(t, st.Pending.Has(SIGUSR1))
}

func TestRaiseUnmaskableAlwaysPendsEvenIfMarkedIgnored(t *testing.T) {
	// SetAction refuses SIG_IGN for SIGKILL/SIGSTOP, but Raise's own
	// "ignored signals are dropped" check must not special-case away the
	// unmaskable pair either, since their Action.Handler can never be
	// SigIGN in practice; assert the invariant holds structurally.
	st := NewState()
	st.Raise(SIGKILL)
	assert.True(t, st.Pending.Has(SIGKILL))
}

func TestDeliverableSkipsBlockedSignals(t *testing.T) {
	st := NewState()
	st.Raise(SIGTERM)
	st.Raise(SIGINT)
	st.Blocked = st.Blocked.Add(SIGINT)

	sig, ok := st.Deliverable()
	require.True(t, ok)
	assert.Equal(t, SIGTERM, sig)
}

func TestDeliverableReturnsLowestNumberedFirst(t *testing.T) {
	st := NewState()
	st.Raise(SIGTERM) // 15
	st.Raise(SIGINT)  // 2

	sig, ok := st.Deliverable()
	require.True(t, ok)
	assert.Equal(t, SIGINT, sig)
}

func TestNextDeliveryDefaultDisposition(t *testing.T) {
	st := NewState()
	st.Raise(SIGSEGV)
	d, ok := st.NextDelivery()
	require.True(t, ok)
	assert.Equal(t, SIGSEGV, d.Signal)
	assert.Equal(t, SigDFL, d.Handler)
	assert.Equal(t, DispCoreDump, d.Disposition)

	st.Ack(d)
	assert.False(t, st.Pending.Has(SIGSEGV))
}

func TestNextDeliveryUserHandlerBlocksOwnSignalByDefault(t *testing.T) {
	st := NewState()
	require.NoError(t, st.SetAction(SIGTERM, Action{Handler: 0x1000}))
	st.Raise(SIGTERM)

	d, ok := st.NextDelivery()
	require.True(t, ok)
	assert.Equal(t, uintptr(0x1000), d.Handler)
	assert.True(t, d.NewBlocked.Has(SIGTERM))

	st.Ack(d)
	assert.True(t, st.Blocked.Has(SIGTERM))
	assert.False(t, st.Pending.Has(SIGTERM))
}

func TestNextDeliverySANoDeferDoesNotBlockOwnSignal(t *testing.T) {
	st := NewState()
	require.NoError(t, st.SetAction(SIGTERM, Action{Handler: 0x1000, Flags: SANoDefer}))
	st.Raise(SIGTERM)

	d, ok := st.NextDelivery()
	require.True(t, ok)
	assert.False(t, d.NewBlocked.Has(SIGTERM))
}

func TestNextDeliveryHandlerMaskAddsExtraBlockedSignals(t *testing.T) {
	st := NewState()
	require.NoError(t, st.SetAction(SIGTERM, Action{Handler: 0x1000, Mask: EmptySet().Add(SIGUSR1)}))
	st.Raise(SIGTERM)

	d, ok := st.NextDelivery()
	require.True(t, ok)
	assert.True(t, d.NewBlocked.Has(SIGUSR1))
}

func TestNextDeliverySigIgnAcksWithoutTouchingBlocked(t *testing.T) {
	st := NewState()
	require.NoError(t, st.SetAction(SIGUSR2, Action{Handler: SigDFL}))
	st.Actions[SIGUSR2].Handler = SigIGN // bypass Raise's drop-on-ignore to exercise NextDelivery directly
	st.Pending = st.Pending.Add(SIGUSR2)

	d, ok := st.NextDelivery()
	require.True(t, ok)
	assert.Equal(t, SigIGN, d.Handler)
	st.Ack(d)
	assert.False(t, st.Pending.Has(SIGUSR2))
	assert.False(t, st.Blocked.Has(SIGUSR2))
}

func TestNoDeliverableWhenPendingEmpty(t *testing.T) {
	st := NewState()
	_, ok := st.NextDelivery()
	assert.False(t, ok)
}

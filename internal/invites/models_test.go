package invites

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInvite_IsValid(t *testing.T) {
	now := time.Now()

	pending := &Invite{Status: StatusPending, ExpiresAt: now.Add(time.Hour)}
	require.True(t, pending.IsValid(now))

	// Still flagged pending in the database but past its window.
	stale := &Invite{Status: StatusPending, ExpiresAt: now.Add(-time.Minute)}
	require.False(t, stale.IsValid(now))
	require.Equal(t, "expired", stale.GoneReason(now))

	accepted := &Invite{Status: StatusAccepted, ExpiresAt: now.Add(time.Hour)}
	require.False(t, accepted.IsValid(now))
	require.Equal(t, "already used", accepted.GoneReason(now))

	cancelled := &Invite{Status: StatusCancelled, ExpiresAt: now.Add(time.Hour)}
	require.False(t, cancelled.IsValid(now))
	require.Equal(t, "cancelled", cancelled.GoneReason(now))
}

func TestInvite_IsExpired_BoundaryIsInclusive(t *testing.T) {
	now := time.Now()
	invite := &Invite{Status: StatusPending, ExpiresAt: now}

	require.True(t, invite.IsExpired(now))
	require.False(t, invite.IsValid(now))
	require.True(t, invite.IsValid(now.Add(-time.Second)))
}

func TestDeliveryMethod_IsValid(t *testing.T) {
	require.True(t, DeliveryEmail.IsValid())
	require.True(t, DeliverySMS.IsValid())
	require.False(t, DeliveryMethod("carrier_pigeon").IsValid())
}

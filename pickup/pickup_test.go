package pickup_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primecut/liveboard/board"
	"github.com/primecut/liveboard/order"
	"github.com/primecut/liveboard/pickup"
)

type fakeConfirmer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeConfirmer) ConfirmPickup(_ context.Context, _ string) error {
	f.calls.Add(1)
	return f.err
}

func TestIssue(t *testing.T) {
	o := order.Order{
		ID:        "ord-20260830-714352",
		ItemCount: 3,
		Total:     61.20,
		Items: []order.LineItem{
			{ID: "li-1", Name: "Brisket 1kg", Quantity: 1, UnitPrice: 32.00},
		},
	}

	token := pickup.Issue(o, "Hillcrest Butchery")

	assert.Equal(t, "ord-20260830-714352", token.OrderID)
	assert.Equal(t, "714352", token.Code)
	assert.Equal(t, "Hillcrest Butchery", token.StoreLabel)
	assert.Equal(t, 3, token.ItemCount)
	assert.Len(t, token.Items, 1)
	assert.WithinDuration(t, time.Now(), token.IssuedAt, time.Second)
}

func TestIssue_ShortIdentifierUsedWhole(t *testing.T) {
	token := pickup.Issue(order.Order{ID: "ab12"}, "")
	assert.Equal(t, "ab12", token.Code)
}

func TestConfirm_SendsBackendRequestAndSignalsChange(t *testing.T) {
	state := board.NewState()
	state.ApplySnapshot([]order.Order{{ID: "ord-1", Status: order.StatusReady}})

	confirmer := &fakeConfirmer{}
	var changes atomic.Int32
	h := pickup.NewHandoff(state, confirmer, nil, func() { changes.Add(1) })

	require.NoError(t, h.Confirm(context.Background(), "ord-1"))
	assert.Equal(t, int32(1), confirmer.calls.Load())
	assert.Equal(t, int32(1), changes.Load())

	// The board is untouched until the next fetch.
	lane, _ := state.LaneOf("ord-1")
	assert.Equal(t, order.LaneAwaitingPickup, lane)
}

func TestConfirm_AlreadyPickedUpIsIdempotentNoOp(t *testing.T) {
	state := board.NewState()
	state.ApplySnapshot([]order.Order{{ID: "ord-1", Status: order.StatusPickedUp}})

	confirmer := &fakeConfirmer{}
	h := pickup.NewHandoff(state, confirmer, nil, nil)

	// Both actors may race to confirm the same handoff; the repeat must
	// neither error nor regress anything.
	require.NoError(t, h.Confirm(context.Background(), "ord-1"))
	require.NoError(t, h.Confirm(context.Background(), "ord-1"))

	assert.Zero(t, confirmer.calls.Load())
	lane, _ := state.LaneOf("ord-1")
	assert.Equal(t, order.LanePickedUp, lane)
}

func TestConfirm_UnknownOrderStillSentToBackend(t *testing.T) {
	// The relay may confirm an order this screen has not fetched yet; the
	// backend is authoritative on whether it exists.
	state := board.NewState()
	confirmer := &fakeConfirmer{}
	h := pickup.NewHandoff(state, confirmer, nil, nil)

	require.NoError(t, h.Confirm(context.Background(), "ord-unseen"))
	assert.Equal(t, int32(1), confirmer.calls.Load())
}

func TestConfirm_BackendFailureLeavesLaneAndSkipsChange(t *testing.T) {
	state := board.NewState()
	state.ApplySnapshot([]order.Order{{ID: "ord-1", Status: order.StatusReady}})

	confirmer := &fakeConfirmer{err: errors.New("boom")}
	var changes atomic.Int32
	h := pickup.NewHandoff(state, confirmer, nil, func() { changes.Add(1) })

	err := h.Confirm(context.Background(), "ord-1")
	require.Error(t, err)
	assert.Zero(t, changes.Load())

	lane, _ := state.LaneOf("ord-1")
	assert.Equal(t, order.LaneAwaitingPickup, lane, "failed confirm must leave last-known lane")
}

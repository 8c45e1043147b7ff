package order

// Lane is one of the four display columns an order is shown in. Lanes are
// derived from the backend status on every snapshot and never stored
// independently of it.
type Lane string

const (
	// LaneNew holds orders that have not started preparation.
	LaneNew Lane = "new"

	// LanePreparing holds orders the kitchen is working on.
	LanePreparing Lane = "preparing"

	// LaneAwaitingPickup holds prepared orders waiting for handoff.
	LaneAwaitingPickup Lane = "awaiting-pickup"

	// LanePickedUp holds orders that left the store.
	LanePickedUp Lane = "picked-up"
)

// Lanes lists every lane in board display order.
var Lanes = []Lane{LaneNew, LanePreparing, LaneAwaitingPickup, LanePickedUp}

// LaneFor maps a backend status to its display lane. It is total: statuses
// the board does not recognize land in LaneNew so a backend rollout of a new
// status never breaks the display. Callers that care about unknown values
// should check Known first and log.
func LaneFor(s Status) Lane {
	switch s {
	case StatusPending, StatusConfirmed:
		return LaneNew
	case StatusPreparing:
		return LanePreparing
	case StatusReady:
		return LaneAwaitingPickup
	case StatusPickedUp, StatusInTransit:
		return LanePickedUp
	default:
		return LaneNew
	}
}

// Known reports whether s is a status this build recognizes.
func Known(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusPickedUp, StatusInTransit:
		return true
	}
	return false
}

package board

// Invalidator is the single "something changed, refetch" signal shared by
// every invalidation source: push events, the reconciliation ticker,
// post-transition delays, and manual refresh. Sources call Invalidate;
// exactly one consumer drains C and runs fetches one at a time.
//
// The channel holds one pending signal. Signalling while a fetch is in
// flight parks one follow-up fetch; further signals coalesce into it. A
// fetch therefore never runs concurrently with another, and no burst of
// events produces more than one catch-up fetch.
type Invalidator struct {
	ch chan struct{}
}

// NewInvalidator creates an invalidation queue.
func NewInvalidator() *Invalidator {
	return &Invalidator{ch: make(chan struct{}, 1)}
}

// Invalidate enqueues a refetch. Never blocks; redundant signals coalesce.
func (i *Invalidator) Invalidate() {
	select {
	case i.ch <- struct{}{}:
	default:
	}
}

// C is the consumer side. Receive one value, run one fetch.
func (i *Invalidator) C() <-chan struct{} {
	return i.ch
}

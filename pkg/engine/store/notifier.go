package store

import (
	"sync"
	"time"

	"github.com/makercode/maker/pkg/engine/model"
	"github.com/makercode/maker/pkg/logger"
)

var notifierLog = logger.New("engine:notifier")

// frameInterval paces delivery to subscribers at 60Hz, the same redraw
// cadence the teacher's progress bars throttle terminal output to.
const frameInterval = 1000 * time.Millisecond / 60

// mailbox is a single-slot, latest-wins buffer: Deposit never blocks and
// a slower consumer only ever observes the newest snapshot.
type mailbox struct {
	ch chan model.Snapshot
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan model.Snapshot, 1)}
}

// Deposit replaces any pending snapshot with snap.
func (m *mailbox) Deposit(snap model.Snapshot) {
	select {
	case <-m.ch:
	default:
	}
	select {
	case m.ch <- snap:
	default:
	}
}

// Notifier coalesces Store mutations into at-most-one delivery per frame
// per subscriber (spec §4.2).
type Notifier struct {
	store *Store

	mu          sync.Mutex
	subscribers map[int]*mailbox
	nextID      int

	dirty   chan struct{}
	stopCh  chan struct{}
	stopped bool
}

// NewNotifier returns a Notifier driving subscribers from store.
func NewNotifier(store *Store) *Notifier {
	n := &Notifier{
		store:       store,
		subscribers: make(map[int]*mailbox),
		dirty:       make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
	go n.run()
	return n
}

// MarkDirty signals that the state changed; the next tick will deliver a
// fresh snapshot to every subscriber. Safe to call from any goroutine.
func (n *Notifier) MarkDirty() {
	select {
	case n.dirty <- struct{}{}:
	default:
	}
}

// Subscribe registers a new subscriber and returns a receive-only channel
// of snapshots plus an unsubscribe function.
func (n *Notifier) Subscribe() (<-chan model.Snapshot, func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	box := newMailbox()
	n.subscribers[id] = box
	n.mu.Unlock()

	box.Deposit(n.store.Snapshot())

	unsubscribe := func() {
		n.mu.Lock()
		delete(n.subscribers, id)
		n.mu.Unlock()
	}
	return box.ch, unsubscribe
}

// Close stops the delivery loop. Subsequent MarkDirty calls are no-ops.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	n.mu.Unlock()
	close(n.stopCh)
}

func (n *Notifier) run() {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	pending := false
	for {
		select {
		case <-n.stopCh:
			return
		case <-n.dirty:
			pending = true
		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false
			n.deliver()
		}
	}
}

func (n *Notifier) deliver() {
	n.mu.Lock()
	boxes := make([]*mailbox, 0, len(n.subscribers))
	for _, box := range n.subscribers {
		boxes = append(boxes, box)
	}
	n.mu.Unlock()
	if len(boxes) == 0 {
		return
	}
	snap := n.store.Snapshot()
	if notifierLog.Enabled() {
		notifierLog.Printf("delivering snapshot to %d subscriber(s)", len(boxes))
	}
	for _, box := range boxes {
		box.Deposit(snap)
	}
}

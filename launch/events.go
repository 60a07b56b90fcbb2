// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/event"
	"github.com/luxfi/log"

	"github.com/luxfi/launchmm/amm"
)

// EventKind identifies what happened
type EventKind uint8

const (
	EventPoolLaunched EventKind = iota
	EventFairLaunchOpened
	EventFairLaunchClosed
	EventFeeCaptured
	EventReferrerPaid
	EventFeeAllocated
	EventBidWallDeposit
	EventBidWallRepositioned
	EventBidWallClosed
	EventWithdrawal
)

var eventNames = map[EventKind]string{
	EventPoolLaunched:        "PoolLaunched",
	EventFairLaunchOpened:    "FairLaunchOpened",
	EventFairLaunchClosed:    "FairLaunchClosed",
	EventFeeCaptured:         "FeeCaptured",
	EventReferrerPaid:        "ReferrerPaid",
	EventFeeAllocated:        "FeeAllocated",
	EventBidWallDeposit:      "BidWallDeposit",
	EventBidWallRepositioned: "BidWallRepositioned",
	EventBidWallClosed:       "BidWallClosed",
	EventWithdrawal:          "Withdrawal",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// Event is published for every state change of a launch. Fields that do not
// apply to a kind are left zero.
type Event struct {
	Kind     EventKind
	Pool     amm.PoolID
	Account  common.Address
	Currency amm.Currency
	Amount   *uint256.Int

	TickLower int32
	TickUpper int32
}

// Subscriber receives launch events for the pools it follows
type Subscriber interface {
	Subscribe(id amm.PoolID) error
	Unsubscribe(id amm.PoolID) error
	Notify(ev Event) error
}

// Notifier fans events out to named subscribers. A failing subscriber never
// blocks a trade: its errors are logged and dropped.
type Notifier struct {
	mu   sync.RWMutex
	log  log.Logger
	subs map[string]Subscriber
}

// NewNotifier creates an empty notifier
func NewNotifier(logger log.Logger) *Notifier {
	return &Notifier{log: logger, subs: make(map[string]Subscriber)}
}

// Add registers sub under name, replacing any previous one
func (n *Notifier) Add(name string, sub Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs[name] = sub
}

// Remove drops the subscriber and tells it to stop following pools
func (n *Notifier) Remove(name string, pools []amm.PoolID) {
	n.mu.Lock()
	sub, ok := n.subs[name]
	delete(n.subs, name)
	n.mu.Unlock()
	if !ok {
		return
	}
	for _, id := range pools {
		if err := sub.Unsubscribe(id); err != nil {
			n.log.Warn("subscriber unsubscribe failed", "subscriber", name, "pool", id.Hex(), "err", err)
		}
	}
}

// Names lists registered subscribers in order
func (n *Notifier) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.subs))
	for name := range n.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (n *Notifier) subscribe(id amm.PoolID) {
	for _, name := range n.Names() {
		n.mu.RLock()
		sub := n.subs[name]
		n.mu.RUnlock()
		if sub == nil {
			continue
		}
		if err := sub.Subscribe(id); err != nil {
			n.log.Warn("subscriber subscribe failed", "subscriber", name, "pool", id.Hex(), "err", err)
		}
	}
}

func (n *Notifier) notify(ev Event) {
	for _, name := range n.Names() {
		n.mu.RLock()
		sub := n.subs[name]
		n.mu.RUnlock()
		if sub == nil {
			continue
		}
		if err := sub.Notify(ev); err != nil {
			n.log.Warn("subscriber notify failed", "subscriber", name, "event", ev.Kind.String(), "err", err)
		}
	}
}

// events buffers what a session emits until it commits. A reverted session
// drops its events.
type events struct {
	mu       sync.Mutex
	feed     event.Feed
	notifier *Notifier
	pending  []Event
}

func (e *events) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, ev)
}

func (e *events) mark() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *events) revertTo(mark int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if mark < len(e.pending) {
		e.pending = e.pending[:mark]
	}
}

// flush publishes everything pending
func (e *events) flush() {
	e.mu.Lock()
	out := e.pending
	e.pending = nil
	e.mu.Unlock()
	for _, ev := range out {
		e.feed.Send(ev)
		e.notifier.notify(ev)
	}
}

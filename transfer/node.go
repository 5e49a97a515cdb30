// Package transfer implements the two-sided resource matching market:
// withdrawals and deposits keyed by
// (resource, priority, transfer-type), pending-reservation accounting,
// and the pickup/delivery selection algorithms haulers call into.
package transfer

import (
	"github.com/colonygrid/foreman/host"
	"github.com/segmentio/fasthash/fnv1a"
)

// Priority is the spec's four-level withdrawal/deposit priority.
// Active = {High, Medium, Low}; None never participates in matching.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
)

// ActivePriorities lists priorities in highest-first order, the order
// SelectBestDelivery iterates.
var ActivePriorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// TransferType classifies how a resource moves.
type TransferType int

const (
	Haul TransferType = iota
	Link
	Terminal
	Use
)

// Target identifies anything that can be withdrawn from or deposited
// to. Pos is the target's tile, used by the matching value function to
// weigh candidate pairings by route length.
type Target struct {
	Kind string // "container", "spawn", "extension", "storage", "tower", "link", "ruin", "tombstone", "dropped", "terminal", "lab", "factory", "nuker", "powerspawn".
	ID   host.ObjectID
	Room host.RoomName
	Pos  host.Pos
}

// WithdrawKey is a withdrawal-side bucket: withdrawals always name a
// concrete resource, since you can only withdraw what is actually
// present.
type WithdrawKey struct {
	Resource string
	Priority Priority
	Type     TransferType
}

// DepositKey is a deposit-side bucket. Any=true means the deposit
// accepts any resource.
type DepositKey struct {
	Resource string
	Any      bool
	Priority Priority
	Type     TransferType
}

func packWithdraw(k WithdrawKey) uint64 {
	h := fnv1a.HashString64(k.Resource)
	h = fnv1a.AddUint64(h, uint64(k.Priority))
	h = fnv1a.AddUint64(h, uint64(k.Type))
	return h
}

func packDeposit(k DepositKey) uint64 {
	resource := k.Resource
	if k.Any {
		resource = "\x00any\x00"
	}
	h := fnv1a.HashString64(resource)
	h = fnv1a.AddUint64(h, uint64(k.Priority))
	h = fnv1a.AddUint64(h, uint64(k.Type))
	return h
}

type withdrawEntry struct {
	key       WithdrawKey
	requested uint32
	pending   uint32
}

type depositEntry struct {
	key       DepositKey
	requested uint32
	pending   uint32
}

// saturatingSub returns a-b, floored at zero.
func saturatingSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

// Node holds one transfer target's withdrawal and deposit buckets.
type Node struct {
	Target     Target
	withdrawals map[uint64]*withdrawEntry
	deposits    map[uint64]*depositEntry
}

func newNode(t Target) *Node {
	return &Node{Target: t, withdrawals: make(map[uint64]*withdrawEntry), deposits: make(map[uint64]*depositEntry)}
}

// AddWithdrawal records amount additional resource available for
// withdrawal under key. Called by mission pre_run generators.
func (n *Node) AddWithdrawal(k WithdrawKey, amount uint32) {
	p := packWithdraw(k)
	e, ok := n.withdrawals[p]
	if !ok {
		e = &withdrawEntry{key: k}
		n.withdrawals[p] = e
	}
	e.requested += amount
}

// AddDeposit records amount additional room for deposit under key.
func (n *Node) AddDeposit(k DepositKey, amount uint32) {
	p := packDeposit(k)
	e, ok := n.deposits[p]
	if !ok {
		e = &depositEntry{key: k}
		n.deposits[p] = e
	}
	e.requested += amount
}

// AvailableWithdrawal returns requested-pending for key, saturated at
// zero.
func (n *Node) AvailableWithdrawal(k WithdrawKey) uint32 {
	if e, ok := n.withdrawals[packWithdraw(k)]; ok {
		return saturatingSub(e.requested, e.pending)
	}
	return 0
}

// AvailableDeposit returns requested-pending for key, saturated at
// zero.
func (n *Node) AvailableDeposit(k DepositKey) uint32 {
	if e, ok := n.deposits[packDeposit(k)]; ok {
		return saturatingSub(e.requested, e.pending)
	}
	return 0
}

// ReservePickup increments the pending-withdrawal count for key by
// amount. Pending never exceeds requested; callers should size amount
// from AvailableWithdrawal first (the invariant is enforced here
// defensively too).
func (n *Node) ReservePickup(k WithdrawKey, amount uint32) {
	if e, ok := n.withdrawals[packWithdraw(k)]; ok {
		e.pending += amount
		if e.pending > e.requested {
			e.pending = e.requested
		}
	}
}

// ReserveDelivery increments the pending-deposit count for key by
// amount, with the same cap as ReservePickup.
func (n *Node) ReserveDelivery(k DepositKey, amount uint32) {
	if e, ok := n.deposits[packDeposit(k)]; ok {
		e.pending += amount
		if e.pending > e.requested {
			e.pending = e.requested
		}
	}
}

// EachWithdrawal calls fn for every withdrawal bucket on this node.
func (n *Node) EachWithdrawal(fn func(key WithdrawKey, available uint32)) {
	for _, e := range n.withdrawals {
		fn(e.key, saturatingSub(e.requested, e.pending))
	}
}

// EachDeposit calls fn for every deposit bucket on this node.
func (n *Node) EachDeposit(fn func(key DepositKey, available uint32)) {
	for _, e := range n.deposits {
		fn(e.key, saturatingSub(e.requested, e.pending))
	}
}

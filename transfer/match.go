package transfer

import "github.com/colonygrid/foreman/host"

// Match is one resolved (withdrawal, deposit) pairing a hauler can act
// on: pick up Amount of Resource from Pickup, deliver it to Deliver.
type Match struct {
	Pickup       Target
	PickupKey    WithdrawKey
	Deliver      Target
	DeliverKey   DepositKey
	Resource     string
	Amount       uint32
}

// costPerUnit weighs terminal transfers against haul transfers; it only
// breaks ties, so a haul match is preferred over a terminal match of
// equal value.
func costPerUnit(t TransferType) int {
	if t == Terminal {
		return 1
	}
	return 0
}

// SelectBestDelivery finds the highest-priority-pair (withdrawal,
// deposit) match available in room among the given transfer types,
// capped at capacity. Priority pairs are tried outer-withdrawal then
// inner-deposit, both in ActivePriorities (High, Medium, Low) order;
// the first pair with any compatible non-zero match wins, so a Medium
// withdrawal paired with a High deposit is preferred over a High
// withdrawal that has nothing to pair with yet. Within a pair,
// candidates are scored by
// value = amount / (range(from, pickup) + range(pickup, deliver))
// and the maximum-value pairing wins, so a hauler standing next to a
// full container is matched through it rather than across the room.
func SelectBestDelivery(q *Queue, room host.RoomName, from host.Pos, types []TransferType, capacity uint32) (Match, bool) {
	nodes := q.RoomNodes(room, types...)
	for _, wp := range ActivePriorities {
		for _, dp := range ActivePriorities {
			if m, ok := bestAtPriorityPair(nodes, from, types, wp, dp, capacity); ok {
				return m, true
			}
		}
	}
	return Match{}, false
}

// rangeBetween is the chebyshev tile range within a room, or a
// 50-per-room estimate when the two positions are in different rooms.
func rangeBetween(a, b host.Pos) int {
	if a.Room != b.Room {
		return 50 * host.RoomDistance(a.Room, b.Room)
	}
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

func bestAtPriorityPair(nodes []*Node, from host.Pos, types []TransferType, wp, dp Priority, capacity uint32) (Match, bool) {
	var best Match
	var bestValue float64
	found := false

	for _, pickup := range nodes {
		pickup.EachWithdrawal(func(wk WithdrawKey, available uint32) {
			if available == 0 || wk.Priority != wp || !containsType(types, wk.Type) {
				return
			}
			for _, deliver := range nodes {
				if deliver == pickup {
					continue
				}
				deliver.EachDeposit(func(dk DepositKey, capAvail uint32) {
					if capAvail == 0 || dk.Priority != dp || !containsType(types, dk.Type) {
						return
					}
					if !dk.Any && dk.Resource != wk.Resource {
						return
					}
					amount := available
					if capAvail < amount {
						amount = capAvail
					}
					if capacity < amount {
						amount = capacity
					}
					if amount == 0 {
						return
					}
					route := rangeBetween(from, pickup.Target.Pos) + rangeBetween(pickup.Target.Pos, deliver.Target.Pos)
					if route < 1 {
						route = 1 // every target shares a tile; keep value finite.
					}
					value := float64(amount) / float64(route)
					candidate := Match{
						Pickup: pickup.Target, PickupKey: wk,
						Deliver: deliver.Target, DeliverKey: dk,
						Resource: wk.Resource, Amount: amount,
					}
					switch {
					case !found:
						found, bestValue, best = true, value, candidate
					case value > bestValue:
						bestValue, best = value, candidate
					case value == bestValue && costPerUnit(wk.Type) < costPerUnit(best.PickupKey.Type):
						best = candidate
					}
				})
			}
		})
	}
	return best, found
}

func containsType(types []TransferType, t TransferType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

// SelectPickup finds the best single withdrawal source in room for
// resource across the given priorities, without requiring a matching
// deposit (used by creeps that already know their destination, e.g. a
// builder drawing from whichever container is fullest).
func SelectPickup(q *Queue, room host.RoomName, resource string, types []TransferType, capacity uint32) (Target, WithdrawKey, uint32, bool) {
	nodes := q.RoomNodes(room, types...)
	var bestTarget Target
	var bestKey WithdrawKey
	var bestAmount uint32
	found := false

	for _, p := range ActivePriorities {
		for _, n := range nodes {
			n.EachWithdrawal(func(wk WithdrawKey, available uint32) {
				if available == 0 || wk.Priority != p || wk.Resource != resource || !containsType(types, wk.Type) {
					return
				}
				amount := available
				if capacity < amount {
					amount = capacity
				}
				if amount == 0 {
					return
				}
				if !found || amount > bestAmount {
					found = true
					bestAmount = amount
					bestTarget = n.Target
					bestKey = wk
				}
			})
		}
		if found {
			return bestTarget, bestKey, bestAmount, true
		}
	}
	return Target{}, WithdrawKey{}, 0, false
}

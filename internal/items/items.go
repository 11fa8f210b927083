// Package items holds the server-authoritative table of spawned in-game
// objects and the per-type ownership policy.
package items

import (
	"fmt"
	"sync"
)

// Vec3 is a world position.
type Vec3 struct {
	X, Y, Z float32
}

// ItemType is the closed set of spawnable objects. The numeric values are
// the wire ids and must stay stable across protocol versions.
type ItemType int

const (
	Dynamite ItemType = 1
	Heart    ItemType = 2
	Ice      ItemType = 3
	Star     ItemType = 4
	Torch    ItemType = 5
)

var itemNames = map[ItemType]string{
	Dynamite: "dynamite",
	Heart:    "heart",
	Ice:      "ice",
	Star:     "star",
	Torch:    "torch",
}

func (t ItemType) String() string {
	if name, ok := itemNames[t]; ok {
		return name
	}
	return fmt.Sprintf("item(%d)", int(t))
}

// ByID maps a wire id to its item type. ok is false for unknown ids.
func ByID(id int) (ItemType, bool) {
	_, ok := itemNames[ItemType(id)]
	return ItemType(id), ok
}

// OwnershipPolicy decides which clients an item spawn applies to.
type OwnershipPolicy int

const (
	// OwnerOnly items benefit only the client that spawned them.
	OwnerOnly OwnershipPolicy = iota
	// AffectsOthers items are hazards that skip their own owner.
	AffectsOthers
	// Everyone items are world objects visible to all clients alike.
	Everyone
)

// policies is data, not per-packet branching: each item type names who a
// spawn announcement applies to on the receiving client. Ice and star
// materialize for every client with the owned flag reserved for their
// owner; only the heart skips everyone but its owner entirely.
var policies = map[ItemType]OwnershipPolicy{
	Dynamite: AffectsOthers,
	Heart:    OwnerOnly,
	Ice:      Everyone,
	Star:     Everyone,
	Torch:    Everyone,
}

// PolicyFor returns the ownership policy for an item type.
func PolicyFor(t ItemType) OwnershipPolicy {
	return policies[t]
}

// Item is one authoritative record. Owner 0 means environment-spawned.
type Item struct {
	ID    int
	Owner int
	Type  ItemType
	Pos   Vec3
}

// Sequence hands out item ids under its own mutex. The server shares
// one sequence across every lobby's registry, so an item id is unique
// for the lifetime of the process, not just within one lobby.
type Sequence struct {
	mu   sync.Mutex
	last int
}

func NewSequence() *Sequence { return &Sequence{} }

// Next returns the next id. Ids are strictly increasing and never
// reused.
func (s *Sequence) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Registry is the source of truth for which items exist. All mutation
// goes through Spawn and Remove under a single mutex.
type Registry struct {
	mu    sync.Mutex
	ids   *Sequence
	items map[int]*Item
}

// NewRegistry builds a registry drawing ids from the given sequence. A
// nil sequence gets a private one, which standalone tests rely on.
func NewRegistry(ids *Sequence) *Registry {
	if ids == nil {
		ids = NewSequence()
	}
	return &Registry{ids: ids, items: make(map[int]*Item)}
}

// Spawn stores a new record under the next id from the shared sequence.
func (r *Registry) Spawn(owner int, typ ItemType, pos Vec3) *Item {
	id := r.ids.Next()
	r.mu.Lock()
	defer r.mu.Unlock()
	item := &Item{ID: id, Owner: owner, Type: typ, Pos: pos}
	r.items[item.ID] = item
	return item
}

// Remove deletes a record. Removing an unknown id is an error, not a
// crash: it indicates a duplicate or out-of-order network event.
func (r *Registry) Remove(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("item %d does not exist", id)
	}
	delete(r.items, id)
	return nil
}

// Get returns the record for id, or nil.
func (r *Registry) Get(id int) *Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.items[id]; ok {
		copied := *item
		return &copied
	}
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

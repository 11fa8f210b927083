package packet

import (
	"strconv"

	"github.com/minebuddies/server/internal/items"
)

// SpawnItem announces a spawned item. It has three construction
// contexts: the client-initiated request (owner placeholder, five
// fields), the server re-broadcast carrying the authoritative owner and
// item id (six fields), and the server-initiated environment spawn
// (owner zero). Payload: owner║typeID║x║y║z[║itemID].
type SpawnItem struct {
	base
	Owner  int
	Type   items.ItemType
	Pos    items.Vec3
	ItemID int // 0 until the server has assigned one
}

// NewSpawnRequest builds the client-side spawn announcement. The owner
// field is a placeholder the server replaces with the sender's id.
func NewSpawnRequest(typ items.ItemType, pos items.Vec3) *SpawnItem {
	data, _ := join("0", strconv.Itoa(int(typ)),
		formatFloat(pos.X), formatFloat(pos.Y), formatFloat(pos.Z))
	return &SpawnItem{base: newBase(TypeSpawnItem, data), Type: typ, Pos: pos}
}

// NewSpawnBroadcast frames an authoritative registry record for the
// lobby fan-out. Used both for re-broadcasts of client spawns and for
// environment spawns with owner zero.
func NewSpawnBroadcast(item *items.Item) *SpawnItem {
	data, _ := join(strconv.Itoa(item.Owner), strconv.Itoa(int(item.Type)),
		formatFloat(item.Pos.X), formatFloat(item.Pos.Y), formatFloat(item.Pos.Z),
		strconv.Itoa(item.ID))
	return &SpawnItem{
		base:   newBase(TypeSpawnItem, data),
		Owner:  item.Owner,
		Type:   item.Type,
		Pos:    item.Pos,
		ItemID: item.ID,
	}
}

func (p *SpawnItem) Validate() {
	f := p.fields()
	if len(f) < 5 || len(f) > 6 {
		p.addError("Invalid item data.")
		return
	}
	owner, err := strconv.Atoi(f[0])
	if err != nil {
		p.addError("Invalid item owner.")
	} else {
		p.Owner = owner
	}
	typeID, err := strconv.Atoi(f[1])
	if err != nil {
		p.addError("Invalid item id.")
	} else if typ, ok := items.ByID(typeID); !ok {
		p.addError("Invalid item id.")
	} else {
		p.Type = typ
	}
	x, errX := parseFloat(f[2])
	y, errY := parseFloat(f[3])
	z, errZ := parseFloat(f[4])
	if errX != nil || errY != nil || errZ != nil {
		p.addError("Invalid item position data.")
	} else {
		p.Pos = items.Vec3{X: x, Y: y, Z: z}
	}
	if len(f) == 6 {
		id, err := strconv.Atoi(f[5])
		if err != nil {
			p.addError("Invalid item data.")
		} else {
			p.ItemID = id
		}
	}
}

// ProcessServer stores the item under the sender's ownership and
// broadcasts the authoritative record, id included, so clients can
// address this exact item later.
func (p *SpawnItem) ProcessServer(env ServerEnv, clientID int) {
	if p.HasErrors() {
		return
	}
	l := env.LobbyFor(clientID)
	if l == nil {
		p.addError("Client is not in a lobby.")
		return
	}
	if !l.AcceptsGameplay() {
		return
	}
	item := l.Items().Spawn(clientID, p.Type, p.Pos)
	env.Broadcast(l, NewSpawnBroadcast(item))
	env.PublishItemSpawned(l, item)
}

// ProcessClient applies the per-type ownership policy: a hazard skips
// its own owner and arrives ticking for everyone else, a collectible
// materializes only for its owner, and world items appear for all.
func (p *SpawnItem) ProcessClient(env ClientEnv) {
	if p.HasErrors() {
		return
	}
	owned := p.Owner != 0 && p.Owner == env.ClientID()
	item := RemoteItem{ID: p.ItemID, Owner: p.Owner, Type: p.Type, Pos: p.Pos, Owned: owned}
	switch items.PolicyFor(p.Type) {
	case items.AffectsOthers:
		if owned {
			return
		}
		item.Active = true
	case items.OwnerOnly:
		if !owned {
			return
		}
	}
	env.World().ItemSpawned(item)
}

// ItemUsed reports that an item was consumed or picked up.
// Payload: itemID. The acting client's id travels separately as the
// packet sender, never inside the payload.
type ItemUsed struct {
	base
	ItemID int
}

func NewItemUsed(itemID int) *ItemUsed {
	return &ItemUsed{base: newBase(TypeItemUsed, strconv.Itoa(itemID)), ItemID: itemID}
}

func (p *ItemUsed) Validate() {
	f := p.fields()
	if len(f) != 1 {
		p.addError("Invalid item id.")
		return
	}
	id, err := strconv.Atoi(f[0])
	if err != nil {
		p.addError("Invalid item id.")
		return
	}
	p.ItemID = id
}

// ProcessServer removes the item from the authoritative registry. A
// missing id means a duplicate or out-of-order event; the packet is
// rejected and nothing is broadcast.
func (p *ItemUsed) ProcessServer(env ServerEnv, clientID int) {
	if p.HasErrors() {
		return
	}
	l := env.LobbyFor(clientID)
	if l == nil {
		p.addError("Client is not in a lobby.")
		return
	}
	if !l.AcceptsGameplay() {
		return
	}
	if err := l.Items().Remove(p.ItemID); err != nil {
		p.addError("Item does not exist.")
		return
	}
	env.Broadcast(l, NewItemUsed(p.ItemID))
}

func (p *ItemUsed) ProcessClient(env ClientEnv) {
	if p.HasErrors() {
		return
	}
	env.World().ItemRemoved(p.ItemID)
}

// Package packet implements the wire protocol: typed, self-validating
// packets framed as a two-digit type code followed by fields separated
// by a reserved delimiter.
//
// A packet is either fully valid (empty error list) and safe to process,
// or invalid, in which case both processing entry points are no-ops.
// Decoding fails closed: unknown or truncated frames become an Invalid
// packet, never a crash.
package packet

import (
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates payload fields on the wire. It is a non-ASCII
// rune so it cannot collide with user-entered text such as usernames,
// which are restricted to word characters at login.
const Delimiter = "║"

// Type is the numeric packet code. Codes are stable across protocol
// versions and encoded as two zero-padded digits.
type Type int

const (
	TypeInvalid        Type = -1
	TypeLogin          Type = 0
	TypeMove           Type = 1
	TypePositionUpdate Type = 10
	TypeStartRound     Type = 30
	TypeGameEnd        Type = 31
	TypeSpawnItem      Type = 40
	TypeItemUsed       Type = 41
	TypeDisconnect     Type = 99
)

// Packet is one typed unit of wire data. Validate must be called before
// either processing entry point; processing with accumulated errors is
// a no-op.
type Packet interface {
	ID() Type
	Data() string
	Validate()
	Errors() []string
	HasErrors() bool

	// ProcessServer runs the server-side effect of the packet for the
	// originating client. ProcessClient runs the client-side effect.
	// The split replaces role-sniffing on the sender id: each process
	// calls exactly one of them.
	ProcessServer(env ServerEnv, clientID int)
	ProcessClient(env ClientEnv)
}

type spec struct {
	name string
	new  func(data string) Packet
}

// registry maps each type code to its packet variant. It is the single
// place a new packet kind has to be registered for decoding.
var registry = map[Type]spec{
	TypeLogin:          {"LOGIN", func(d string) Packet { return &Login{base: newBase(TypeLogin, d)} }},
	TypeMove:           {"MOVE", func(d string) Packet { return &Move{base: newBase(TypeMove, d)} }},
	TypePositionUpdate: {"POSITION_UPDATE", func(d string) Packet { return &PositionUpdate{base: newBase(TypePositionUpdate, d)} }},
	TypeStartRound:     {"START_ROUND", func(d string) Packet { return &StartRound{base: newBase(TypeStartRound, d)} }},
	TypeGameEnd:        {"GAME_END", func(d string) Packet { return &GameEnd{base: newBase(TypeGameEnd, d)} }},
	TypeSpawnItem:      {"SPAWN_ITEM", func(d string) Packet { return &SpawnItem{base: newBase(TypeSpawnItem, d)} }},
	TypeItemUsed:       {"ITEM_USED", func(d string) Packet { return &ItemUsed{base: newBase(TypeItemUsed, d)} }},
	TypeDisconnect:     {"DISCONNECT", func(d string) Packet { return &Disconnect{base: newBase(TypeDisconnect, d)} }},
}

// String returns the catalog name of a type code.
func (t Type) String() string {
	if s, ok := registry[t]; ok {
		return s.name
	}
	return "INVALID"
}

// Decode selects the packet variant by the leading type code. The
// returned packet has not been validated yet.
func Decode(frame []byte) Packet {
	raw := strings.TrimSpace(string(frame))
	if len(raw) < 2 {
		return newInvalid("truncated frame")
	}
	code, err := strconv.Atoi(raw[:2])
	if err != nil {
		return newInvalid("malformed type code")
	}
	s, ok := registry[Type(code)]
	if !ok {
		return newInvalid(fmt.Sprintf("unknown type code %02d", code))
	}
	return s.new(raw[2:])
}

// Encode frames a packet for the wire: two-digit code plus payload.
func Encode(p Packet) []byte {
	return []byte(fmt.Sprintf("%02d%s", int(p.ID()), p.Data()))
}

// join assembles a payload, rejecting any field containing the
// delimiter rather than silently corrupting the frame.
func join(fields ...string) (string, error) {
	for _, f := range fields {
		if strings.Contains(f, Delimiter) {
			return "", fmt.Errorf("field %q contains the payload delimiter", f)
		}
	}
	return strings.Join(fields, Delimiter), nil
}

// base carries the shared packet state: type code, raw payload and the
// accumulated validation errors.
type base struct {
	id   Type
	data string
	errs []string
}

func newBase(id Type, data string) base {
	return base{id: id, data: data}
}

func (b *base) ID() Type     { return b.id }
func (b *base) Data() string { return b.data }

func (b *base) Errors() []string {
	out := make([]string, len(b.errs))
	copy(out, b.errs)
	return out
}

func (b *base) HasErrors() bool { return len(b.errs) > 0 }

func (b *base) addError(msg string) { b.errs = append(b.errs, msg) }

// fields splits the payload on the delimiter. An empty payload has no
// fields.
func (b *base) fields() []string {
	if b.data == "" {
		return nil
	}
	return strings.Split(b.data, Delimiter)
}

// ErrorMessage renders the accumulated errors the way they are logged.
func ErrorMessage(p Packet) string {
	return "ERRORS: " + strings.Join(p.Errors(), " ")
}

// Invalid is the fail-closed sentinel for undecodable frames. It is
// never processed and carries no payload beyond the decode reason.
type Invalid struct {
	base
	reason string
}

func newInvalid(reason string) *Invalid {
	return &Invalid{base: newBase(TypeInvalid, ""), reason: reason}
}

func (p *Invalid) Validate() {
	p.addError("Invalid packet: " + p.reason + ".")
}

func (p *Invalid) ProcessServer(ServerEnv, int) {}
func (p *Invalid) ProcessClient(ClientEnv)      {}

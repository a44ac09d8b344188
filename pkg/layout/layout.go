package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Grid symbols. Anything outside this set is rejected by Validate.
const (
	SymbolFloor       byte = '.'
	SymbolWall        byte = '#'
	SymbolPlayerStart byte = 'S'
	SymbolChest       byte = 'C'
	SymbolEnemy       byte = 'E'
	SymbolNPC         byte = 'N'
	SymbolDoor        byte = 'D'
)

// Alphabet is the full set of symbols a grid row may contain.
const Alphabet = ".#SCEND"

// EntityKind names one of the counted entity collections.
type EntityKind string

const (
	KindEnemy EntityKind = "enemy"
	KindNPC   EntityKind = "npc"
	KindChest EntityKind = "chest"
	KindDoor  EntityKind = "door"
)

// CountedKinds is the order in which entity counts are compared.
var CountedKinds = []EntityKind{KindEnemy, KindNPC, KindChest, KindDoor}

// Symbol returns the grid symbol for an entity kind.
func (k EntityKind) Symbol() byte {
	switch k {
	case KindEnemy:
		return SymbolEnemy
	case KindNPC:
		return SymbolNPC
	case KindChest:
		return SymbolChest
	case KindDoor:
		return SymbolDoor
	}
	return 0
}

// Coord is a grid position; X is the column and Y the row, both zero-based.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Entity is a coordinate plus an opaque type label (e.g. "skeleton").
type Entity struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type,omitempty"`
}

func (e Entity) Coord() Coord {
	return Coord{X: e.X, Y: e.Y}
}

// Entities is the structured view of everything placed on the grid.
type Entities struct {
	PlayerStart *Coord   `json:"player_start"`
	Doors       []Entity `json:"doors,omitempty"`
	Chests      []Entity `json:"chests,omitempty"`
	Enemies     []Entity `json:"enemies,omitempty"`
	NPCs        []Entity `json:"npcs,omitempty"`
}

// Of returns the entity list for a counted kind.
func (e Entities) Of(kind EntityKind) []Entity {
	switch kind {
	case KindEnemy:
		return e.Enemies
	case KindNPC:
		return e.NPCs
	case KindChest:
		return e.Chests
	case KindDoor:
		return e.Doors
	}
	return nil
}

// GridMeta repeats the grid dimensions inside a layout proposal.
type GridMeta struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Layout is a single candidate level produced by a generator. Layouts are
// treated as immutable once produced.
type Layout struct {
	GridMeta  GridMeta `json:"grid_meta"`
	GridASCII []string `json:"grid_ascii"`
	Entities  Entities `json:"entities"`
}

// Width is the declared width from grid_meta.
func (l *Layout) Width() int {
	return l.GridMeta.Width
}

// Height is the declared height from grid_meta.
func (l *Layout) Height() int {
	return l.GridMeta.Height
}

// ErrInvalidFormat is returned by DecodeLayout when the input is not a layout object.
var ErrInvalidFormat = errors.New("layout is not a well-formed object")

// DecodeLayout parses a JSON layout. Unknown fields are ignored since
// generators commonly add commentary keys.
func DecodeLayout(data []byte) (*Layout, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidFormat
	}

	var l Layout
	if err := json.Unmarshal(trimmed, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if l.GridASCII == nil {
		return nil, fmt.Errorf("%w: missing grid_ascii", ErrInvalidFormat)
	}
	return &l, nil
}

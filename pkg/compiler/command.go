// Package compiler turns a validated layout grid into engine commands and
// renders them as Lua.
package compiler

import "fmt"

// Engine API names. These are called by generated scripts and must match
// the engine exactly.
const (
	FuncAllocBlock     = "AllocBlock"
	FuncPlaceItem      = "PlaceItem"
	FuncSpawnNPC       = "SpawnNPC"
	FuncSetEnvironment = "SetEnvironment"
)

// BlockRef is the Lua variable holding the allocated block.
const BlockRef = "stage"

// Kind tags a Command variant.
type Kind string

const (
	KindRaw           Kind = "raw"
	KindAllocateBlock Kind = "allocate_block"
	KindPlaceItem     Kind = "place_item"
	KindSpawnActor    Kind = "spawn_actor"
	KindComment       Kind = "comment"
)

// Command is one engine instruction. Lua returns its single-line rendering.
type Command interface {
	Kind() Kind
	Lua() string
}

// Raw is externally supplied script text, emitted verbatim.
type Raw struct {
	Text string `json:"text"`
}

func (Raw) Kind() Kind { return KindRaw }

func (c Raw) Lua() string { return c.Text }

// AllocateBlock reserves the whole grid area in the engine.
type AllocateBlock struct {
	Ref     string `json:"ref"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	OriginX int    `json:"origin_x"`
	OriginY int    `json:"origin_y"`
}

func (AllocateBlock) Kind() Kind { return KindAllocateBlock }

func (c AllocateBlock) Lua() string {
	return fmt.Sprintf("local %s = %s(%d, %d, %d, %d)", c.Ref, FuncAllocBlock, c.Width, c.Height, c.OriginX, c.OriginY)
}

// PlaceItem puts a static asset on a cell.
type PlaceItem struct {
	Block   string `json:"block"`
	AssetID string `json:"asset_id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
}

func (PlaceItem) Kind() Kind { return KindPlaceItem }

func (c PlaceItem) Lua() string {
	return fmt.Sprintf("%s(%s, %q, %d, %d)", FuncPlaceItem, c.Block, c.AssetID, c.X, c.Y)
}

// SpawnActor spawns a character on a cell for the given team.
type SpawnActor struct {
	Block   string `json:"block"`
	ActorID string `json:"actor_id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Team    string `json:"team"`
}

func (SpawnActor) Kind() Kind { return KindSpawnActor }

func (c SpawnActor) Lua() string {
	return fmt.Sprintf("%s(%s, %q, %d, %d, %q)", FuncSpawnNPC, c.Block, c.ActorID, c.X, c.Y, c.Team)
}

// Comment is a script comment.
type Comment struct {
	Text string `json:"text"`
}

func (Comment) Kind() Kind { return KindComment }

func (c Comment) Lua() string { return "-- " + c.Text }

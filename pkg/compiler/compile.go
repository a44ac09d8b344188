package compiler

import (
	"fmt"

	"github.com/jwebster45206/stage-forge/pkg/layout"
)

// Asset and actor identifiers placed by the compiler.
const (
	AssetWallStone       = "Wall_Stone"
	AssetGraveStone      = "Grave_Stone"
	ActorSkeletonWarrior = "Skeleton_Warrior"
	ActorGhostNun        = "Ghost_Nun"

	TeamEnemy   = "Enemy"
	TeamNeutral = "Neutral"
)

type cellRule struct {
	kind  Kind
	id    string
	team  string
	label string
}

// symbolTable maps every non-floor grid symbol to the command it compiles to.
// Floor cells emit nothing. Doors are walled off until the level script opens them.
var symbolTable = map[byte]cellRule{
	layout.SymbolWall:        {kind: KindPlaceItem, id: AssetWallStone},
	layout.SymbolDoor:        {kind: KindPlaceItem, id: AssetWallStone},
	layout.SymbolChest:       {kind: KindPlaceItem, id: AssetGraveStone},
	layout.SymbolEnemy:       {kind: KindSpawnActor, id: ActorSkeletonWarrior, team: TeamEnemy},
	layout.SymbolNPC:         {kind: KindSpawnActor, id: ActorGhostNun, team: TeamNeutral},
	layout.SymbolPlayerStart: {kind: KindComment, label: "Player start"},
}

func (r cellRule) command(x, y int) Command {
	switch r.kind {
	case KindPlaceItem:
		return PlaceItem{Block: BlockRef, AssetID: r.id, X: x, Y: y}
	case KindSpawnActor:
		return SpawnActor{Block: BlockRef, ActorID: r.id, X: x, Y: y, Team: r.team}
	default:
		return Comment{Text: fmt.Sprintf("%s at (%d,%d)", r.label, x, y)}
	}
}

// Compile emits the preamble (if any), one block allocation covering the
// grid at the origin, then one command per non-floor cell in row-major
// order. Symbols outside the table are skipped; Validate rejects them.
func Compile(l *layout.Layout, preamble string) []Command {
	height := len(l.GridASCII)
	width := 0
	if height > 0 {
		width = len(l.GridASCII[0])
	}

	cmds := make([]Command, 0, width*height+2)
	if preamble != "" {
		cmds = append(cmds, Raw{Text: preamble})
	}
	cmds = append(cmds, AllocateBlock{Ref: BlockRef, Width: width, Height: height, OriginX: 0, OriginY: 0})

	for y, row := range l.GridASCII {
		for x := 0; x < len(row); x++ {
			rule, ok := symbolTable[row[x]]
			if !ok {
				continue
			}
			cmds = append(cmds, rule.command(x, y))
		}
	}
	return cmds
}

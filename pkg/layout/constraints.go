package layout

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidConstraints marks a constraints object that breaks its contract
// (missing or out-of-range numbers). It is a caller bug, not a layout failure.
var ErrInvalidConstraints = errors.New("invalid constraints")

// GridSize is the target grid size.
type GridSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Counts is the required number of each counted entity kind.
type Counts struct {
	Enemy int `json:"enemy"`
	NPC   int `json:"npc"`
	Chest int `json:"chest"`
	Door  int `json:"door"`
}

// Of returns the required count for a kind.
func (c Counts) Of(kind EntityKind) int {
	switch kind {
	case KindEnemy:
		return c.Enemy
	case KindNPC:
		return c.NPC
	case KindChest:
		return c.Chest
	case KindDoor:
		return c.Door
	}
	return 0
}

// Constraints describe what a layout must satisfy. Difficulty and Notes are
// carried through untouched.
type Constraints struct {
	Grid       GridSize        `json:"grid"`
	Counts     Counts          `json:"counts"`
	Difficulty json.RawMessage `json:"difficulty,omitempty"`
	Notes      json.RawMessage `json:"notes,omitempty"`
}

// Check reports a contract violation, wrapped in ErrInvalidConstraints.
func (c *Constraints) Check() error {
	if c == nil {
		return fmt.Errorf("%w: constraints are nil", ErrInvalidConstraints)
	}
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 {
		return fmt.Errorf("%w: grid must be positive, got %dx%d", ErrInvalidConstraints, c.Grid.Width, c.Grid.Height)
	}
	for _, kind := range CountedKinds {
		if n := c.Counts.Of(kind); n < 0 {
			return fmt.Errorf("%w: %s count is negative (%d)", ErrInvalidConstraints, kind, n)
		}
	}
	return nil
}

type rawConstraints struct {
	Grid *struct {
		Width  *int `json:"width"`
		Height *int `json:"height"`
	} `json:"grid"`
	Counts *struct {
		Enemy *int `json:"enemy"`
		NPC   *int `json:"npc"`
		Chest *int `json:"chest"`
		Door  *int `json:"door"`
	} `json:"counts"`
	Difficulty json.RawMessage `json:"difficulty"`
	Notes      json.RawMessage `json:"notes"`
}

// ParseConstraints decodes constraints and requires every numeric field to
// be present, then runs Check.
func ParseConstraints(data []byte) (*Constraints, error) {
	var raw rawConstraints
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConstraints, err)
	}

	if raw.Grid == nil || raw.Grid.Width == nil || raw.Grid.Height == nil {
		return nil, fmt.Errorf("%w: grid.width and grid.height are required", ErrInvalidConstraints)
	}
	if raw.Counts == nil {
		return nil, fmt.Errorf("%w: counts are required", ErrInvalidConstraints)
	}

	missing := func(name string) error {
		return fmt.Errorf("%w: counts.%s is required", ErrInvalidConstraints, name)
	}
	if raw.Counts.Enemy == nil {
		return nil, missing("enemy")
	}
	if raw.Counts.NPC == nil {
		return nil, missing("npc")
	}
	if raw.Counts.Chest == nil {
		return nil, missing("chest")
	}
	if raw.Counts.Door == nil {
		return nil, missing("door")
	}

	c := &Constraints{
		Grid: GridSize{Width: *raw.Grid.Width, Height: *raw.Grid.Height},
		Counts: Counts{
			Enemy: *raw.Counts.Enemy,
			NPC:   *raw.Counts.NPC,
			Chest: *raw.Counts.Chest,
			Door:  *raw.Counts.Door,
		},
		Difficulty: raw.Difficulty,
		Notes:      raw.Notes,
	}
	if err := c.Check(); err != nil {
		return nil, err
	}
	return c, nil
}

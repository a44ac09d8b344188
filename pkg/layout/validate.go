package layout

import (
	"fmt"
	"strings"
)

// Validation error codes, in the order the checks run.
const (
	CodeInvalidFormat    = "invalid_format"
	CodeGridMetaMismatch = "grid_meta_mismatch"
	CodeHeightMismatch   = "height_mismatch"
	CodeWidthMismatch    = "width_mismatch"
	CodeInvalidSymbol    = "invalid_symbol"
	CodePlayerStartCount = "player_start_count"
	CodeCountMismatch    = "count_mismatch"
	CodeEntityMismatch   = "entity_mismatch"
	CodeUnreachableDoor  = "unreachable_door"
	CodeGenerationFailed = "generation_failed"
)

// ValidationError is one structural or topological failure.
type ValidationError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func (e ValidationError) Error() string {
	return e.Code + ": " + e.Detail
}

// ValidationResult is the outcome of Validate. Errors holds at most one
// entry because validation stops at the first failing check.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
	Layout *Layout           `json:"layout,omitempty"`
}

func failed(code, format string, args ...any) *ValidationResult {
	return &ValidationResult{
		Valid:  false,
		Errors: []ValidationError{{Code: code, Detail: fmt.Sprintf(format, args...)}},
	}
}

// InvalidFormat builds the result for a candidate that could not be decoded at all.
func InvalidFormat(err error) *ValidationResult {
	return failed(CodeInvalidFormat, "%v", err)
}

// Validate checks a layout against constraints. Expected failures come back
// as a result with Valid=false; the error return is only used when the
// constraints themselves are unusable. The layout is never modified.
func Validate(c *Constraints, l *Layout) (*ValidationResult, error) {
	if err := c.Check(); err != nil {
		return nil, err
	}
	if l == nil || l.GridASCII == nil {
		return failed(CodeInvalidFormat, "layout is missing or has no grid_ascii"), nil
	}

	width, height := c.Grid.Width, c.Grid.Height

	if l.GridMeta.Width != width || l.GridMeta.Height != height {
		return failed(CodeGridMetaMismatch, "grid_meta is %dx%d, expected %dx%d",
			l.GridMeta.Width, l.GridMeta.Height, width, height), nil
	}

	if len(l.GridASCII) != height {
		return failed(CodeHeightMismatch, "grid has %d rows, expected %d", len(l.GridASCII), height), nil
	}

	for y, row := range l.GridASCII {
		if len(row) != width {
			return failed(CodeWidthMismatch, "row %d has length %d, expected %d", y, len(row), width), nil
		}
	}

	counts := make(map[byte]int, len(Alphabet))
	var start Coord
	var doors []Coord
	for y, row := range l.GridASCII {
		for x := 0; x < len(row); x++ {
			sym := row[x]
			if strings.IndexByte(Alphabet, sym) < 0 {
				return failed(CodeInvalidSymbol, "illegal symbol %q at (%d,%d)", sym, x, y), nil
			}
			counts[sym]++
			switch sym {
			case SymbolPlayerStart:
				start = Coord{X: x, Y: y}
			case SymbolDoor:
				doors = append(doors, Coord{X: x, Y: y})
			}
		}
	}

	if n := counts[SymbolPlayerStart]; n != 1 {
		return failed(CodePlayerStartCount, "found %d player start cells, expected exactly 1", n), nil
	}

	for _, kind := range CountedKinds {
		got, want := counts[kind.Symbol()], c.Counts.Of(kind)
		if got != want {
			return failed(CodeCountMismatch, "%s: grid has %d %q cells, expected %d", kind, got, kind.Symbol(), want), nil
		}
	}

	if res := checkEntities(l); res != nil {
		return res, nil
	}

	if c.Counts.Door > 0 && !Reachable(l.GridASCII, start, doors) {
		return failed(CodeUnreachableDoor, "player start %s cannot reach any door", start), nil
	}

	return &ValidationResult{Valid: true, Errors: []ValidationError{}, Layout: l}, nil
}

// checkEntities verifies entity records and grid symbols agree in both directions.
func checkEntities(l *Layout) *ValidationResult {
	symbolAt := func(p Coord) (byte, bool) {
		if p.Y < 0 || p.Y >= len(l.GridASCII) || p.X < 0 || p.X >= len(l.GridASCII[p.Y]) {
			return 0, false
		}
		return l.GridASCII[p.Y][p.X], true
	}

	claimed := make(map[Coord]byte)

	ps := l.Entities.PlayerStart
	if ps == nil {
		return failed(CodeEntityMismatch, "entities.player_start is missing")
	}
	if sym, ok := symbolAt(*ps); !ok || sym != SymbolPlayerStart {
		return failed(CodeEntityMismatch, "player_start %s does not point at %q", *ps, SymbolPlayerStart)
	}
	claimed[*ps] = SymbolPlayerStart

	for _, kind := range CountedKinds {
		want := kind.Symbol()
		for _, e := range l.Entities.Of(kind) {
			p := e.Coord()
			sym, ok := symbolAt(p)
			if !ok {
				return failed(CodeEntityMismatch, "%s at %s is outside the grid", kind, p)
			}
			if sym != want {
				return failed(CodeEntityMismatch, "%s at %s sits on %q, expected %q", kind, p, sym, want)
			}
			claimed[p] = want
		}
	}

	for y, row := range l.GridASCII {
		for x := 0; x < len(row); x++ {
			sym := row[x]
			if sym == SymbolFloor || sym == SymbolWall {
				continue
			}
			if _, ok := claimed[Coord{X: x, Y: y}]; !ok {
				return failed(CodeEntityMismatch, "grid symbol %q at (%d,%d) has no entity record", sym, x, y)
			}
		}
	}
	return nil
}

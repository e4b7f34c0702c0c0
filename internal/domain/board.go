package domain

import (
	"encoding/json"
	"fmt"
)

// BoardSize is the fixed edge length of the grid.
const BoardSize = 3

// Cell is the state of a single square. It doubles as the player symbol.
type Cell uint8

const (
	Empty Cell = 0
	X     Cell = 1
	O     Cell = 2
)

// String returns "X", "O" or "" for an empty cell.
func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// Opponent returns the other symbol. Empty has no opponent.
func (c Cell) Opponent() Cell {
	switch c {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

// Valid reports whether c is one of the three known states.
func (c Cell) Valid() bool {
	return c <= O
}

// MarshalJSON encodes the cell as its symbol string.
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "X", "O" and "".
func (c *Cell) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseCell(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCell converts a symbol string back to a Cell.
func ParseCell(s string) (Cell, error) {
	switch s {
	case "X":
		return X, nil
	case "O":
		return O, nil
	case "":
		return Empty, nil
	default:
		return Empty, fmt.Errorf("%w: unknown symbol %q", ErrValidation, s)
	}
}

// Board is the 3x3 grid, indexed [x][y] with x the row.
type Board [BoardSize][BoardSize]Cell

// Result classifies a board evaluation.
type Result uint8

const (
	Ongoing Result = iota
	Win
	Draw
)

// Outcome is the result of Evaluate. Winner is set only for Win.
type Outcome struct {
	Result Result
	Winner Cell
}

// lines are the 8 canonical triples: rows, columns, then both diagonals.
var lines = [8][3][2]int{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

func inBounds(x, y int) bool {
	return x >= 0 && x < BoardSize && y >= 0 && y < BoardSize
}

// At returns the cell at (x, y).
func (b *Board) At(x, y int) (Cell, error) {
	if !inBounds(x, y) {
		return Empty, fmt.Errorf("%w: cell (%d,%d) out of range", ErrValidation, x, y)
	}
	return b[x][y], nil
}

// Apply places symbol at (x, y). The cell must be in range and empty.
func (b *Board) Apply(x, y int, symbol Cell) error {
	if symbol != X && symbol != O {
		return fmt.Errorf("%w: cannot place %q", ErrValidation, symbol.String())
	}
	cur, err := b.At(x, y)
	if err != nil {
		return err
	}
	if cur != Empty {
		return fmt.Errorf("%w: cell (%d,%d) already occupied", ErrValidation, x, y)
	}
	b[x][y] = symbol
	return nil
}

// Full reports whether every cell is occupied.
func (b *Board) Full() bool {
	for x := range BoardSize {
		for y := range BoardSize {
			if b[x][y] == Empty {
				return false
			}
		}
	}
	return true
}

// Evaluate reports the first completed line in canonical order, a draw when
// the board is full without one, or Ongoing.
func (b *Board) Evaluate() Outcome {
	for _, l := range lines {
		first := b[l[0][0]][l[0][1]]
		if first == Empty {
			continue
		}
		if b[l[1][0]][l[1][1]] == first && b[l[2][0]][l[2][1]] == first {
			return Outcome{Result: Win, Winner: first}
		}
	}
	if b.Full() {
		return Outcome{Result: Draw}
	}
	return Outcome{Result: Ongoing}
}

// Encode flattens the board to nine '0'/'1'/'2' characters, row by row.
func (b *Board) Encode() string {
	out := make([]byte, 0, BoardSize*BoardSize)
	for x := range BoardSize {
		for y := range BoardSize {
			out = append(out, byte('0'+b[x][y]))
		}
	}
	return string(out)
}

// DecodeBoard parses the output of Encode.
func DecodeBoard(s string) (Board, error) {
	var b Board
	if len(s) != BoardSize*BoardSize {
		return b, fmt.Errorf("decode board: want %d cells, got %d", BoardSize*BoardSize, len(s))
	}
	for i := range len(s) {
		c := Cell(s[i] - '0')
		if s[i] < '0' || !c.Valid() {
			return b, fmt.Errorf("decode board: bad cell %q at %d", s[i], i)
		}
		b[i/BoardSize][i%BoardSize] = c
	}
	return b, nil
}

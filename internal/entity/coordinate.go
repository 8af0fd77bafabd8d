package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
)

const (
	FirstColumn = 'A'
	LastColumn  = 'J'
	FirstRow    = 0
	LastRow     = 9

	GridSize  = 10
	CellCount = GridSize * GridSize
)

// Coordinate - one square of a board, written as column letter and row digit ("B7").
type Coordinate struct {
	Column byte
	Row    int
}

func NewCoordinate(column byte, row int) (Coordinate, error) {
	coord := Coordinate{Column: column, Row: row}
	if !coord.InGrid() {
		return Coordinate{}, fmt.Errorf("%w: %s", apperror.ErrOutOfGrid, coord)
	}

	return coord, nil
}

// ParseCoordinate - parses "A0".."J9", the column letter is case-insensitive.
func ParseCoordinate(value string) (Coordinate, error) {
	value = strings.TrimSpace(value)

	// exactly a letter and one digit, no sign and no padding
	if len(value) != 2 || value[1] < '0' || value[1] > '9' {
		return Coordinate{}, fmt.Errorf("%w: %q", apperror.ErrOutOfGrid, value)
	}

	row := int(value[1] - '0')

	column := value[0]
	if column >= 'a' && column <= 'z' {
		column -= 'a' - 'A'
	}

	return NewCoordinate(column, row)
}

func (that Coordinate) InGrid() bool {
	return that.Column >= FirstColumn && that.Column <= LastColumn &&
		that.Row >= FirstRow && that.Row <= LastRow
}

// Less orders coordinates by column, then row.
func (that Coordinate) Less(other Coordinate) bool {
	if that.Column != other.Column {
		return that.Column < other.Column
	}

	return that.Row < other.Row
}

func (that Coordinate) String() string {
	if that.Column == 0 {
		return ""
	}

	return string(rune(that.Column)) + strconv.Itoa(that.Row)
}

func (that Coordinate) MarshalText() ([]byte, error) {
	return []byte(that.String()), nil
}

func (that *Coordinate) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*that = Coordinate{}
		return nil
	}

	coord, err := ParseCoordinate(string(text))
	if err != nil {
		return err
	}

	*that = coord

	return nil
}

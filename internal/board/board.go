package board

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

// Heading - the direction a ship extends from its start cell.
type Heading byte

const (
	North Heading = 'N' // decreasing row
	East  Heading = 'E' // increasing column
	South Heading = 'S' // increasing row
	West  Heading = 'W' // decreasing column
)

var ErrUnknownHeading = errors.New("heading needs to be one of N, E, S, W")

// FleetLengths - lengths of the seven ships every player places.
var FleetLengths = [7]int{5, 4, 3, 2, 2, 1, 1}

func (that Heading) Valid() bool {
	switch that {
	case North, East, South, West:
		return true
	default:
		return false
	}
}

func (that Heading) MarshalText() ([]byte, error) {
	return []byte{byte(that)}, nil
}

func (that *Heading) UnmarshalText(text []byte) error {
	heading := Heading(0)
	if len(text) == 1 {
		heading = Heading(strings.ToUpper(string(text))[0])
	}
	if !heading.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownHeading, text)
	}

	*that = heading

	return nil
}

func (that Heading) step() (int, int) {
	switch that {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	default:
		return 0, 0
	}
}

// Placement - a ship of Length cells starting at Start.
type Placement struct {
	Start   entity.Coordinate `json:"start"`
	Length  int               `json:"length"`
	Heading Heading           `json:"heading"`
}

// ParsePlacement - parses the compact "<col><row><heading>" form, e.g. "A0S".
func ParsePlacement(value string, length int) (Placement, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if len(value) < 3 {
		return Placement{}, fmt.Errorf("%w: %q", apperror.ErrInvalidPlacement, value)
	}

	start, err := entity.ParseCoordinate(value[:len(value)-1])
	if err != nil {
		return Placement{}, fmt.Errorf("%w: %w", apperror.ErrInvalidPlacement, err)
	}

	heading := Heading(value[len(value)-1])
	if !heading.Valid() {
		return Placement{}, fmt.Errorf("%w: %w", apperror.ErrInvalidPlacement, ErrUnknownHeading)
	}

	return Placement{Start: start, Length: length, Heading: heading}, nil
}

// ParseFleet - parses seven compact placements in FleetLengths order.
func ParseFleet(values []string) ([]Placement, error) {
	if len(values) != len(FleetLengths) {
		return nil, fmt.Errorf("%w: need %d ships, got %d", apperror.ErrInvalidPlacement, len(FleetLengths), len(values))
	}

	fleet := make([]Placement, 0, len(values))
	for i, value := range values {
		placement, err := ParsePlacement(value, FleetLengths[i])
		if err != nil {
			return nil, err
		}

		fleet = append(fleet, placement)
	}

	return fleet, nil
}

func (that Placement) String() string {
	return fmt.Sprintf("%s%c/%d", that.Start, that.Heading, that.Length)
}

// OccupiedCoordinates - the straight run of length cells from start towards heading.
func OccupiedCoordinates(start entity.Coordinate, length int, heading Heading) ([]entity.Coordinate, error) {
	if !heading.Valid() {
		return nil, ErrUnknownHeading
	}

	if length < 1 || length > slices.Max(FleetLengths[:]) {
		return nil, fmt.Errorf("%w: ship length %d", apperror.ErrInvalidPlacement, length)
	}

	dx, dy := heading.step()

	coords := make([]entity.Coordinate, 0, length)
	for i := range length {
		coord := entity.Coordinate{
			Column: byte(int(start.Column) + dx*i),
			Row:    start.Row + dy*i,
		}
		if !coord.InGrid() {
			return nil, fmt.Errorf("%w: %s heading %c, length %d", apperror.ErrOutOfGrid, start, heading, length)
		}

		coords = append(coords, coord)
	}

	return coords, nil
}

// AllCoordinates - every coordinate of the grid, ordered by column then row.
func AllCoordinates() []entity.Coordinate {
	coords := make([]entity.Coordinate, 0, entity.CellCount)
	for column := byte(entity.FirstColumn); column <= entity.LastColumn; column++ {
		for row := entity.FirstRow; row <= entity.LastRow; row++ {
			coords = append(coords, entity.Coordinate{Column: column, Row: row})
		}
	}

	return coords
}

// Layout - the set of coordinates covered by a full fleet.
func Layout(placements []Placement) (map[entity.Coordinate]bool, error) {
	if len(placements) != len(FleetLengths) {
		return nil, fmt.Errorf("%w: need %d ships, got %d", apperror.ErrInvalidPlacement, len(FleetLengths), len(placements))
	}

	lengths := make([]int, 0, len(placements))
	for _, placement := range placements {
		lengths = append(lengths, placement.Length)
	}
	slices.Sort(lengths)

	expected := slices.Clone(FleetLengths[:])
	slices.Sort(expected)

	if !slices.Equal(lengths, expected) {
		return nil, fmt.Errorf("%w: ship lengths %v, want %v", apperror.ErrInvalidPlacement, lengths, FleetLengths)
	}

	occupied := make(map[entity.Coordinate]bool, entity.MaxScore)
	for _, placement := range placements {
		coords, err := OccupiedCoordinates(placement.Start, placement.Length, placement.Heading)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", apperror.ErrInvalidPlacement, placement, err)
		}

		for _, coord := range coords {
			if occupied[coord] {
				return nil, fmt.Errorf("%w: %s overlaps at %s", apperror.ErrInvalidPlacement, placement, coord)
			}

			occupied[coord] = true
		}
	}

	return occupied, nil
}

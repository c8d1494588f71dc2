package board

// Colour identifies one of the eight street groups
type Colour int

const (
	Brown Colour = iota
	LightBlue
	Pink
	Orange
	Red
	Yellow
	Green
	DarkBlue
)

type colourInfo struct {
	name       string
	tiles      []int
	housePrice int
}

// House prices cover one house on every street of the group.
var colours = map[Colour]colourInfo{
	Brown:     {name: "brown", tiles: []int{1, 3}, housePrice: 100},
	LightBlue: {name: "light blue", tiles: []int{6, 8, 9}, housePrice: 150},
	Pink:      {name: "pink", tiles: []int{11, 13, 14}, housePrice: 300},
	Orange:    {name: "orange", tiles: []int{16, 18, 19}, housePrice: 300},
	Red:       {name: "red", tiles: []int{21, 23, 24}, housePrice: 450},
	Yellow:    {name: "yellow", tiles: []int{26, 27, 29}, housePrice: 450},
	Green:     {name: "green", tiles: []int{31, 32, 34}, housePrice: 600},
	DarkBlue:  {name: "dark blue", tiles: []int{37, 39}, housePrice: 400},
}

func (c Colour) String() string {
	if info, ok := colours[c]; ok {
		return info.name
	}
	return "unknown"
}

// Tiles returns the positions of every street in the group
func (c Colour) Tiles() []int {
	tiles := colours[c].tiles
	out := make([]int, len(tiles))
	copy(out, tiles)
	return out
}

// HousePrice returns the fixed price charged for one building step in the group
func (c Colour) HousePrice() int {
	return colours[c].housePrice
}

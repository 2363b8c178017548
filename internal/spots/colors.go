package spots

import (
	"fmt"
	"hash/fnv"
	"math"
	"sync"
)

// DefaultColor is used for spots with no category label at all.
const DefaultColor = "#ff0000"

// presetColors are the well-known vibes shipped with the app.
var presetColors = map[string]string{
	"romantic": "#ff69b4",
	"serene":   "#87ceeb",
	"creative": "#ffa500",
}

// ColorAssigner maps free-form category labels to stable marker colors.
// Lookups are keyed on the case-folded label, so "Romantic" and "ROMANTIC"
// share one assignment. Unknown labels get a color derived from a hash of
// the folded label, so the same dataset renders the same on every run.
// Assignments never change for the lifetime of the assigner.
type ColorAssigner struct {
	mu       sync.Mutex
	assigned map[string]string
}

func NewColorAssigner() *ColorAssigner {
	return &ColorAssigner{assigned: make(map[string]string)}
}

func (a *ColorAssigner) ColorFor(label string) string {
	key := foldLabel(label)
	if key == "" {
		return DefaultColor
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.assigned[key]; ok {
		return c
	}
	c, ok := presetColors[key]
	if !ok {
		c = deriveColor(key)
	}
	a.assigned[key] = c
	return c
}

// Legend returns a snapshot of every assignment made so far, keyed by the
// folded label. The map is a copy; callers may mutate it freely.
func (a *ColorAssigner) Legend() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]string, len(a.assigned))
	for k, v := range a.assigned {
		out[k] = v
	}
	return out
}

// deriveColor maps a folded label onto the hue circle via FNV-1a, with
// fixed saturation and lightness so derived markers stay readable against
// the map tiles.
func deriveColor(key string) string {
	h := fnv.New32a()
	h.Write([]byte(key))
	hue := float64(h.Sum32() % 360)
	return hslToHex(hue, 0.70, 0.55)
}

// hslToHex converts an HSL color (h in degrees, s/l in [0,1]) to #rrggbb.
func hslToHex(h, s, l float64) string {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return fmt.Sprintf("#%02x%02x%02x",
		int(math.Round((r+m)*255)),
		int(math.Round((g+m)*255)),
		int(math.Round((b+m)*255)))
}

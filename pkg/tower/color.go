package tower

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// =============================================================================
// Deterministic Color Assigner
// =============================================================================

// Theme selects which color table a slot index resolves against. Slot
// assignment is shared between themes, so switching theme never changes
// which labels look related.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Curated palettes, index-aligned between themes. Hand-picked for contrast
// between neighboring slots; a raw hue-from-hash mapping produces visually
// adjacent collisions for similar labels.
var (
	paletteLight = []string{
		"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f",
		"#edc948", "#b07aa1", "#ff9da7", "#9c755f", "#bab0ac",
		"#2f4b7c", "#a05195", "#d45087", "#f95d6a", "#ff7c43",
		"#ffa600", "#488f31", "#8a9b41", "#de425b", "#665191",
	}
	paletteDark = []string{
		"#7da7d9", "#ffb265", "#ff8a8c", "#9fd8d3", "#83c87d",
		"#ffe07a", "#d3a8c9", "#ffc2c9", "#c49e87", "#d6cdc8",
		"#5f7eae", "#c97fc0", "#ff7fb1", "#ff8d96", "#ffa473",
		"#ffc04d", "#74b95c", "#b3c46b", "#ff6f85", "#9a84c4",
	}
)

// probeStride is coprime with the palette length, so a probe visits every
// slot exactly once before falling back.
const probeStride = 7

// ColorAssigner maps categorical labels to stable palette slots. Once a
// label claims a slot it keeps it for the assigner's lifetime, even as new
// labels arrive, so a carrier never changes color between filter
// applications.
//
// An assigner is an explicit context object: one per chart instance (or per
// server session) rather than a process-wide singleton, so independent
// viewers never bleed assignments into each other. It is not safe for
// concurrent use.
type ColorAssigner struct {
	slots  map[string]int
	used   map[int]bool
	light  []string
	dark   []string
	stride int
}

// NewColorAssigner creates an empty assigner over the curated palettes.
func NewColorAssigner() *ColorAssigner {
	return NewColorAssignerWithPalettes(paletteLight, paletteDark)
}

// NewColorAssignerWithPalettes creates an assigner over custom palettes,
// index-aligned like the curated tables. Empty or mismatched overrides
// fall back to the curated palettes.
func NewColorAssignerWithPalettes(light, dark []string) *ColorAssigner {
	if len(light) == 0 || len(light) != len(dark) {
		light, dark = paletteLight, paletteDark
	}
	return &ColorAssigner{
		slots:  make(map[string]int),
		used:   make(map[int]bool),
		light:  light,
		dark:   dark,
		stride: strideFor(len(light)),
	}
}

// strideFor picks the probe stride: probeStride when coprime with the
// palette length, otherwise the next larger coprime, so the probe always
// visits every slot before falling back.
func strideFor(n int) int {
	s := probeStride
	for gcd(s, n) != 1 {
		s++
	}
	return s
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ColorFor returns the color for a label under the given theme. The first
// request for a label probes the palette starting at a hash-derived slot,
// stepping by a fixed coprime stride until a free slot is found, then
// reserves that slot permanently. When the palette is exhausted the color
// degrades to a hash-derived hue.
func (a *ColorAssigner) ColorFor(label string, theme Theme) string {
	norm := normalizeLabel(label)

	slot, ok := a.slots[norm]
	if !ok {
		slot = a.claimSlot(norm)
		a.slots[norm] = slot
	}

	if slot < 0 {
		return fallbackColor(norm, theme)
	}
	if theme == ThemeDark {
		return a.dark[slot]
	}
	return a.light[slot]
}

// Slot returns the palette slot reserved for a label, or -1 if the label
// is unknown or spilled past the palette.
func (a *ColorAssigner) Slot(label string) int {
	if slot, ok := a.slots[normalizeLabel(label)]; ok {
		return slot
	}
	return -1
}

// claimSlot probes for a free palette slot; returns -1 when full.
func (a *ColorAssigner) claimSlot(norm string) int {
	n := len(a.light)
	start := int(labelHash(norm) % uint32(n))
	for i := 0; i < n; i++ {
		slot := (start + i*a.stride) % n
		if !a.used[slot] {
			a.used[slot] = true
			return slot
		}
	}
	return -1
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func labelHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// fallbackColor derives a color directly from the label hash once the
// curated palette is exhausted. Saturation/lightness differ per theme.
func fallbackColor(norm string, theme Theme) string {
	hue := float64(labelHash(norm) % 360)
	if theme == ThemeDark {
		return hslToHex(hue, 0.55, 0.65)
	}
	return hslToHex(hue, 0.65, 0.45)
}

// hslToHex converts HSL (h in degrees, s/l in [0,1]) to a #rrggbb string.
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

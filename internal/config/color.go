package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Named colors as CIE xy chromaticity pairs.
// More values: https://developers.meethue.com/develop/hue-api/supported-devices/
var namedColors = map[string]Color{
	"firebrick": {X: 0.6621, Y: 0.3023, set: true},
	"dark_blue": {X: 0.139, Y: 0.081, set: true},
	"orchid":    {X: 0.3365, Y: 0.1735, set: true},
	"olive":     {X: 0.4432, Y: 0.5154, set: true},
	"yellow":    {X: 0.4432, Y: 0.5154, set: true},
	"violet":    {X: 0.3644, Y: 0.2133, set: true},
}

// Color is a CIE xy chromaticity pair.
// In YAML it is either a color name from the built-in table or [x, y].
type Color struct {
	X   float32
	Y   float32
	set bool
}

// NewColor returns a color from raw coordinates
func NewColor(x, y float32) Color {
	return Color{X: x, Y: y, set: true}
}

// LookupColor returns a named color
func LookupColor(name string) (Color, bool) {
	c, ok := namedColors[strings.ToLower(name)]
	return c, ok
}

// Valid reports whether the color was configured
func (c Color) Valid() bool {
	return c.set
}

// XY returns the color in the slice form used by the bridge
func (c Color) XY() []float32 {
	return []float32{c.X, c.Y}
}

func (c Color) String() string {
	return fmt.Sprintf("[%.4f, %.4f]", c.X, c.Y)
}

// UnmarshalYAML implements yaml.Unmarshaler for Color
func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		named, ok := LookupColor(value.Value)
		if !ok {
			return fmt.Errorf("line %d: unknown color %q", value.Line, value.Value)
		}
		*c = named
		return nil
	case yaml.SequenceNode:
		var xy []float32
		if err := value.Decode(&xy); err != nil {
			return err
		}
		if len(xy) != 2 {
			return fmt.Errorf("line %d: color must be [x, y], got %d values", value.Line, len(xy))
		}
		for _, v := range xy {
			if v < 0 || v > 1 {
				return fmt.Errorf("line %d: color coordinates must be within 0..1", value.Line)
			}
		}
		*c = NewColor(xy[0], xy[1])
		return nil
	default:
		return fmt.Errorf("line %d: color must be a name or [x, y]", value.Line)
	}
}

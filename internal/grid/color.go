package grid

import (
	"fmt"
	"math"

	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
)

type rgb struct{ r, g, b float64 }

// Red, yellow, green stops of the diverging heat ramp.
var ramp = []rgb{
	{0xd7, 0x30, 0x27},
	{0xff, 0xff, 0xbf},
	{0x1a, 0x98, 0x50},
}

// Color maps value within [lo, hi] onto the red-yellow-green ramp and
// returns a "#rrggbb" string. Values above hi (including +Inf) are green and
// a degenerate range maps to the middle stop.
func Color(value, lo, hi float64) string {
	var t float64
	switch {
	case math.IsNaN(value):
		t = 0
	case math.IsInf(value, 1):
		t = 1
	case hi <= lo:
		t = 0.5
	default:
		t = mathutil.Clamp((value-lo)/(hi-lo), 0, 1)
	}

	scaled := t * float64(len(ramp)-1)
	i := int(math.Floor(scaled))
	if i >= len(ramp)-1 {
		i = len(ramp) - 2
	}
	f := scaled - float64(i)
	a, b := ramp[i], ramp[i+1]
	return fmt.Sprintf("#%02x%02x%02x",
		int(math.Round(a.r+(b.r-a.r)*f)),
		int(math.Round(a.g+(b.g-a.g)*f)),
		int(math.Round(a.b+(b.b-a.b)*f)),
	)
}

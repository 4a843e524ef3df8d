package capture

import (
	"fmt"
	"sort"
	"strings"
)

// Width is one distinct pulse length seen on a pin.
type Width struct {
	Pin    int     `json:"pin"`
	High   bool    `json:"high"`
	Cycles uint64  `json:"cycles"`
	Micros float64 `json:"us"`
	Count  int     `json:"count"`
}

// Timing groups the complete pulses of every output pin by level and
// length. The result is ordered by pin, then low before high, then length.
func (r *Recording) Timing() []Width {
	type key struct {
		pin    int
		high   bool
		cycles uint64
	}
	counts := make(map[key]int)
	for _, pin := range r.Pins {
		for _, p := range r.Trace.Pulses(pin) {
			counts[key{pin, p.High, p.Cycles}]++
		}
	}

	widths := make([]Width, 0, len(counts))
	for k, n := range counts {
		widths = append(widths, Width{
			Pin:    k.pin,
			High:   k.high,
			Cycles: k.cycles,
			Micros: r.Micros(k.cycles),
			Count:  n,
		})
	}
	sort.Slice(widths, func(i, j int) bool {
		a, b := widths[i], widths[j]
		if a.Pin != b.Pin {
			return a.Pin < b.Pin
		}
		if a.High != b.High {
			return !a.High
		}
		return a.Cycles < b.Cycles
	})
	return widths
}

// FormatTiming renders widths as an aligned table.
//
//	pin  level  cycles        us  count
//	  7  low        29     58.00    301
func FormatTiming(widths []Width) string {
	var b strings.Builder
	b.WriteString("pin  level  cycles        us  count\n")
	for _, w := range widths {
		level := "low"
		if w.High {
			level = "high"
		}
		fmt.Fprintf(&b, "%3d  %-5s  %6d  %8.2f  %5d\n", w.Pin, level, w.Cycles, w.Micros, w.Count)
	}
	return b.String()
}

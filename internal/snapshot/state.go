package snapshot

import "strconv"

// State returns the canonical form of a channel table: the power flag and
// every non-zero channel keyed by its decimal address.
func State(channels []uint8, power bool) map[string]any {
	set := make(map[string]any)
	for addr, v := range channels {
		if v != 0 {
			set[strconv.Itoa(addr)] = v
		}
	}
	return map[string]any{
		"channels": set,
		"power":    power,
	}
}

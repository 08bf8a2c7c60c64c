package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSize parses a size threshold. In byte mode it accepts a plain integer
// or a KB, MB or GB suffix (powers of 1024). In token mode it accepts a plain
// integer or a K suffix meaning thousands.
func ParseSize(input string, tokens bool) (int, error) {
	s := strings.TrimSpace(input)
	if tokens {
		if strings.HasSuffix(strings.ToLower(s), "k") {
			v, err := strconv.Atoi(strings.TrimSpace(s[:len(s)-1]))
			if err != nil {
				return 0, fmt.Errorf("invalid token size %q: %w", input, err)
			}
			return v * 1000, nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid token size %q: %w", input, err)
		}
		return v, nil
	}

	upper := strings.ToUpper(s)
	for _, unit := range []struct {
		suffix string
		mult   int
	}{
		{"KB", 1024},
		{"MB", 1024 * 1024},
		{"GB", 1024 * 1024 * 1024},
	} {
		if strings.HasSuffix(upper, unit.suffix) {
			v, err := strconv.Atoi(strings.TrimSpace(upper[:len(upper)-len(unit.suffix)]))
			if err != nil {
				return 0, fmt.Errorf("invalid size %q: %w", input, err)
			}
			return v * unit.mult, nil
		}
	}
	v, err := strconv.Atoi(upper)
	if err != nil {
		return 0, fmt.Errorf("invalid size string %q", input)
	}
	return v, nil
}

package state

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var ErrEmptyMask = errors.New("core mask is empty")

// CoreMask is a sorted, deduplicated set of logical core indices.
type CoreMask []int

func NewCoreMask(cores ...int) (CoreMask, error) {
	if len(cores) == 0 {
		return nil, ErrEmptyMask
	}
	for _, c := range cores {
		if c < 0 {
			return nil, fmt.Errorf("core index %d is negative", c)
		}
	}
	normalized := make([]int, len(cores))
	copy(normalized, cores)
	sort.Ints(normalized)
	return CoreMask(dedupeSorted(normalized)), nil
}

// ParseCoreMask parses a core list in range notation, e.g. "0-3,6".
func ParseCoreMask(raw string) (CoreMask, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrEmptyMask
	}

	var cores []int
	for _, part := range strings.Split(trimmed, ",") {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		if strings.Contains(item, "-") {
			bounds := strings.SplitN(item, "-", 2)
			start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid core range %q", item)
			}
			end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid core range %q", item)
			}
			if end < start {
				return nil, fmt.Errorf("core range %q ends before it starts", item)
			}
			for i := start; i <= end; i++ {
				cores = append(cores, i)
			}
			continue
		}
		parsed, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("invalid core index %q", item)
		}
		cores = append(cores, parsed)
	}

	return NewCoreMask(cores...)
}

// Clamp drops core indices at or beyond total. Configurations travel between
// machines with different core counts, so out-of-range indices are removed
// rather than rejected.
func (m CoreMask) Clamp(total int) CoreMask {
	result := make(CoreMask, 0, len(m))
	for _, c := range m {
		if c < total {
			result = append(result, c)
		}
	}
	return result
}

// Bits returns the OS affinity bitmask for the first 64 logical cores.
func (m CoreMask) Bits() uint64 {
	var bits uint64
	for _, c := range m {
		if c < 64 {
			bits |= 1 << uint(c)
		}
	}
	return bits
}

func (m CoreMask) Contains(core int) bool {
	for _, c := range m {
		if c == core {
			return true
		}
	}
	return false
}

func (m CoreMask) Equal(other CoreMask) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if m[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the mask in range notation: 0-3,6.
func (m CoreMask) String() string {
	if len(m) == 0 {
		return ""
	}

	parts := make([]string, 0, len(m))
	start := m[0]
	prev := m[0]
	for i := 1; i < len(m); i++ {
		current := m[i]
		if current == prev+1 {
			prev = current
			continue
		}
		parts = append(parts, formatRange(start, prev))
		start = current
		prev = current
	}
	parts = append(parts, formatRange(start, prev))

	return strings.Join(parts, ",")
}

func formatRange(start, end int) string {
	if start == end {
		return strconv.Itoa(start)
	}
	return strconv.Itoa(start) + "-" + strconv.Itoa(end)
}

func dedupeSorted(values []int) []int {
	if len(values) == 0 {
		return values
	}
	result := make([]int, 0, len(values))
	last := values[0] - 1
	for _, value := range values {
		if value == last {
			continue
		}
		result = append(result, value)
		last = value
	}
	return result
}

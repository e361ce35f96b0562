package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SizeBounds is the inclusive size window a file must fall in to be hashed.
// Max is only honored when HasMax is set.
type SizeBounds struct {
	Min    int64
	Max    int64
	HasMax bool
}

// Unbounded accepts every file.
func Unbounded() SizeBounds {
	return SizeBounds{}
}

// Between builds a bounded window.
func Between(min, max int64) SizeBounds {
	return SizeBounds{Min: min, Max: max, HasMax: true}
}

// AtLeast builds a window with no upper bound.
func AtLeast(min int64) SizeBounds {
	return SizeBounds{Min: min}
}

// Validate reports CodeInvalidBounds for a negative minimum or a maximum below it.
func (bounds SizeBounds) Validate() error {
	if bounds.Min < 0 {
		return newError(CodeInvalidBounds, "", fmt.Errorf("minimum size %d is negative", bounds.Min))
	}
	if bounds.HasMax && bounds.Max < bounds.Min {
		return newError(CodeInvalidBounds, "", fmt.Errorf("maximum size %d is smaller than minimum %d", bounds.Max, bounds.Min))
	}
	return nil
}

// Allows reports whether a file of the given size qualifies for hashing.
func (bounds SizeBounds) Allows(size int64) bool {
	if size < bounds.Min {
		return false
	}
	return !bounds.HasMax || size <= bounds.Max
}

func (bounds SizeBounds) String() string {
	if bounds.HasMax {
		return fmt.Sprintf("[%s, %s]", FormatSize(bounds.Min), FormatSize(bounds.Max))
	}
	return fmt.Sprintf("[%s, unbounded)", FormatSize(bounds.Min))
}

// ParseBounds turns user input into bounds. An empty minimum means 0, an empty maximum
// means no upper bound. Anything unparseable is CodeInvalidBounds.
func ParseBounds(minInput, maxInput string) (SizeBounds, error) {
	var bounds SizeBounds
	if strings.TrimSpace(minInput) != "" {
		min, err := ParseSize(minInput)
		if err != nil {
			return SizeBounds{}, newError(CodeInvalidBounds, "", fmt.Errorf("minimum: %w", err))
		}
		bounds.Min = min
	}
	if strings.TrimSpace(maxInput) != "" {
		max, err := ParseSize(maxInput)
		if err != nil {
			return SizeBounds{}, newError(CodeInvalidBounds, "", fmt.Errorf("maximum: %w", err))
		}
		bounds.Max = max
		bounds.HasMax = true
	}
	if err := bounds.Validate(); err != nil {
		return SizeBounds{}, err
	}
	return bounds, nil
}

// ParseSize accepts plain byte counts or a number with a binary unit suffix
// ("512", "4k", "1.5MB", "2G").
func ParseSize(input string) (int64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(input))
	if trimmed == "" {
		return 0, fmt.Errorf("empty size")
	}

	number := trimmed
	suffix := ""
	for index, char := range trimmed {
		if (char < '0' || char > '9') && char != '.' {
			number = strings.TrimSpace(trimmed[:index])
			suffix = strings.TrimSpace(trimmed[index:])
			break
		}
	}
	if number == "" {
		return 0, fmt.Errorf("no numeric part in size %q", input)
	}

	var multiplier float64
	switch suffix {
	case "", "B":
		multiplier = 1
	case "K", "KB", "KIB":
		multiplier = 1 << 10
	case "M", "MB", "MIB":
		multiplier = 1 << 20
	case "G", "GB", "GIB":
		multiplier = 1 << 30
	case "T", "TB", "TIB":
		multiplier = 1 << 40
	default:
		return 0, fmt.Errorf("unknown size unit %q", suffix)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", input, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative size %q", input)
	}
	bytes := value * multiplier
	if bytes >= math.MaxInt64 {
		return 0, fmt.Errorf("size too large %q", input)
	}
	return int64(bytes), nil
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%dB", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit && exp < 5; n /= unit {
		div *= unit
		exp++
	}
	value := float64(size) / float64(div)
	units := []string{"KB", "MB", "GB", "TB", "PB", "EB"}
	return fmt.Sprintf("%.1f%s", value, units[exp])
}

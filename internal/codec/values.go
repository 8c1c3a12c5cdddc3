// ABOUTME: String formatting and parsing of typed preference values
// ABOUTME: Includes the delimiter-joined string set encoding

package codec

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// SetDelimiter joins string set members. It is chosen to be unlikely in real values.
const SetDelimiter = "u^K>LK*O4"

// Format renders value as the stored string for tag. The Go type must match
// the tag: bool, int32, int64, float32, string or []string.
func Format(tag TypeTag, value any) (string, error) {
	switch tag {
	case Boolean:
		if v, ok := value.(bool); ok {
			return strconv.FormatBool(v), nil
		}
	case Int:
		if v, ok := value.(int32); ok {
			return strconv.FormatInt(int64(v), 10), nil
		}
	case Long:
		if v, ok := value.(int64); ok {
			return strconv.FormatInt(v, 10), nil
		}
	case Float:
		if v, ok := value.(float32); ok {
			return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
		}
	case String:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case StringSet:
		if v, ok := value.([]string); ok {
			return JoinSet(v)
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
	return "", fmt.Errorf("%w: %T under %s", ErrTypeMismatch, value, tag)
}

// Parse converts a stored string back to the Go value for tag.
func Parse(tag TypeTag, raw string) (any, error) {
	switch tag {
	case Boolean:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, parseErr(tag, err)
		}
		return v, nil
	case Int:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, parseErr(tag, err)
		}
		return int32(v), nil
	case Long:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, parseErr(tag, err)
		}
		return v, nil
	case Float:
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, parseErr(tag, err)
		}
		return float32(v), nil
	case String:
		return raw, nil
	case StringSet:
		return SplitSet(raw), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
}

func parseErr(tag TypeTag, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrParse, tag, err)
}

// NormalizeSet returns the members deduplicated and sorted.
func NormalizeSet(members []string) []string {
	out := slices.Clone(members)
	slices.Sort(out)
	return slices.Compact(out)
}

// JoinSet encodes members. The empty set encodes to "".
func JoinSet(members []string) (string, error) {
	for _, m := range members {
		if strings.Contains(m, SetDelimiter) {
			return "", ErrDelimiterInValue
		}
	}
	return strings.Join(NormalizeSet(members), SetDelimiter), nil
}

// SplitSet decodes a joined set. "" decodes to the empty set.
func SplitSet(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return NormalizeSet(strings.Split(raw, SetDelimiter))
}

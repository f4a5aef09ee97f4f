package scpi

import (
	"strconv"
	"strings"
)

// ParseInt interprets token as an integer command parameter. The
// case-insensitive meta-values MIN/MINIMUM, MAX/MAXIMUM and DEF/DEFAULT
// resolve to the corresponding argument. Anything else must parse as an
// integer (data type error otherwise) and, when checkRange is set, lie inside
// [min, max] inclusive (data out of range otherwise).
func ParseInt(token string, min, max, def int, checkRange bool) (int, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "MIN", "MINIMUM":
		return min, nil
	case "MAX", "MAXIMUM":
		return max, nil
	case "DEF", "DEFAULT":
		return def, nil
	}

	value, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return 0, ErrDataType()
	}
	if checkRange && (value < min || value > max) {
		return 0, ErrDataOutOfRange()
	}
	return value, nil
}

// ParseFloat interprets token as a floating point command parameter with
// optional bounds. A nil bound means "no bound applies": requesting the
// matching meta-value fails with a parameter-not-allowed error, and the range
// check skips that side. The range check is inclusive on both ends and only
// runs when checkRange is set.
func ParseFloat(token string, min, max, def *float64, checkRange bool) (float64, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "MIN", "MINIMUM":
		if min == nil {
			return 0, ErrParameterNotAllowed()
		}
		return *min, nil
	case "MAX", "MAXIMUM":
		if max == nil {
			return 0, ErrParameterNotAllowed()
		}
		return *max, nil
	case "DEF", "DEFAULT":
		if def == nil {
			return 0, ErrParameterNotAllowed()
		}
		return *def, nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
	if err != nil {
		return 0, ErrDataType()
	}
	if checkRange {
		if min != nil && value < *min {
			return 0, ErrDataOutOfRange()
		}
		if max != nil && value > *max {
			return 0, ErrDataOutOfRange()
		}
	}
	return value, nil
}

// QueryResponse resolves the SCPI "COMMAND? [MIN|MAX|DEF]" convention: an
// empty metaToken returns the current value, a meta-value returns the
// corresponding bound or default (parameter-not-allowed when that bound is
// unset), and any other token is a data type error. Querying a bound never
// changes instrument state.
func QueryResponse(metaToken string, min, max, def *float64, current float64) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(metaToken)) {
	case "":
		return FormatFloat(current), nil
	case "MIN", "MINIMUM":
		if min == nil {
			return "", ErrParameterNotAllowed()
		}
		return FormatFloat(*min), nil
	case "MAX", "MAXIMUM":
		if max == nil {
			return "", ErrParameterNotAllowed()
		}
		return FormatFloat(*max), nil
	case "DEF", "DEFAULT":
		if def == nil {
			return "", ErrParameterNotAllowed()
		}
		return FormatFloat(*def), nil
	default:
		return "", ErrDataType()
	}
}

// FormatFloat renders a numeric response value in the shortest exact form
func FormatFloat(value float64) string {
	return strconv.FormatFloat(value, 'G', -1, 64)
}

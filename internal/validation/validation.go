package validation

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrCoordinateMissing is returned when a coordinate parameter is absent or blank.
var ErrCoordinateMissing = errors.New("coordinate is required")

// ErrCoordinateNotNumber is returned when a coordinate does not parse as a number.
var ErrCoordinateNotNumber = errors.New("coordinate is not a number")

// ErrCoordinateNotFinite is returned for NaN and ±Inf, including overflow such as 1e400.
var ErrCoordinateNotFinite = errors.New("coordinate is not finite")

// ErrLatitudeOutOfRange is returned when latitude is outside [-90, 90].
var ErrLatitudeOutOfRange = errors.New("latitude out of range")

// ErrLongitudeOutOfRange is returned when longitude is outside [-180, 180].
var ErrLongitudeOutOfRange = errors.New("longitude out of range")

// ParseCoordinate parses raw lat/lon query values. Surrounding whitespace is ignored.
// Only plain decimal notation with an optional exponent is accepted; Go literal forms
// such as digit separators ("1_0") and hex floats ("0x1p4") are rejected.
// Both values must be finite; with enforceRange, latitude must lie in [-90, 90] and
// longitude in [-180, 180]. Every failure maps to the same 400 at the HTTP layer; the
// distinct errors exist for logging.
func ParseCoordinate(latRaw, lonRaw string, enforceRange bool) (lat, lon float64, err error) {
	if lat, err = parseFinite(latRaw); err != nil {
		return 0, 0, err
	}
	if lon, err = parseFinite(lonRaw); err != nil {
		return 0, 0, err
	}
	if enforceRange {
		if lat < -90 || lat > 90 {
			return 0, 0, ErrLatitudeOutOfRange
		}
		if lon < -180 || lon > 180 {
			return 0, 0, ErrLongitudeOutOfRange
		}
	}
	return lat, lon, nil
}

const decimalChars = "0123456789+-.eE"

func parseFinite(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrCoordinateMissing
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, ErrCoordinateNotFinite
		}
		return 0, ErrCoordinateNotNumber
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrCoordinateNotFinite
	}
	if strings.TrimLeft(s, decimalChars) != "" {
		return 0, ErrCoordinateNotNumber
	}
	return v, nil
}

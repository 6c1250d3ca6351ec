package transit

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/denizatli/hattakip/internal/domain"
)

// Preference steers which neighbour of the stop-id token DecodeCoordinates
// tries first. The upstream orders coordinate tokens differently in a
// route's origin and destination segments, and the probe ordering below is
// preserved exactly as observed; it is a heuristic, not a proven algorithm.
type Preference string

const (
	PreferBefore Preference = "before"
	PreferAfter  Preference = "after"
	PreferEither Preference = "either"
)

var stopIDTokenRe = regexp.MustCompile(`^\d+$`)

// offsetsFor returns the probe order for a preference. Unknown preferences
// fall back to PreferEither.
func offsetsFor(pref Preference) []int {
	switch pref {
	case PreferBefore:
		return []int{-1, 1}
	case PreferAfter:
		return []int{1, -1}
	default:
		return []int{1, -1, -2, 2}
	}
}

// DecodeCoordinates pulls a coordinate pair out of a pipe-delimited route
// segment string. Tokens are either "lat;lng" coordinate pairs or plain
// identifiers. The pair returned is the one nearest the first purely numeric
// non-coordinate token (the stop id), probing neighbours in preference
// order; with no stop id or no neighbouring pair, the first coordinate pair
// anywhere in the string is used.
func DecodeCoordinates(raw string, pref Preference) (domain.Coordinates, bool) {
	if raw == "" {
		return domain.Coordinates{}, false
	}

	segments := strings.Split(raw, "|")
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}

	coords := map[int]domain.Coordinates{}
	firstCoordIdx := -1
	for i, seg := range segments {
		c, ok := parseCoordToken(seg)
		if !ok {
			continue
		}
		coords[i] = c
		if firstCoordIdx < 0 {
			firstCoordIdx = i
		}
	}
	if len(coords) == 0 {
		return domain.Coordinates{}, false
	}

	stopIdx := -1
	for i, seg := range segments {
		if seg == "" || strings.Contains(seg, ";") {
			continue
		}
		if stopIDTokenRe.MatchString(seg) {
			stopIdx = i
			break
		}
	}

	if stopIdx >= 0 {
		for _, delta := range offsetsFor(pref) {
			if c, ok := coords[stopIdx+delta]; ok {
				return c, true
			}
		}
	}

	return coords[firstCoordIdx], true
}

// parseCoordToken parses a "lat;lng" token. Both halves must be numeric.
func parseCoordToken(seg string) (domain.Coordinates, bool) {
	if seg == "" || !strings.Contains(seg, ";") {
		return domain.Coordinates{}, false
	}
	parts := strings.SplitN(seg, ";", 2)
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return domain.Coordinates{}, false
	}
	return domain.Coordinates{Lat: lat, Lng: lng}, true
}

// PipeSegment returns the idx-th pipe-delimited segment of raw, trimmed,
// or "" when the segment is missing or empty. The upstream packs several
// identifiers into one field ("id|display|...") and the interesting part is
// usually segment 1.
func PipeSegment(raw string, idx int) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "|")
	if idx < 0 || idx >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[idx])
}

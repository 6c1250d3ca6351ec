// Package transit talks to the municipal transit service and decodes its
// loosely structured responses. The stop-status payload has no guaranteed
// shape beyond "contains zero or more line records somewhere in the tree",
// with inconsistent key naming and nesting depth, so matching works by
// breadth-first search over the untyped JSON tree plus fuzzy normalisation
// of line numbers.
package transit

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// lineKeyAliases are the field names the upstream has been observed to use
// for a line number, in probe order.
var lineKeyAliases = []string{"hatNo", "hat_no", "hat", "line", "hatKod", "hat_kod"}

// minuteKeyAliases are the field names observed for the countdown value.
var minuteKeyAliases = []string{
	"dakika", "sure", "kalanSure", "kalan_sure", "yaklasikDakika", "yaklasik_dakika", "minutes",
}

// statusKeyAliases are the field names observed for the vehicle presence flag.
var statusKeyAliases = []string{"arac_varmi", "aracVarMi", "vehicle", "durum", "status"}

// Canonical vehicle status values. Anything else the upstream sends is
// passed through upper-cased but otherwise unmodified.
const (
	StatusPresent = "VAR" // vehicle visible / approaching
	StatusAbsent  = "YOK" // vehicle absent from the stop's live feed
)

var signedIntRe = regexp.MustCompile(`-?\d+`)

// FindLine searches an untyped stop-status payload for the live record of
// the given line. Traversal is breadth-first from the root; at each object
// node the line-number aliases are probed and the candidate value is matched
// against the target under two independent normalisations (whitespace-strip
// upper-case, and digits-only). The first matching node wins.
func FindLine(payload any, lineCode string) (map[string]any, bool) {
	targets := lineTokens(lineCode)
	if len(targets) == 0 {
		return nil, false
	}

	queue := []any{payload}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		switch node := current.(type) {
		case map[string]any:
			var candidate string
			for _, key := range lineKeyAliases {
				if v, ok := node[key]; ok {
					if s := ExtractScalar(v); s != "" {
						candidate = s
						break
					}
				}
			}
			if candidate != "" && matchesAny(candidate, targets) {
				return node, true
			}
			for _, key := range sortedKeys(node) {
				if child := node[key]; isContainer(child) {
					queue = append(queue, child)
				}
			}
		case []any:
			for _, child := range node {
				if isContainer(child) {
					queue = append(queue, child)
				}
			}
		}
	}
	return nil, false
}

// ListLines collects every line number that appears anywhere in the payload,
// deduplicated, in traversal order. Used when a requested line cannot be
// matched, so the user can be told which lines the stop actually serves.
func ListLines(payload any) []string {
	var found []string
	seen := map[string]bool{}

	queue := []any{payload}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		switch node := current.(type) {
		case map[string]any:
			for _, key := range lineKeyAliases {
				if v, ok := node[key]; ok {
					if s := strings.TrimSpace(ExtractScalar(v)); s != "" && !seen[s] {
						seen[s] = true
						found = append(found, s)
					}
				}
			}
			for _, key := range sortedKeys(node) {
				if child := node[key]; isContainer(child) {
					queue = append(queue, child)
				}
			}
		case []any:
			for _, child := range node {
				if isContainer(child) {
					queue = append(queue, child)
				}
			}
		}
	}
	return found
}

// ExtractMinutes pulls the countdown minutes out of a matched line record.
// Purely numeric values are converted directly; free-text values yield the
// first embedded signed integer. Returns false when no alias holds a usable
// value.
func ExtractMinutes(node map[string]any) (int, bool) {
	for _, key := range minuteKeyAliases {
		v, ok := node[key]
		if !ok {
			continue
		}
		s := strings.TrimSpace(ExtractScalar(v))
		if s == "" {
			continue
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
		if m := signedIntRe.FindString(s); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// ExtractStatus pulls the vehicle presence flag out of a matched line
// record, upper-cased. StatusPresent and StatusAbsent are the recognised
// canonical values; any other non-empty value is passed through as-is.
func ExtractStatus(node map[string]any) (string, bool) {
	for _, key := range statusKeyAliases {
		v, ok := node[key]
		if !ok {
			continue
		}
		s := strings.ToUpper(strings.TrimSpace(ExtractScalar(v)))
		if s == "" {
			continue
		}
		return s, true
	}
	return "", false
}

// ExtractScalar flattens a value to its first scalar leaf. The upstream
// wraps the same field in a bare string in one response and a single-element
// array or object in the next, so callers never look at raw values directly.
func ExtractScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []any:
		if len(val) == 0 {
			return ""
		}
		return ExtractScalar(val[0])
	case map[string]any:
		keys := sortedKeys(val)
		if len(keys) == 0 {
			return ""
		}
		return ExtractScalar(val[keys[0]])
	default:
		return ""
	}
}

// lineTokens builds the set of normalised forms a candidate may match:
// the key form, the key form with dashes and spaces removed, and the
// digits-only form (when non-empty).
func lineTokens(lineCode string) []string {
	lineCode = strings.TrimSpace(lineCode)
	if lineCode == "" {
		return nil
	}

	var tokens []string
	add := func(t string) {
		if t == "" {
			return
		}
		for _, existing := range tokens {
			if existing == t {
				return
			}
		}
		tokens = append(tokens, t)
	}

	add(normalizeLineKey(lineCode))
	add(normalizeLineKey(strings.NewReplacer("-", "", " ", "").Replace(lineCode)))
	add(normalizeLineDigits(lineCode))
	return tokens
}

// matchesAny reports whether the candidate's key form or digits form equals
// any target token. The digits form only counts when non-empty, so a
// letters-only candidate can never match a digits-only target.
func matchesAny(candidate string, targets []string) bool {
	norm := normalizeLineKey(candidate)
	digits := normalizeLineDigits(candidate)
	for _, t := range targets {
		if t == norm || (digits != "" && t == digits) {
			return true
		}
	}
	return false
}

// normalizeLineKey strips all whitespace and upper-cases the value.
func normalizeLineKey(v string) string {
	return strings.ToUpper(strings.Join(strings.Fields(v), ""))
}

// normalizeLineDigits strips everything but ASCII digits.
func normalizeLineDigits(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// sortedKeys returns the map's keys in lexical order. JSON decoding into a
// map loses the document's key order, so traversal is made deterministic by
// sorting instead.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isContainer reports whether a decoded JSON value can hold children.
func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

package transit_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denizatli/hattakip/internal/transit"
)

// decode parses a JSON document into the untyped tree the matcher operates
// on, matching exactly what the upstream client hands it.
func decode(t *testing.T, doc string) any {
	t.Helper()
	var payload any
	require.NoError(t, json.Unmarshal([]byte(doc), &payload))
	return payload
}

func TestFindLine_MatchesAliasKeyAtAnyDepth(t *testing.T) {
	payload := decode(t, `{
		"sonuc": {
			"duraklar": [
				{"hat_no": "12", "dakika": "7"},
				{"hatlar": [{"hatNo": "22-M", "dakika": "4", "arac_varmi": "VAR"}]}
			]
		}
	}`)

	node, ok := transit.FindLine(payload, "22-M")
	require.True(t, ok)
	assert.Equal(t, "4", node["dakika"])
}

func TestFindLine_NormalisedForms(t *testing.T) {
	payload := decode(t, `[
		{"hatNo": "17", "dakika": "2"},
		{"hatNo": "22-M", "dakika": "4"}
	]`)

	// The dashless form matches via whitespace/dash-stripped normalisation.
	node, ok := transit.FindLine(payload, "22M")
	require.True(t, ok)
	assert.Equal(t, "4", node["dakika"])

	// A digits-only target matches because digit-normalising "22-M" gives "22".
	node, ok = transit.FindLine(payload, "22")
	require.True(t, ok)
	assert.Equal(t, "4", node["dakika"])

	// "220" digit-normalises to "220", which "22-M" must not match.
	_, ok = transit.FindLine(payload, "220")
	assert.False(t, ok)
}

func TestFindLine_CaseAndWhitespaceInsensitive(t *testing.T) {
	payload := decode(t, `{"hatlar": [{"hat": " 9 a "}]}`)

	_, ok := transit.FindLine(payload, "9A")
	assert.True(t, ok)
}

func TestFindLine_ScalarWrappedInArray(t *testing.T) {
	// The upstream sometimes wraps the line number in a single-element array.
	payload := decode(t, `[{"hatNo": ["31"], "sure": "12 dk"}]`)

	node, ok := transit.FindLine(payload, "31")
	require.True(t, ok)
	assert.Equal(t, "12 dk", node["sure"])
}

func TestFindLine_Misses(t *testing.T) {
	payload := decode(t, `[{"hatNo": "31"}]`)

	_, ok := transit.FindLine(payload, "")
	assert.False(t, ok, "empty target never matches")

	_, ok = transit.FindLine(nil, "31")
	assert.False(t, ok, "nil payload never matches")

	_, ok = transit.FindLine(payload, "32")
	assert.False(t, ok)
}

func TestFindLine_BreadthFirstPrefersShallowerNode(t *testing.T) {
	payload := decode(t, `{
		"deep": {"nested": {"further": {"hatNo": "5", "dakika": "99"}}},
		"shallow": {"hatNo": "5", "dakika": "3"}
	}`)

	node, ok := transit.FindLine(payload, "5")
	require.True(t, ok)
	assert.Equal(t, "3", node["dakika"], "the shallower record should win")
}

func TestExtractMinutes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int
		ok   bool
	}{
		{"numeric string", `{"dakika": "7"}`, 7, true},
		{"numeric value", `{"dakika": 7}`, 7, true},
		{"alternate alias", `{"kalanSure": "12"}`, 12, true},
		{"embedded in text", `{"sure": "yaklasik 15 dk"}`, 15, true},
		{"negative embedded", `{"sure": "-2 dk"}`, -2, true},
		{"zero", `{"dakika": "0"}`, 0, true},
		{"no alias", `{"baska": "7"}`, 0, false},
		{"empty value", `{"dakika": ""}`, 0, false},
		{"no digits", `{"dakika": "birazdan"}`, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			node, _ := decode(t, tc.doc).(map[string]any)
			got, ok := transit.ExtractMinutes(node)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestExtractMinutes_FirstAliasWins(t *testing.T) {
	node, _ := decode(t, `{"dakika": "3", "minutes": "8"}`).(map[string]any)
	got, ok := transit.ExtractMinutes(node)
	require.True(t, ok)
	assert.Equal(t, 3, got)
}

func TestExtractStatus(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
		ok   bool
	}{
		{"canonical present", `{"arac_varmi": "VAR"}`, "VAR", true},
		{"canonical absent", `{"arac_varmi": "YOK"}`, "YOK", true},
		{"lower-cased upstream", `{"durum": "var"}`, "VAR", true},
		{"camel alias", `{"aracVarMi": "YOK"}`, "YOK", true},
		{"unknown value passed through", `{"status": "gecikme"}`, "GECIKME", true},
		{"no alias", `{"x": "VAR"}`, "", false},
		{"empty value skipped", `{"durum": ""}`, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			node, _ := decode(t, tc.doc).(map[string]any)
			got, ok := transit.ExtractStatus(node)
			require.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractScalar(t *testing.T) {
	assert.Equal(t, "22-M", transit.ExtractScalar("22-M"))
	assert.Equal(t, "7", transit.ExtractScalar(float64(7)))
	assert.Equal(t, "3.5", transit.ExtractScalar(float64(3.5)))
	assert.Equal(t, "true", transit.ExtractScalar(true))
	assert.Equal(t, "", transit.ExtractScalar(nil))
	assert.Equal(t, "first", transit.ExtractScalar([]any{"first", "second"}))
	assert.Equal(t, "", transit.ExtractScalar([]any{}))
	assert.Equal(t, "nested", transit.ExtractScalar([]any{[]any{"nested"}}))
}

func TestListLines_CollectsAndDeduplicates(t *testing.T) {
	payload := decode(t, `{
		"hatlar": [
			{"hatNo": "12"},
			{"hatNo": "22-M"},
			{"hat_no": "12"},
			{"hatNo": ""}
		]
	}`)

	lines := transit.ListLines(payload)
	assert.ElementsMatch(t, []string{"12", "22-M"}, lines)
}

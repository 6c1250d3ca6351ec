package transit

import (
	"strconv"
	"strings"

	"github.com/denizatli/hattakip/internal/domain"
)

// ParseRouteAlternative decodes one route object from the planner response
// into a RouteAlternative. Field values are pipe-encoded ("code|display|..."),
// and the coordinate preference per segment compensates for the upstream
// ordering its tokens differently in origin and destination strings:
// boarding coordinates are decoded from the destination segment preferring
// the token before the stop id, destination coordinates from the boarding
// segment preferring the token after it. Observed behaviour, kept as-is.
func ParseRouteAlternative(route map[string]any) domain.RouteAlternative {
	rawLine := ExtractScalar(route["hatNo"])
	lineDisplay := PipeSegment(rawLine, 1)
	if lineDisplay == "" {
		lineDisplay = strings.TrimSpace(rawLine)
	}

	lineCode := lineDisplay
	if lineCode == "" {
		lineCode = strings.TrimSpace(rawLine)
	}

	rawStart := ExtractScalar(route["baslamaDurak"])
	rawDest := ExtractScalar(route["bitisDurak"])

	alt := domain.RouteAlternative{
		Solution:     strings.TrimSpace(ExtractScalar(route["cozum"])),
		LineCode:     lineCode,
		LineDisplay:  lineDisplay,
		LineName:     PipeSegment(ExtractScalar(route["hatAdi"]), 1),
		StopID:       PipeSegment(rawStart, 1),
		StopName:     PipeSegment(ExtractScalar(route["baslamaDurakAd"]), 1),
		DestStopID:   PipeSegment(rawDest, 1),
		DestStopName: PipeSegment(ExtractScalar(route["bitisDurakAd"]), 1),
	}

	if c, ok := DecodeCoordinates(rawDest, PreferBefore); ok {
		alt.StopCoords = &c
	}
	if c, ok := DecodeCoordinates(rawStart, PreferAfter); ok {
		alt.DestCoords = &c
	}
	return alt
}

// LiveETAFromNode computes the live snapshot for a matched line record:
// countdown minutes, presence status, and a compact summary line.
func LiveETAFromNode(node map[string]any) domain.LiveETA {
	eta := domain.LiveETA{}
	if m, ok := ExtractMinutes(node); ok {
		eta.Minutes = &m
	}
	if s, ok := ExtractStatus(node); ok {
		eta.Status = s
	}
	eta.Text = FormatLineInfo(node)
	return eta
}

// FormatLineInfo renders a matched line record as a compact pipe-separated
// summary ("Hat 22-M | Kalan süre: 4 dk | Araç şu an görünüyor").
func FormatLineInfo(node map[string]any) string {
	var parts []string

	lineNo := ExtractScalar(node["hat_no"])
	if lineNo == "" {
		lineNo = ExtractScalar(node["hatNo"])
	}
	if lineNo != "" {
		parts = append(parts, "Hat "+lineNo)
	}

	if m, ok := ExtractMinutes(node); ok {
		parts = append(parts, "Kalan süre: "+strconv.Itoa(m)+" dk")
	}

	if status, ok := ExtractStatus(node); ok {
		switch status {
		case StatusPresent:
			parts = append(parts, "Araç şu an görünüyor")
		case StatusAbsent:
			parts = append(parts, "Araç henüz görünmüyor")
		default:
			parts = append(parts, "Durum: "+status)
		}
	}

	for _, key := range []string{"saat", "planlananSaat", "kalkisSaati", "planlanan_saat", "time"} {
		if v, ok := node[key]; ok {
			if s := ExtractScalar(v); s != "" {
				parts = append(parts, "Planlanan saat: "+s)
				break
			}
		}
	}

	for _, key := range []string{"aciklama", "message", "detay"} {
		if v, ok := node[key]; ok {
			if s := ExtractScalar(v); s != "" {
				parts = append(parts, "Not: "+s)
				break
			}
		}
	}

	return strings.Join(parts, " | ")
}

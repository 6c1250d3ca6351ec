package transit

import (
	"sort"
	"strings"

	"github.com/denizatli/hattakip/internal/domain"
)

// ParseBusLines decodes the line-catalogue payload into BusLine records.
// Entries without a line number or direction are dropped; the rest are
// sorted by number and direction. Field values go through ExtractScalar
// because the upstream wraps them inconsistently.
func ParseBusLines(payload any) []domain.BusLine {
	items, ok := payload.([]any)
	if !ok {
		return nil
	}

	lines := []domain.BusLine{}
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		no := strings.TrimSpace(ExtractScalar(entry["hat_no"]))
		direction := strings.TrimSpace(ExtractScalar(entry["hat_yon"]))
		if no == "" || direction == "" {
			continue
		}
		lines = append(lines, domain.BusLine{
			Post:      no + "-" + direction,
			LineNo:    no,
			Direction: direction,
			Name:      strings.TrimSpace(ExtractScalar(entry["hat_adi"])),
			Region:    strings.TrimSpace(ExtractScalar(entry["bolge"])),
		})
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].LineNo+lines[i].Direction < lines[j].LineNo+lines[j].Direction
	})
	return lines
}

// ParseSchedule groups a timetable payload by day label. Entries without a
// departure time are dropped; a missing day label groups under "Diğer".
// Each group is sorted by departure time.
func ParseSchedule(payload any) map[string][]domain.ScheduleEntry {
	items, ok := payload.([]any)
	if !ok {
		return nil
	}

	grouped := map[string][]domain.ScheduleEntry{}
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		departure := strings.TrimSpace(ExtractScalar(entry["saat"]))
		if departure == "" {
			continue
		}
		day := strings.TrimSpace(ExtractScalar(entry["tarife_gun"]))
		if day == "" {
			day = "Diğer"
		}
		grouped[day] = append(grouped[day], domain.ScheduleEntry{
			Time:  departure,
			Title: strings.TrimSpace(ExtractScalar(entry["baslik"])),
			Note:  strings.TrimSpace(ExtractScalar(entry["tarife_not"])),
			Desc:  strings.TrimSpace(ExtractScalar(entry["aciklama"])),
		})
	}

	for _, entries := range grouped {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Time < entries[j].Time
		})
	}
	if len(grouped) == 0 {
		return nil
	}
	return grouped
}

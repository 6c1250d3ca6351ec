package domain

import "time"

// BusLine is one entry of the municipal line catalogue: a line number plus
// the direction it runs in. The catalogue is refreshed wholesale from the
// upstream service; Post is the upstream's composite key ("<no>-<direction>")
// and what callback buttons carry.
type BusLine struct {
	Post      string `json:"post"`
	LineNo    string `json:"line_no"`
	Direction string `json:"direction"`
	Name      string `json:"name"`
	Region    string `json:"region"`
}

// Label renders the line the way chat menus show it:
// "<no>-<direction> <name> (<region>)", with empty parts dropped.
func (l BusLine) Label() string {
	label := l.LineNo + "-" + l.Direction
	if l.Name != "" {
		label += " " + l.Name
	}
	if l.Region != "" {
		label += " (" + l.Region + ")"
	}
	return label
}

// ScheduleEntry is one departure of a line's timetable: the departure time
// plus the upstream's free-text qualifiers (a title like "Geç Sefer", an
// operational note, an interval description in minutes).
type ScheduleEntry struct {
	Time  string
	Title string
	Note  string
	Desc  string
}

// AuthorizedUser is one entry of the access list: the bot only serves chat
// IDs that appear here. Managed through the admin API, not through the bot.
type AuthorizedUser struct {
	TelegramID int64     `json:"telegram_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

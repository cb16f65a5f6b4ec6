package commands

import "time"

func mention(id string) string {
	return "<@" + id + ">"
}

func statusMark(active bool) string {
	if active {
		return "[active]"
	}
	return "[x]"
}

func expiryText(ts *time.Time, none string) string {
	if ts == nil {
		return none
	}
	return ts.UTC().Format(time.DateOnly)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

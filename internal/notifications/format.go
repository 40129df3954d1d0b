package notifications

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf16"

	"fricon-core/internal/models"
)

// Run is one piece of notification text.
type Run struct {
	Text string `json:"text"`
	Bold bool   `json:"bold"`
}

// Highlight splits content into alternating plain and bold runs. Offsets and
// lengths count UTF-16 code units of the trimmed content, as the backend
// computes them. Out-of-range spans are clamped and overlaps are not repeated.
func Highlight(content string, spans []models.Highlight) []Run {
	units := utf16.Encode([]rune(strings.TrimSpace(content)))
	sorted := append([]models.Highlight(nil), spans...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	clamp := func(n int) int {
		if n < 0 {
			return 0
		}
		if n > len(units) {
			return len(units)
		}
		return n
	}
	slice := func(from, to int) string {
		return string(utf16.Decode(units[from:to]))
	}

	var runs []Run
	cursor := 0
	for _, span := range sorted {
		start := clamp(span.Offset)
		end := clamp(span.Offset + span.Length)
		if start < cursor {
			start = cursor
		}
		if start >= end {
			continue
		}
		if cursor < start {
			runs = append(runs, Run{Text: slice(cursor, start)})
		}
		runs = append(runs, Run{Text: slice(start, end), Bold: true})
		cursor = end
	}
	if cursor < len(units) {
		runs = append(runs, Run{Text: slice(cursor, len(units))})
	}
	return runs
}

// RelativeTime renders the age of t: minutes under an hour, hours under a
// day, days up to a week, then the calendar date.
func RelativeTime(now, t time.Time) string {
	elapsed := now.Sub(t)
	if elapsed < 0 {
		elapsed = 0
	}
	switch minutes := int(elapsed / time.Minute); {
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm", minutes)
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh", int(elapsed/time.Hour))
	case elapsed < 8*24*time.Hour:
		return fmt.Sprintf("%dd", int(elapsed/(24*time.Hour)))
	default:
		return t.In(now.Location()).Format("02/01/2006")
	}
}

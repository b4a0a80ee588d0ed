package cli

import (
	"strings"
	"time"
	"unicode"

	"github.com/phantodev/oficinas-chat/internal/models"
)

// nowFunc is swappable in tests.
var nowFunc = time.Now

// displayName derives a readable name from a participant's email: the local
// part with separators turned into spaces and words capitalized. Falls back
// to the record id when no email is known.
func displayName(c models.Conversation) string {
	if c.OtherParticipantEmail == "" {
		return c.OtherParticipant.String()
	}
	local := c.OtherParticipantEmail
	if at := strings.IndexByte(local, '@'); at > 0 {
		local = local[:at]
	}
	local = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(local)

	words := strings.Fields(local)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	if len(words) == 0 {
		return c.OtherParticipantEmail
	}
	return strings.Join(words, " ")
}

// initials returns up to two uppercase initials for the avatar placeholder.
func initials(name string) string {
	words := strings.Fields(name)
	var b strings.Builder
	for i, w := range words {
		if i == 2 {
			break
		}
		b.WriteRune(unicode.ToUpper([]rune(w)[0]))
	}
	if b.Len() == 0 {
		return "?"
	}
	return b.String()
}

// dayLabel buckets a timestamp for thread day separators: Today, Yesterday,
// the weekday name within the last week, otherwise the full date.
func dayLabel(at, now time.Time) string {
	y1, m1, d1 := at.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return "Today"
	}

	yesterday := now.AddDate(0, 0, -1)
	y3, m3, d3 := yesterday.Date()
	if y1 == y3 && m1 == m3 && d1 == d3 {
		return "Yesterday"
	}

	if now.Sub(at) < 7*24*time.Hour {
		return at.Weekday().String()
	}
	return at.Format("02 Jan 2006")
}

// sameDay reports whether two timestamps fall on the same calendar day.
func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// clockTime formats a message timestamp for display inside a thread.
func clockTime(at time.Time) string {
	return at.Format("15:04")
}

// preview shortens the last-message text for the conversation list.
func preview(text string, max int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-1]) + "…"
}

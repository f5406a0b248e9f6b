// Package quote picks the motivational line shown under today's habits.
package quote

import "time"

var quotes = []string{
	"Small daily improvements are the key to staggering long-term results.",
	"Habits are the compound interest of self-improvement.",
	"We are what we repeatedly do. Excellence, then, is not an act, but a habit.",
	"The secret of getting ahead is getting started.",
	"Your daily habits define your future self.",
	"The only way to do great work is to love what you do.",
	"Success is the sum of small efforts, repeated day in and day out.",
}

// ForDate returns the same quote for every moment of a calendar day.
func ForDate(t time.Time) string {
	return quotes[t.YearDay()%len(quotes)]
}

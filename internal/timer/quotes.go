package timer

import "math/rand"

var quotes = []string{
	"They're replying. To someone else.",
	"Nobody showers for three hours.",
	"Maybe the phone fell in the toilet.",
	"Stop waiting, it's going stale.",
	"Your message has entered a black hole.",
	"They're busy ignoring you.",
	"Consider booking yourself a checkup.",
	"Time doesn't lie. People do.",
	"A new personal record in humility.",
	"Burn some incense for them over there.",
	"The highest form of brushing off is not replying.",
	"Think they fell asleep?",
	"Probably chatting with someone else.",
	"Your hopes have expired.",
	"Live broadcast from a social death scene.",
}

// RandomQuote picks one of the rotating status lines
func RandomQuote() string {
	if len(quotes) == 0 {
		return "..."
	}
	return quotes[rand.Intn(len(quotes))]
}

// Quotes returns a copy of the rotating status lines
func Quotes() []string {
	return append([]string(nil), quotes...)
}

package login

import "math/rand"

// quotes is the fixed notification pool a successful login draws one
// line from for the closing welcome notification.
var quotes = []string{
	"Welcome back.",
	"Good luck, have fun.",
	"Remember to stay hydrated.",
	"osu! is a rhythm game.",
	"Check #announce for server news.",
}

func randomQuote() string {
	return quotes[rand.Intn(len(quotes))]
}

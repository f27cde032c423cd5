// Package bot implements the built-in chat bot's command table, used
// by the dispatch package when a message begins with "!".
package bot

import (
	"fmt"
	"strings"

	"github.com/onecho/banchod/internal/bancho/model"
)

// Reply is a bot command's result.
type Reply struct {
	// Visible, when true, is broadcast to the whole channel as the
	// bot; otherwise it is sent only back to the invoking sender.
	Visible bool
	Text    string
}

// Lookup resolves a user by username_safe for command handlers that
// take a target user, e.g. "!where" and "!stats".
type Lookup func(usernameSafe string) (*model.Session, bool)

// Handle evaluates a "!command args..." message and returns its
// reply. Unknown commands return the fixed "Command not found." text,
// same as a failed private-message dispatch to the bot.
func Handle(sender *model.Session, message string, lookup Lookup, roll func(max int) int) Reply {
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return Reply{Text: "Command not found."}
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "!help":
		return Reply{Text: "Available commands: !help, !roll [max], !where <user>, !stats [user]"}

	case "!roll":
		max := 100
		if len(args) > 0 {
			if n, err := parseUint(args[0]); err == nil && n > 0 {
				max = n
			}
		}
		return Reply{Visible: true, Text: fmt.Sprintf("%s rolls %d point(s)", sender.Username, roll(max)+1)}

	case "!where":
		if len(args) == 0 {
			return Reply{Text: "Usage: !where <user>"}
		}
		target, ok := lookup(normalize(args[0]))
		if !ok {
			return Reply{Text: "User not found."}
		}
		return Reply{Text: fmt.Sprintf("%s is %s", target.Username, target.Status.ActionText)}

	case "!stats":
		target := sender
		if len(args) > 0 {
			t, ok := lookup(normalize(args[0]))
			if !ok {
				return Reply{Text: "User not found."}
			}
			target = t
		}
		stats := target.Stats[target.Status.Mode]
		return Reply{Text: fmt.Sprintf("%s: rank #%d, %.2fpp, %.2f%% acc", target.Username, stats.Rank, float64(stats.PP), stats.Accuracy)}

	default:
		return Reply{Text: "Command not found."}
	}
}

func normalize(username string) string {
	return strings.ReplaceAll(strings.ToLower(username), " ", "_")
}

func parseUint(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a number")
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

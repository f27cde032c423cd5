// Package bootstrap prints the one-time startup banner: ASCII art,
// version/build info, and the listening addresses, using go-logging's
// colored console backend since this is pre-request console output
// rather than a structured log line destined for a collector.
package bootstrap

import (
	"fmt"
	"os"

	"github.com/op/go-logging"
)

var console = logging.MustGetLogger("banchod")

func init() {
	backend := logging.NewLogBackend(os.Stdout, "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(
		`%{color}%{message}%{color:reset}`,
	))
	logging.SetBackend(formatted)
}

const art = `
  _                     _               _
 | |__   __ _ _ __   ___| |__   ___   __| |
 | '_ \ / _' | '_ \ / __| '_ \ / _ \ / _' |
 | |_) | (_| | | | | (__| | | | (_) | (_| |
 |_.__/ \__,_|_| |_|\___|_| |_|\___/ \__,_|
`

// PrintBanner writes the ASCII banner followed by the given startup
// facts, one per line, in "key: value" form.
func PrintBanner(version, gitCommit string, facts map[string]string) {
	console.Infof("%s", art)
	console.Infof("banchod %s (%s)", version, gitCommit)
	for k, v := range facts {
		fmt.Fprintf(os.Stdout, "  %s: %s\n", k, v)
	}
}

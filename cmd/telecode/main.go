// telecode is a single-user remote-control gateway: it lets one authorized
// phone drive git, the AI editor, and file reads on this machine, with every
// request passing an access gate before anything executes.
package main

import (
	"fmt"
	"os"

	"github.com/flexfinRTP/telecode/internal/securemem"
)

func main() {
	securemem.Init()
	defer securemem.Purge()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		securemem.Purge()
		os.Exit(1)
	}
}

// Command screener runs the Gmail screening pipeline: it searches the
// mailbox with the configured criteria, extracts financially relevant
// content from the matching messages, renders a PDF report, forwards it
// as an attachment and marks the processed messages as read.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iabouzeid/gmailscreener/pkg/logging"
)

func main() {
	logger := logging.Setup(logging.DefaultConfig())

	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runScreener(logger)
	case "setup":
		fs := flag.NewFlagSet("setup", flag.ExitOnError)
		force := fs.Bool("force", false, "force re-authentication")
		if err = fs.Parse(args); err == nil {
			err = runSetup(logger, *force)
		}
	case "status":
		err = runStatus()
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("run aborted", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func usage(w *os.File) {
	fmt.Fprintln(w, "usage: screener [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  run     search, screen and forward matching emails (default)")
	fmt.Fprintln(w, "  setup   run the OAuth authentication flow")
	fmt.Fprintln(w, "  status  check configuration and connectivity")
}

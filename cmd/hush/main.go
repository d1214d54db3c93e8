// Command hush hides unwanted posts on realtime search pages and keeps the
// hide list across sessions.
package main

import (
	"errors"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Options are shared by every command.
type Options struct {
	Config  string `long:"config" short:"c" env:"HUSH_CONFIG" description:"Config file (default ~/.hush/config.json)"`
	DataDir string `long:"data-dir" description:"Directory for the hide list, logs and events"`
	Debug   bool   `long:"debug" description:"Enable debug logging"`
}

// newParser registers every command. Command output goes to out.
func newParser(opts *Options, out io.Writer) *flags.Parser {
	parser := flags.NewParser(opts, flags.Default)
	parser.ShortDescription = "hush " + Version
	parser.LongDescription = "Hide posts and authors on realtime search pages, persistently."

	add := func(name, short, long string, cmd any) {
		if _, err := parser.AddCommand(name, short, long, cmd); err != nil {
			panic(err)
		}
	}

	add("run", "Open a page snapshot in the interactive hider",
		"Reconciles the page, follows the file for new items and lets you hide authors or posts.",
		&runCmd{opts: opts})
	add("apply", "Reconcile a page once and write the result",
		"Runs one reconciliation pass over a saved page or feed and writes the cleaned document.",
		&applyCmd{opts: opts, out: out})
	add("analyze", "Report the structure of a saved page",
		"Prints selector match counts, marker strings, frequent class names and an outline.",
		&analyzeCmd{opts: opts, out: out})
	add("list", "Show the hide list", "", &listCmd{opts: opts, out: out})
	add("block", "Hide every post by the given authors", "", &blockCmd{opts: opts, out: out})
	add("unhide", "Stop hiding the given authors", "", &unhideCmd{opts: opts, out: out})
	add("restore", "Stop hiding the given post ids", "", &restoreCmd{opts: opts, out: out})
	add("export", "Write the hide list as JSON", "", &exportCmd{opts: opts, out: out})
	add("import", "Replace the hide list from a JSON export", "", &importCmd{opts: opts, out: out})
	add("clear", "Empty the hide list", "", &clearCmd{opts: opts, out: out})
	return parser
}

func main() {
	var opts Options
	parser := newParser(&opts, os.Stdout)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

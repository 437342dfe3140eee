// Command isoburn is a thin CLI over the Medium Classifier, Image Loader,
// Update Engine, and Write Planner: it opens an ISO 9660 image (optionally
// multi-session), reports on it, compares it against a host directory,
// reconciles the two (optionally writing the result as a new session), or
// extracts the image's files back out to disk.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bgrewell/usage"
	"github.com/theckman/yacspin"
	"golang.org/x/term"

	"github.com/rstms/isoburn/pkg/logging"
	"github.com/rstms/isoburn/pkg/version"
)

func main() {
	if len(os.Args) < 2 {
		printTopLevelUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "info":
		err = runInfo(args)
	case "diff":
		err = runDiff(args)
	case "sync":
		err = runSync(args)
	case "commit":
		err = runCommit(args)
	case "extract":
		err = runExtract(args)
	case "-h", "--help", "help":
		printTopLevelUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "isoburn: unknown command %q\n\n", cmd)
		printTopLevelUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "isoburn %s: %s\n", cmd, err)
		os.Exit(1)
	}
}

func printTopLevelUsage() {
	fmt.Fprintf(os.Stderr, `isoburn %s (%s, %s)

usage: isoburn <command> [options]

commands:
  info     report volume and extension information for an image
  diff     report how a host directory and an image would reconcile
  sync     reconcile an image's loaded tree against a host directory
  commit   reconcile against a host directory and write the result as a new session
  extract  extract an image's files to a host directory

Run "isoburn <command> -h" for command-specific options.
`, version.Version(), version.Branch(), version.Revision())
}

// setSubArgs rewrites os.Args so a subcommand's bgrewell/usage.Usage parses
// only its own flags and positional arguments, not the leading subcommand
// word main dispatched on. usage.Usage parses the process's os.Args
// directly, with no API to hand it an explicit slice, so this is done
// in-place before constructing the Usage.
func setSubArgs(name string, args []string) {
	os.Args = append([]string{os.Args[0] + " " + name}, args...)
}

// newSubUsage builds a bgrewell/usage instance for one subcommand, carrying
// the build identification (version, branch, build date, commit hash) from
// pkg/version.
func newSubUsage(name, description string) *usage.Usage {
	return usage.NewUsage(
		usage.WithApplicationVersion(version.Version()),
		usage.WithApplicationBranch(version.Branch()),
		usage.WithApplicationBuildDate(version.Date()),
		usage.WithApplicationCommitHash(version.Revision()),
		usage.WithApplicationName("isoburn "+name),
		usage.WithApplicationDescription(description),
	)
}

// isTerminal reports whether stderr is an interactive terminal, used to
// decide whether a yacspin progress spinner is worth showing (noise, or
// worse, when output is piped or redirected).
func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// newLogger builds the ambient logr-backed logger used across subcommands.
// isTerminal's result is passed as useColor, which SimpleLogSink does not
// consult; label colors follow fatih/color's own check of stdout.
func newLogger(verbose bool) *logging.Logger {
	level := logging.LEVEL_INFO
	if verbose {
		level = logging.LEVEL_TRACE
	}
	return logging.NewLogger(logging.NewSimpleLogger(os.Stderr, level, isTerminal()))
}

// withSpinner runs work under a yacspin spinner labeled message, falling
// back to running it plain when stderr isn't a terminal (yacspin itself
// handles this too, but skipping construction avoids a spinner object with
// nothing to draw against).
func withSpinner(message string, work func() error) error {
	if !isTerminal() {
		return work()
	}

	cfg := yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[9],
		Suffix:            " " + message,
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	}
	spinner, err := yacspin.New(cfg)
	if err != nil {
		// A spinner we can't construct is cosmetic only; run the work anyway.
		return work()
	}
	if err := spinner.Start(); err != nil {
		return work()
	}

	if err := work(); err != nil {
		_ = spinner.StopFail()
		return err
	}
	return spinner.Stop()
}

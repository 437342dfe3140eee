package main

import (
	"fmt"
	"os"

	"github.com/rstms/isoburn/pkg/medium"
	"github.com/rstms/isoburn/pkg/session"
	"github.com/rstms/isoburn/pkg/update"
	"github.com/rstms/isoburn/pkg/writer"
)

func runCommit(args []string) error {
	setSubArgs("commit", args)
	u := newSubUsage("commit", "Reconcile an image's loaded tree against a host directory and write the result as a new session.")
	help := u.AddBooleanOption("h", "help", false, "Show this help message", "", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print verbose logging", "", nil)
	merge := u.AddBooleanOption("", "merge", false, "Update-merge mode: mark visited nodes instead of removing unmatched image nodes", "", nil)
	quickMD5 := u.AddBooleanOption("", "quick-md5", false, "Compare the disk file's MD5 with the image's recorded MD5 instead of comparing content chunk by chunk", "", nil)
	volID := u.AddStringOption("", "volid", "", "Volume identifier for the written session", "", nil)
	noTruncate := u.AddBooleanOption("", "no-truncate", false, "Do not truncate a regular-file backend to the new size", "", nil)
	noEmulTOC := u.AddBooleanOption("", "no-emul-toc", false, "Do not maintain the LBA 0 emulated table of contents", "", nil)
	image := u.AddArgument(1, "image-path", "Path to the image file to reconcile and write", "")
	dir := u.AddArgument(2, "dir", "Host directory to reconcile from", "")

	if !u.Parse() {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}
	if *help {
		u.PrintUsage()
		os.Exit(0)
	}
	if image == nil || *image == "" || dir == nil || *dir == "" {
		return fmt.Errorf("both image-path and dir are required")
	}

	logger := newLogger(*verbose)
	s, err := session.Open(*image, medium.ProfileCDR, nil, medium.Flags{}, defaultReadOptions(), logger)
	if err != nil {
		return err
	}
	defer s.Close()

	compare := defaultCompareOptions()
	compare.MD5QuickMode = *quickMD5

	var results []update.Result
	err = withSpinner("reconciling", func() error {
		var runErr error
		results, runErr = s.Sync(*dir, session.DiffOptions{
			Walk:    defaultWalkOptions(),
			Compare: compare,
			Mode:    update.Mode{Merge: *merge},
		})
		return runErr
	})
	if err != nil {
		return err
	}
	printResults(results)

	var result *writer.CommitResult
	err = withSpinner("writing session", func() error {
		var commitErr error
		result, commitErr = s.Commit(session.CommitOptions{
			Serializer: writer.PlainSerializer{VolumeIdentifier: *volID},
			Overrides: writer.Overrides{
				Truncate: !*noTruncate,
				EmulTOC:  !*noEmulTOC,
			},
			FirstSessionStartLBA: firstSessionStartLBA(s),
		})
		return commitErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("wrote %d blocks at LBA %d (%s)\n", result.Written, result.Plan.StartLBA, result.Plan.WriteType)
	return nil
}

// firstSessionStartLBA returns the start of the image's first session, used
// to stage the existing emul-toc header before a multi-session commit
// overwrites it. A blank or single-session-only medium has no prior header
// worth preserving, so 0 is a safe default: StageHeader is only consulted
// when the resulting plan actually calls for EmulTOC.
func firstSessionStartLBA(s *session.Session) uint32 {
	if s.Classified == nil || s.Classified.TOC == nil {
		return 0
	}
	entries := s.Classified.TOC.Entries()
	if len(entries) == 0 {
		return 0
	}
	return entries[0].StartLBA
}

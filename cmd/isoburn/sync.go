package main

import (
	"fmt"
	"os"

	"github.com/rstms/isoburn/pkg/medium"
	"github.com/rstms/isoburn/pkg/session"
	"github.com/rstms/isoburn/pkg/update"
)

func runSync(args []string) error {
	setSubArgs("sync", args)
	u := newSubUsage("sync", "Reconcile an image's loaded tree against a host directory, applying the policy matrix.")
	help := u.AddBooleanOption("h", "help", false, "Show this help message", "", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print verbose logging", "", nil)
	merge := u.AddBooleanOption("", "merge", false, "Update-merge mode: mark visited nodes instead of removing unmatched image nodes", "", nil)
	quickMD5 := u.AddBooleanOption("", "quick-md5", false, "Compare the disk file's MD5 with the image's recorded MD5 instead of comparing content chunk by chunk", "", nil)
	image := u.AddArgument(1, "image-path", "Path to the image file to reconcile against", "")
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
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/rstms/isoburn/pkg/medium"
	"github.com/rstms/isoburn/pkg/session"
	"github.com/rstms/isoburn/pkg/update"
)

func runDiff(args []string) error {
	setSubArgs("diff", args)
	u := newSubUsage("diff", "Report how a host directory and an image would reconcile, without changing either.")
	help := u.AddBooleanOption("h", "help", false, "Show this help message", "", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print verbose logging", "", nil)
	quickMD5 := u.AddBooleanOption("", "quick-md5", false, "Compare the disk file's MD5 with the image's recorded MD5 instead of comparing content chunk by chunk", "", nil)
	image := u.AddArgument(1, "image-path", "Path to the image file to compare against", "")
	dir := u.AddArgument(2, "dir", "Host directory to compare", "")

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
	err = withSpinner("comparing", func() error {
		var runErr error
		results, runErr = s.Diff(*dir, session.DiffOptions{
			Walk:    defaultWalkOptions(),
			Compare: compare,
		})
		return runErr
	})
	if err != nil {
		return err
	}

	printResults(results)
	return nil
}

func printResults(results []update.Result) {
	for _, r := range results {
		if r.Mask == 0 {
			continue
		}
		fmt.Printf("%-8s %-40s %v\n", r.Action, r.Path, r.Mask.Names())
	}
}

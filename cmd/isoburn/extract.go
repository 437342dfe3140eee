package main

import (
	"fmt"
	"os"

	"github.com/rstms/isoburn/pkg/medium"
	"github.com/rstms/isoburn/pkg/session"
)

func runExtract(args []string) error {
	setSubArgs("extract", args)
	u := newSubUsage("extract", "Extract every file in an image's loaded tree to a host directory, in LBA order.")
	help := u.AddBooleanOption("h", "help", false, "Show this help message", "", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print verbose logging", "", nil)
	image := u.AddArgument(1, "image-path", "Path to the image file to extract", "")
	dest := u.AddArgument(2, "dest", "Destination directory", "")

	if !u.Parse() {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}
	if *help {
		u.PrintUsage()
		os.Exit(0)
	}
	if image == nil || *image == "" || dest == nil || *dest == "" {
		return fmt.Errorf("both image-path and dest are required")
	}

	logger := newLogger(*verbose)
	s, err := session.Open(*image, medium.ProfileCDR, nil, medium.Flags{}, defaultReadOptions(), logger)
	if err != nil {
		return err
	}
	defer s.Close()

	return withSpinner("extracting", func() error {
		return s.Extract(*dest)
	})
}

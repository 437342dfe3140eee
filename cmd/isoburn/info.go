package main

import (
	"fmt"
	"os"

	"github.com/rstms/isoburn/pkg/medium"
	"github.com/rstms/isoburn/pkg/nodetree"
	"github.com/rstms/isoburn/pkg/session"
)

func runInfo(args []string) error {
	setSubArgs("info", args)
	u := newSubUsage("info", "Report volume and extension information for an ISO 9660 image.")
	help := u.AddBooleanOption("h", "help", false, "Show this help message", "", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print the image tree and enable verbose logging", "", nil)
	path := u.AddArgument(1, "image-path", "Path to the image file, or a block device", "")

	if !u.Parse() {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}
	if *help {
		u.PrintUsage()
		os.Exit(0)
	}
	if path == nil || *path == "" {
		return fmt.Errorf("image-path is required")
	}

	logger := newLogger(*verbose)
	s, err := session.Open(*path, medium.ProfileCDR, nil, medium.Flags{}, defaultReadOptions(), logger)
	if err != nil {
		return err
	}
	defer s.Close()

	dirs, files := countTree(s.Tree.Root())

	fmt.Println("=== Image Information ===")
	fmt.Printf("Path:            %s\n", *path)
	fmt.Printf("Profile:         0x%02x\n", s.Classified.Profile)
	fmt.Printf("Status:          %s\n", s.Classified.Status)
	fmt.Printf("Fabricated TOC:  %v\n", s.Classified.Fabricated)
	fmt.Printf("Next Writable:   %d\n", s.Classified.NWA)
	fmt.Printf("Image Size:      %d sectors\n", s.Found.ImageSize)
	fmt.Printf("Directories:     %d\n", dirs)
	fmt.Printf("Files:           %d\n", files)
	fmt.Println()
	fmt.Println("=== Extensions ===")
	fmt.Printf("Rock Ridge:      %v\n", s.Found.RockRidge)
	fmt.Printf("Joliet:          %v\n", s.Found.Joliet)
	fmt.Printf("ISO 9660:1999:   %v\n", s.Found.ISO1999)
	fmt.Printf("El Torito:       %v\n", s.Found.ElTorito)

	if *verbose {
		fmt.Println()
		fmt.Println("=== Tree ===")
		printTree(s.Tree.Root(), "")
	}
	return nil
}

func countTree(root *nodetree.Node) (dirs, files int) {
	var walk func(n *nodetree.Node)
	walk = func(n *nodetree.Node) {
		if !n.IsRoot() {
			if n.IsDir() {
				dirs++
			} else {
				files++
			}
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return dirs, files
}

func printTree(n *nodetree.Node, indent string) {
	for _, c := range n.Children() {
		marker := "-"
		if c.IsDir() {
			marker = "d"
		}
		fmt.Printf("%s%s %s\n", indent, marker, c.Name())
		if c.IsDir() {
			printTree(c, indent+"  ")
		}
	}
}

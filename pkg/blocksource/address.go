package blocksource

import (
	"os"
	"strings"

	"github.com/rstms/isoburn/pkg/isoerr"
)

// AddressKind tags the parsed form of a block device address string. This
// replaces the source's historical in-place parsing of the address with
// side effects: Parse is pure, returning a tagged-union descriptor that the
// caller (typically the CLI glue) turns into a Source with Open.
type AddressKind int

const (
	AddressStdioFile AddressKind = iota // stdio:/path/to/file
	AddressStdioOut                     // stdio:- or stdio:/dev/fd/1
	AddressDevice                       // bare device-file path
)

// Address is the parsed result of Parse.
type Address struct {
	Kind AddressKind
	Path string
}

// Parse decodes one of the external block device address forms named in
// §6: "stdio:/path/to/file" for a file-backed source, "stdio:-" or
// "stdio:/dev/fd/1" for process stdout, or a bare path assumed to name an
// optical drive device file.
func Parse(addr string) (Address, error) {
	if addr == "" {
		return Address{}, isoerr.New(isoerr.Programming, isoerr.CodeNullInput, "empty block device address")
	}
	if rest, ok := strings.CutPrefix(addr, "stdio:"); ok {
		if rest == "-" || rest == "/dev/fd/1" {
			return Address{Kind: AddressStdioOut, Path: rest}, nil
		}
		return Address{Kind: AddressStdioFile, Path: rest}, nil
	}
	return Address{Kind: AddressDevice, Path: addr}, nil
}

// Open resolves an Address into a concrete Source. Device-file addresses
// are opened the same way as stdio: files here, since SCSI/MMC transport
// for real optical drives is an external collaborator outside this
// package's scope; a caller with a real drive backend substitutes its own
// Source for that case.
func Open(addr Address) (Source, error) {
	switch addr.Kind {
	case AddressStdioOut:
		return NewPipeSource(os.Stdout), nil
	case AddressStdioFile, AddressDevice:
		return OpenFile(addr.Path)
	default:
		return nil, isoerr.AssertFailure("unknown address kind")
	}
}

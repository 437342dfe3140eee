// Package exclude implements path-prefix and leaf-glob exclusion (C10),
// shared by the Update Engine's disk and image walks.
package exclude

import (
	"regexp"
	"strings"

	"github.com/rstms/isoburn/pkg/isoerr"
)

// compileGlob translates a bourne-style glob (*, ?, character classes)
// into an anchored regular expression, per spec §4.10.
func compileGlob(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	i := 0
	for i < len(glob) {
		c := glob[i]
		switch c {
		case '*':
			b.WriteString(".*")
			i++
		case '?':
			b.WriteString(".")
			i++
		case '[':
			end := strings.IndexByte(glob[i:], ']')
			if end < 0 {
				return nil, isoerr.New(isoerr.Policy, isoerr.CodeValueOutOfRange, "unterminated character class in glob: "+glob)
			}
			class := glob[i+1 : i+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[")
			b.WriteString(class)
			b.WriteString("]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

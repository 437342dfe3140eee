package messagebus

import "strings"

// SieveRule is one rule of the optional message sieve named in spec
// §4.9: a channel bitmask, a line prefix (leading '?' wildcards
// permitted), a separator set, a word-index vector selecting which split
// words to keep, and a cap on the number of results recorded.
type SieveRule struct {
	Name        string
	Channels    map[Channel]bool
	LinePrefix  string
	Separators  string
	WordIndices []int
	ResultCap   int
}

func (r SieveRule) channelMatches(c Channel) bool {
	if len(r.Channels) == 0 {
		return true
	}
	return r.Channels[c]
}

// prefixMatches supports '?' as a single-character wildcard in LinePrefix,
// mirroring the source's sieve prefix matcher.
func prefixMatches(prefix, text string) bool {
	if len(prefix) > len(text) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if prefix[i] == '?' {
			continue
		}
		if prefix[i] != text[i] {
			return false
		}
	}
	return true
}

// Sieve holds an ordered list of SieveRule and the word-tuples recorded
// for each as messages are fed through it. The sieve is inert unless
// explicitly installed on a Bus.
type Sieve struct {
	rules   []SieveRule
	results map[string][][]string
}

// NewSieve builds a Sieve from an ordered rule list.
func NewSieve(rules []SieveRule) *Sieve {
	return &Sieve{rules: rules, results: make(map[string][][]string)}
}

// Results returns the recorded word-tuples for a named rule.
func (s *Sieve) Results(name string) [][]string {
	return s.results[name]
}

func (s *Sieve) feed(msg Message) {
	for _, rule := range s.rules {
		if !rule.channelMatches(msg.Channel) {
			continue
		}
		if rule.LinePrefix != "" && !prefixMatches(rule.LinePrefix, msg.Text) {
			continue
		}
		existing := s.results[rule.Name]
		if rule.ResultCap > 0 && len(existing) >= rule.ResultCap {
			continue
		}

		seps := rule.Separators
		if seps == "" {
			seps = " \t"
		}
		words := strings.FieldsFunc(msg.Text, func(r rune) bool {
			return strings.ContainsRune(seps, r)
		})

		var tuple []string
		if len(rule.WordIndices) == 0 {
			tuple = words
		} else {
			for _, idx := range rule.WordIndices {
				if idx >= 0 && idx < len(words) {
					tuple = append(tuple, words[idx])
				} else {
					tuple = append(tuple, "")
				}
			}
		}
		s.results[rule.Name] = append(s.results[rule.Name], tuple)
	}
}

// Package messagebus implements the severity-tagged, channel-tagged
// message queue (C9): outlist redirection stack, problem-status register,
// pardon threshold, optional sieve filters, and an optional watcher
// goroutine.
package messagebus

import "github.com/rstms/isoburn/pkg/severity"

// Channel is one of the three message channels named in spec §4.9.
type Channel int

const (
	ChannelResult Channel = iota
	ChannelInfo
	ChannelMark
)

func (c Channel) String() string {
	switch c {
	case ChannelResult:
		return "result"
	case ChannelInfo:
		return "info"
	case ChannelMark:
		return "mark"
	default:
		return "unknown"
	}
}

// Message is one submission to the bus: a namespaced error code, free text,
// an OS errno (0 if not OS-originated), a severity, and a channel.
type Message struct {
	Code     string
	Text     string
	Errno    int
	Severity severity.Severity
	Channel  Channel
}

package messagebus

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/rstms/isoburn/pkg/isoerr"
	"github.com/rstms/isoburn/pkg/severity"
)

// MaxOutlistDepth is the fixed maximum depth of the outlist redirection
// stack, per spec §4.9.
const MaxOutlistDepth = 32

// outlist captures messages pushed onto it instead of the main channels.
type outlist struct {
	result []Message
	info   []Message
}

// Bus is the Message Bus (C9). It is the one component in this module that
// takes internal locks, per spec §5's shared-resource policy; every other
// component is single-threaded and lock-free.
type Bus struct {
	mu sync.Mutex

	log logr.Logger

	mainResult []Message
	mainInfo   []Message
	mainMark   []Message

	stack []*outlist

	problemStatus severity.Severity
	pardon        severity.Severity

	sieve *Sieve

	abort AbortFlag
}

// New builds an empty Bus. A nil logger discards all mirrored log output.
func New(log logr.Logger) *Bus {
	return &Bus{log: log}
}

// Abort returns the bus's cooperative cancellation flag. No component in
// this module polls it: the Update Engine's walk, the classifier's TOC scan
// and content comparison run to completion whatever its state.
func (b *Bus) Abort() *AbortFlag {
	return &b.abort
}

// PushOutlist begins capturing subsequent messages into a fresh outlist
// instead of the main channels. Returns an error if the stack is already
// at MaxOutlistDepth.
func (b *Bus) PushOutlist() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.stack) >= MaxOutlistDepth {
		return isoerr.New(isoerr.Resource, isoerr.CodeCacheExhausted, "outlist stack at max depth")
	}
	b.stack = append(b.stack, &outlist{})
	return nil
}

// PopOutlist ends the most recent capture and returns its result and info
// lists, in submission order.
func (b *Bus) PopOutlist() ([]Message, []Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.stack) == 0 {
		return nil, nil, isoerr.AssertFailure("pop_outlist with empty stack")
	}
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return top.result, top.info, nil
}

// SetPardonThreshold sets the command-scoped pardon threshold: severities
// at or below it do not raise the problem-status register.
func (b *Bus) SetPardonThreshold(s severity.Severity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pardon = s
}

// InstallSieve attaches a message sieve. Passing nil removes it; the sieve
// is inert unless explicitly installed, per spec §4.9.
func (b *Bus) InstallSieve(s *Sieve) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sieve = s
}

// ProblemStatus reports the highest severity observed since the last
// ResetProblemStatus call.
func (b *Bus) ProblemStatus() severity.Severity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.problemStatus
}

// ResetProblemStatus clears the problem-status register.
func (b *Bus) ResetProblemStatus() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.problemStatus = severity.DEBUG
}

// Submit records msg on its channel: captured by the top outlist if one is
// pushed, else appended to the corresponding main channel list. The
// problem-status register is raised unless msg's severity is at or below
// the pardon threshold. The message is also mirrored to the bus's logr
// logger at a severity-derived level.
func (b *Bus) Submit(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if severity.Compare(msg.Severity, b.pardon) > 0 {
		b.problemStatus = severity.Max(b.problemStatus, msg.Severity)
	}

	if b.sieve != nil {
		b.sieve.feed(msg)
	}

	if len(b.stack) > 0 {
		top := b.stack[len(b.stack)-1]
		switch msg.Channel {
		case ChannelResult:
			top.result = append(top.result, msg)
		default:
			top.info = append(top.info, msg)
		}
	} else {
		switch msg.Channel {
		case ChannelResult:
			b.mainResult = append(b.mainResult, msg)
		case ChannelInfo:
			b.mainInfo = append(b.mainInfo, msg)
		case ChannelMark:
			b.mainMark = append(b.mainMark, msg)
		}
	}

	mirrorToLogger(b.log, msg)
}

// FetchOutlists returns every message submitted-and-flushed to the main
// channels before the call, per spec §5's ordering guarantee.
func (b *Bus) FetchOutlists() (result, info, mark []Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.mainResult...),
		append([]Message(nil), b.mainInfo...),
		append([]Message(nil), b.mainMark...)
}

func mirrorToLogger(log logr.Logger, msg Message) {
	level := severityToVLevel(msg.Severity)
	if msg.Severity >= severity.FAILURE {
		log.Error(isoerr.New(isoerr.Programming, msg.Code, msg.Text), msg.Text, "channel", msg.Channel.String())
		return
	}
	log.V(level).Info(msg.Text, "code", msg.Code, "channel", msg.Channel.String())
}

func severityToVLevel(s severity.Severity) int {
	return int(severity.ABORT - s)
}

// Package toc implements the unified table-of-contents model (C4): an
// ordered list of sessions, each with an ordered list of tracks, whether
// reported by a real drive or fabricated by the medium classifier.
package toc

// Entry is one TOC entry (spec §3): a session/track pair with its start
// LBA, length, and an optional volume identifier. Entries are either real
// (delegated to an underlying disc object not modeled here) or emulated
// (backed directly by these fields).
type Entry struct {
	Session  int // 1-based
	Track    int // 1-based
	StartLBA uint32
	Blocks   uint32
	VolumeID string // optional, <= 32 chars
}

// TOC is the immutable ordered list of Entry produced by one classification
// pass.
type TOC struct {
	entries []Entry
}

// New builds a TOC from entries, which must already be in session/track
// order; New does not re-sort them.
func New(entries []Entry) *TOC {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &TOC{entries: cp}
}

// Entries returns the ordered entry list.
func (t *TOC) Entries() []Entry {
	return t.entries
}

// Sessions groups entries by session index, preserving order.
func (t *TOC) Sessions() [][]Entry {
	var out [][]Entry
	var cur []Entry
	curSession := -1
	for _, e := range t.entries {
		if e.Session != curSession {
			if cur != nil {
				out = append(out, cur)
			}
			cur = nil
			curSession = e.Session
		}
		cur = append(cur, e)
	}
	if cur != nil {
		out = append(out, cur)
	}
	return out
}

// TotalSectors reports start + length of the last counted track, i.e. the
// number of sectors used by the medium according to this TOC.
func (t *TOC) TotalSectors() uint32 {
	if len(t.entries) == 0 {
		return 0
	}
	last := t.entries[len(t.entries)-1]
	return last.StartLBA + last.Blocks
}

// IncompleteSessions reports the number of open (incomplete) sessions: a
// session is incomplete if the track(s) composing it carry a zero length,
// a placeholder for a session whose terminator was never written.
func (t *TOC) IncompleteSessions() int {
	n := 0
	for _, session := range t.Sessions() {
		for _, e := range session {
			if e.Blocks == 0 {
				n++
				break
			}
		}
	}
	return n
}

// LastSession returns the final (most recently written, or only) session's
// entries, or nil if the TOC is empty.
func (t *TOC) LastSession() []Entry {
	sessions := t.Sessions()
	if len(sessions) == 0 {
		return nil
	}
	return sessions[len(sessions)-1]
}

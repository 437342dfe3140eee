package toc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func threeSessionEntries() []Entry {
	return []Entry{
		{Session: 1, Track: 1, StartLBA: 0, Blocks: 100, VolumeID: "FIRST"},
		{Session: 2, Track: 1, StartLBA: 100, Blocks: 50},
		{Session: 2, Track: 2, StartLBA: 150, Blocks: 25},
		{Session: 3, Track: 1, StartLBA: 175, Blocks: 200, VolumeID: "LAST"},
	}
}

func TestNewCopiesEntries(t *testing.T) {
	entries := threeSessionEntries()
	toc := New(entries)

	// Mutating the caller's slice after New must not alter the TOC's copy.
	entries[0].VolumeID = "MUTATED"

	if diff := cmp.Diff(threeSessionEntries(), toc.Entries()); diff != "" {
		t.Fatalf("Entries() mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionsGroupsInOrder(t *testing.T) {
	toc := New(threeSessionEntries())
	want := [][]Entry{
		{{Session: 1, Track: 1, StartLBA: 0, Blocks: 100, VolumeID: "FIRST"}},
		{
			{Session: 2, Track: 1, StartLBA: 100, Blocks: 50},
			{Session: 2, Track: 2, StartLBA: 150, Blocks: 25},
		},
		{{Session: 3, Track: 1, StartLBA: 175, Blocks: 200, VolumeID: "LAST"}},
	}

	if diff := cmp.Diff(want, toc.Sessions()); diff != "" {
		t.Fatalf("Sessions() mismatch (-want +got):\n%s", diff)
	}
}

func TestTotalSectorsUsesLastEntry(t *testing.T) {
	toc := New(threeSessionEntries())
	require.EqualValues(t, 375, toc.TotalSectors())
}

func TestTotalSectorsEmptyTOC(t *testing.T) {
	toc := New(nil)
	require.EqualValues(t, 0, toc.TotalSectors())
}

func TestLastSessionReturnsFinalGroup(t *testing.T) {
	toc := New(threeSessionEntries())
	want := []Entry{{Session: 3, Track: 1, StartLBA: 175, Blocks: 200, VolumeID: "LAST"}}

	if diff := cmp.Diff(want, toc.LastSession()); diff != "" {
		t.Fatalf("LastSession() mismatch (-want +got):\n%s", diff)
	}
}

func TestLastSessionEmptyTOC(t *testing.T) {
	toc := New(nil)
	require.Nil(t, toc.LastSession())
}

func TestIncompleteSessionsCountsZeroLengthTracks(t *testing.T) {
	entries := []Entry{
		{Session: 1, Track: 1, StartLBA: 0, Blocks: 100},
		{Session: 2, Track: 1, StartLBA: 100, Blocks: 0}, // open session
		{Session: 3, Track: 1, StartLBA: 100, Blocks: 50},
	}
	toc := New(entries)
	require.Equal(t, 1, toc.IncompleteSessions())
}

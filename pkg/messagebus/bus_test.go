package messagebus

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/rstms/isoburn/pkg/severity"
)

func TestOutlistIsolation(t *testing.T) {
	b := New(logr.Discard())

	b.Submit(Message{Text: "before push", Channel: ChannelResult, Severity: severity.NOTE})

	require.NoError(t, b.PushOutlist())
	b.Submit(Message{Text: "captured result", Channel: ChannelResult, Severity: severity.NOTE})
	b.Submit(Message{Text: "captured info", Channel: ChannelInfo, Severity: severity.NOTE})

	result, info, err := b.PopOutlist()
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, "captured result", result[0].Text)
	require.Len(t, info, 1)
	require.Equal(t, "captured info", info[0].Text)

	mainResult, _, _ := b.FetchOutlists()
	require.Len(t, mainResult, 1)
	require.Equal(t, "before push", mainResult[0].Text)
}

func TestPopOutlistWithoutPushFails(t *testing.T) {
	b := New(logr.Discard())
	_, _, err := b.PopOutlist()
	require.Error(t, err)
}

func TestProblemStatusTracksMaxSeverity(t *testing.T) {
	b := New(logr.Discard())
	b.Submit(Message{Text: "a", Severity: severity.NOTE})
	b.Submit(Message{Text: "b", Severity: severity.WARNING})
	b.Submit(Message{Text: "c", Severity: severity.HINT})
	require.Equal(t, severity.HINT, b.ProblemStatus())

	b.ResetProblemStatus()
	require.Equal(t, severity.DEBUG, b.ProblemStatus())
}

func TestPardonThresholdSuppressesRaise(t *testing.T) {
	b := New(logr.Discard())
	b.SetPardonThreshold(severity.WARNING)
	b.Submit(Message{Text: "low", Severity: severity.NOTE})
	require.Equal(t, severity.DEBUG, b.ProblemStatus())

	b.Submit(Message{Text: "high", Severity: severity.HINT})
	require.Equal(t, severity.HINT, b.ProblemStatus())
}

func TestOutlistMaxDepth(t *testing.T) {
	b := New(logr.Discard())
	for i := 0; i < MaxOutlistDepth; i++ {
		require.NoError(t, b.PushOutlist())
	}
	require.Error(t, b.PushOutlist())
}

func TestSieveWordSplit(t *testing.T) {
	b := New(logr.Discard())
	sieve := NewSieve([]SieveRule{
		{Name: "sizes", LinePrefix: "SIZE", WordIndices: []int{1}},
	})
	b.InstallSieve(sieve)

	b.Submit(Message{Text: "SIZE 4096 blocks", Channel: ChannelInfo, Severity: severity.NOTE})
	b.Submit(Message{Text: "OTHER message", Channel: ChannelInfo, Severity: severity.NOTE})

	results := sieve.Results("sizes")
	require.Len(t, results, 1)
	require.Equal(t, []string{"4096"}, results[0])
}

func TestWatcherDrainsOnStop(t *testing.T) {
	b := New(logr.Discard())
	require.NoError(t, b.PushOutlist())

	var got []Message
	w := StartWatcher(b, time.Hour, func(result, info []Message) {
		got = append(got, result...)
	})

	b.Submit(Message{Text: "pending", Channel: ChannelResult, Severity: severity.NOTE})
	w.Stop()

	require.Len(t, got, 1)
	require.Equal(t, "pending", got[0].Text)
}

func TestAbortFlag(t *testing.T) {
	var a AbortFlag
	require.False(t, a.Requested())
	a.Request()
	require.True(t, a.Requested())
	a.Clear()
	require.False(t, a.Requested())
}

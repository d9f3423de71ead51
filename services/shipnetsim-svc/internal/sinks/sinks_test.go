package sinks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrajectorySink_LazyOpenAndHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "traj.csv")
	sink := NewTrajectorySink(path, TimeSteppedHeader)

	_, err := os.Stat(path)
	require.Error(t, err, "file must not exist before first write")

	require.NoError(t, sink.WriteLine("1,shipA,35,0,0,0,0,0,0,0,0,0,0,10,0,100,1;2,90"))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), TimeSteppedHeader)
	require.Contains(t, string(data), "shipA")
}

func TestTrajectorySink_ClearTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "traj.csv")
	sink := NewTrajectorySink(path, ResistanceStudyHeader)

	require.NoError(t, sink.WriteLine("row-one"))
	require.NoError(t, sink.Clear())
	require.NoError(t, sink.WriteLine("row-two"))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "row-one")
	require.Contains(t, string(data), "row-two")
}

func TestSummarySink_TruncateOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.txt")
	sink := NewSummarySink(path)

	require.NoError(t, sink.Write("first summary"))
	require.NoError(t, sink.Write("second summary"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second summary", string(data))
}

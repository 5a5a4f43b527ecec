package codegen

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingGenerator appends a line to a counter file on every run and
// creates the marker unless told not to.
func countingGenerator(createMarker bool) []string {
	script := `echo run >> calls`
	if createMarker {
		script += ` && touch marker_pb2.py`
	}
	return []string{"sh", "-c", script}
}

func calls(t *testing.T, dir string) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "calls"))
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "run\n")
}

func TestEnsure_MarkerPresentSkips(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker_pb2.py")
	require.NoError(t, os.WriteFile(marker, []byte("# generated\n"), 0644))
	before, err := os.Stat(marker)
	require.NoError(t, err)

	g := &Generator{Marker: "marker_pb2.py", Dir: dir, Command: countingGenerator(true)}
	outcome, err := g.Ensure(t.Context())

	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
	assert.Equal(t, 0, calls(t, dir))

	after, err := os.Stat(marker)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestEnsure_MarkerAbsentRunsOnce(t *testing.T) {
	dir := t.TempDir()
	g := &Generator{Marker: "marker_pb2.py", Dir: dir, Command: countingGenerator(true)}

	outcome, err := g.Ensure(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Generated, outcome)
	assert.Equal(t, 1, calls(t, dir))
	assert.FileExists(t, filepath.Join(dir, "marker_pb2.py"))

	outcome, err = g.Ensure(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
	assert.Equal(t, 1, calls(t, dir))
}

func TestEnsure_Force(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker_pb2.py"), nil, 0644))

	g := &Generator{Marker: "marker_pb2.py", Dir: dir, Command: countingGenerator(true), Force: true}
	outcome, err := g.Ensure(t.Context())

	require.NoError(t, err)
	assert.Equal(t, Generated, outcome)
	assert.Equal(t, 1, calls(t, dir))
}

func TestEnsure_GeneratorFailure(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer
	g := &Generator{
		Marker:  "marker_pb2.py",
		Dir:     dir,
		Command: []string{"sh", "-c", "echo protoc: bad input >&2; exit 3"},
		Stderr:  &stderr,
	}

	outcome, err := g.Ensure(t.Context())

	require.Error(t, err)
	assert.Empty(t, outcome)
	var genErr *GenerateError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, []string{"sh", "-c", "echo protoc: bad input >&2; exit 3"}, genErr.Command)
	assert.Contains(t, stderr.String(), "protoc: bad input")
}

func TestEnsure_MissingCommand(t *testing.T) {
	g := &Generator{Marker: "marker_pb2.py", Dir: t.TempDir()}

	_, err := g.Ensure(t.Context())

	var genErr *GenerateError
	require.ErrorAs(t, err, &genErr)
}

func TestEnsure_MarkerStillMissingIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	g := &Generator{Marker: "marker_pb2.py", Dir: dir, Command: countingGenerator(false)}

	outcome, err := g.Ensure(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Generated, outcome)

	_, err = g.Ensure(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, calls(t, dir))
}

func TestMarkerPath(t *testing.T) {
	assert.Equal(t, "/abs/x_pb2.py", (&Generator{Marker: "/abs/x_pb2.py", Dir: "/srv"}).MarkerPath())
	assert.Equal(t, "/srv/x_pb2.py", (&Generator{Marker: "x_pb2.py", Dir: "/srv"}).MarkerPath())
	assert.Equal(t, "x_pb2.py", (&Generator{Marker: "x_pb2.py"}).MarkerPath())
}

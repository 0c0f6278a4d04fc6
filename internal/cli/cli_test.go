package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corridorYAML = `
map:
  - "+-----------+"
  - "| : : : : : |"
  - "+-----------+"
agents:
  - location: {row: 0, col: 0}
    fuel: 20
  - location: {row: 0, col: 5}
    fuel: 20
passengers:
  - pickup: {row: 0, col: 1}
    destination: {row: 0, col: 2}
  - pickup: {row: 0, col: 4}
    destination: {row: 0, col: 3}
`

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corridor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(corridorYAML), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "taxirelay version dev")

	out, err = run(t, "version", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Go version:")
}

func TestParseCoordinate(t *testing.T) {
	c, err := parseCoordinate("3, 4")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Row)
	assert.Equal(t, 4, c.Col)

	for _, bad := range []string{"", "3", "a,1", "1,b", "1,2,3"} {
		_, err := parseCoordinate(bad)
		assert.Error(t, err, bad)
	}
}

func TestPath(t *testing.T) {
	sc := writeScenario(t)

	out, err := run(t, "path", "-s", sc, "--storage", "memory", "0,0", "0,3")
	require.NoError(t, err)
	assert.Contains(t, out, "Path (0,0) -> (0,3): 3 moves")
	assert.Contains(t, out, "|O:*:*:D: : |")
	assert.Contains(t, out, "Moves: east east east")
}

func TestPathErrors(t *testing.T) {
	sc := writeScenario(t)

	_, err := run(t, "path", "--storage", "memory", "0,0", "0,3")
	assert.ErrorContains(t, err, "--scenario is required")

	_, err = run(t, "path", "-s", sc, "--storage", "memory", "0,0", "4,4")
	assert.Error(t, err)

	_, err = run(t, "path", "-s", sc, "--storage", "memory", "0,0")
	assert.Error(t, err)
}

func TestAllocate(t *testing.T) {
	sc := writeScenario(t)

	out, err := run(t, "allocate", "-s", sc, "--storage", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "Optimal (cost 8):")
	assert.Contains(t, out, "agent 0 -> passenger 0")
	assert.Contains(t, out, "agent 1 -> passenger 1")
	assert.Contains(t, out, "Gap: 0")
}

func TestTransferPoint(t *testing.T) {
	sc := writeScenario(t)

	out, err := run(t, "transfer-point", "-s", sc, "--storage", "memory",
		"--from", "0,0", "--fuel", "3", "--to", "0,5", "--dest", "0,4")
	require.NoError(t, err)
	for _, name := range []string{"route-aligned", "fuel-horizon", "exhaustive"} {
		assert.Contains(t, out, name)
	}

	out, err = run(t, "transfer-point", "-s", sc, "--storage", "memory",
		"--from", "0,0", "--fuel", "3", "--to", "0,5", "--dest", "0,4", "--strategy", "h2")
	require.NoError(t, err)
	assert.Contains(t, out, "fuel-horizon")
	assert.NotContains(t, out, "exhaustive")

	_, err = run(t, "transfer-point", "-s", sc, "--storage", "memory", "--fuel", "3")
	assert.ErrorContains(t, err, "--from is required")
}

func TestDeliverAndRunHistory(t *testing.T) {
	sc := writeScenario(t)
	t.Setenv("TAXIRELAY_STORAGE_PATH", filepath.Join(t.TempDir(), "runs.db"))

	out, err := run(t, "deliver", "-s", sc, "--storage", "sqlite", "--notes", "corridor")
	require.NoError(t, err)
	assert.Contains(t, out, "Delivered 2 of 2 passengers")

	fields := strings.Fields(strings.SplitN(out, "\n", 2)[0])
	require.GreaterOrEqual(t, len(fields), 2)
	id := fields[1]

	out, err = run(t, "runs", "list", "--storage", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "2/2")
	assert.Contains(t, out, "1 of 1 runs")

	out, err = run(t, "runs", "show", id, "--storage", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "Mode:       auto")
	assert.Contains(t, out, "Notes:      corridor")
	assert.Contains(t, out, "dropoff")

	out, err = run(t, "runs", "delete", id, "--storage", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted run "+id)

	_, err = run(t, "runs", "show", id, "--storage", "sqlite")
	assert.Error(t, err)
	_, err = run(t, "runs", "delete", id, "--storage", "sqlite")
	assert.Error(t, err)
}

func TestDeliverUnknownMode(t *testing.T) {
	sc := writeScenario(t)

	_, err := run(t, "deliver", "-s", sc, "--storage", "memory", "--mode", "teleport")
	assert.ErrorContains(t, err, "unknown delivery mode")
}

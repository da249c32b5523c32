package sourcemap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "locations": [
    {"file": "a.fc", "line": 10, "func": "f", "vars": ["x", "y"], "first_stmt": true},
    {"file": "a.fc", "line": 11, "func": "f"},
    {"file": "a.fc", "line": 9, "func": "f", "ret": true},
    {"file": "a.fc", "line": 8, "func": "f", "is_catch": true}
  ],
  "globals": [ {"name": "balance"}, {"name": "owner"} ]
}`

func TestParse_ClassifiesEntries(t *testing.T) {
	sm, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)

	e0, ok := sm.EntryAt(0)
	require.True(t, ok)
	require.Equal(t, Statement, e0.Kind)
	require.Equal(t, []string{"x", "y"}, e0.Variables)
	require.True(t, e0.FirstStatement)
	require.True(t, filepath.IsAbs(e0.Path))

	e1, ok := sm.EntryAt(1)
	require.True(t, ok)
	require.Equal(t, Statement, e1.Kind)
	require.False(t, e1.FirstStatement)

	e2, ok := sm.EntryAt(2)
	require.True(t, ok)
	require.Equal(t, Return, e2.Kind)

	e3, ok := sm.EntryAt(3)
	require.True(t, ok)
	require.Equal(t, Catch, e3.Kind)

	_, ok = sm.EntryAt(4)
	require.False(t, ok)
}

func TestAvailableLines(t *testing.T) {
	sm, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)

	abs, err := filepath.Abs("a.fc")
	require.NoError(t, err)

	require.True(t, sm.IsLineAvailable(abs, 10))
	require.True(t, sm.IsLineAvailable(abs, 8))
	require.False(t, sm.IsLineAvailable(abs, 12))
	require.False(t, sm.IsLineAvailable("b.fc", 10))

	require.Equal(t, []int{8, 9, 10, 11}, sm.AvailableLines(abs))
	require.Equal(t, []string{abs}, sm.AvailablePaths())
}

func TestGlobals(t *testing.T) {
	sm, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)

	require.Equal(t, []GlobalEntry{{Name: "balance"}, {Name: "owner"}}, sm.Globals())
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse([]byte("not json"))
	require.Error(t, err)
}

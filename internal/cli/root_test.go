package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pantryYAML = `- {id: 1, name: Garlic}
- {id: 2, name: Salt}
- {id: 3, name: Olive Oil}
- {id: 4, name: Unsalted Butter}
- {id: 5, name: Chicken Breast}
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// run executes the root command and returns stdout and the exit code.
func run(t *testing.T, stdin string, args ...string) (string, int) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), GetExitCode(err)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "ingredientctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"normalize", "match", "suggest", "seed", "rematch", "sync-search"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("accent-folding"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestInvalidFormat(t *testing.T) {
	_, code := run(t, "", "--format", "xml", "normalize", "salt")
	assert.Equal(t, ExitCommandError, code)
}

func TestNormalizeCommand(t *testing.T) {
	out, code := run(t, "", "normalize", "Fresh,", "Chopped", "Garlic", "-", "minced")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "garlic\n", out)
}

func TestNormalizeCommand_Stdin(t *testing.T) {
	out, code := run(t, "Pinch of salt\n\n3 tablespoons extra virgin olive oil\n", "normalize")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "salt\nolive oil\n", out)
}

func TestNormalizeCommand_NoInput(t *testing.T) {
	_, code := run(t, "", "normalize")
	assert.Equal(t, ExitCommandError, code)
}

func TestNormalizeCommand_JSON(t *testing.T) {
	out, code := run(t, "", "--format", "json", "normalize", "Pinch of salt")
	require.Equal(t, ExitSuccess, code)

	var resp struct {
		Status string           `json:"status"`
		Data   []NormalizedLine `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "salt", resp.Data[0].Normalized)
	assert.Equal(t, "Pinch of salt", resp.Data[0].Text)
}

func TestMatchCommand(t *testing.T) {
	candidates := writeFile(t, "pantry.yaml", pantryYAML)

	out, code := run(t, "Pinch of salt\nxyzzy plugh\n", "match", "--candidates", candidates)
	require.Equal(t, ExitSuccess, code)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Pinch of salt\texact\t2\tsalt", lines[0])
	assert.Equal(t, "xyzzy plugh\tnone\t-\t", lines[1])
}

func TestMatchCommand_FailUnmatched(t *testing.T) {
	candidates := writeFile(t, "pantry.yaml", pantryYAML)

	_, code := run(t, "", "match", "-c", candidates, "--fail-unmatched", "xyzzy")
	assert.Equal(t, ExitFailure, code)

	_, code = run(t, "", "match", "-c", candidates, "--fail-unmatched", "garlic")
	assert.Equal(t, ExitSuccess, code)
}

func TestMatchCommand_MissingCandidates(t *testing.T) {
	_, code := run(t, "", "match", "salt")
	assert.NotEqual(t, ExitSuccess, code)

	_, code = run(t, "", "match", "-c", filepath.Join(t.TempDir(), "missing.yaml"), "salt")
	assert.Equal(t, ExitCommandError, code)
}

func TestSuggestCommand_JSON(t *testing.T) {
	candidates := writeFile(t, "pantry.yaml", pantryYAML)

	out, code := run(t, "", "--format", "json", "suggest", "-c", candidates, "-k", "2", "galric")
	require.Equal(t, ExitSuccess, code)

	var resp struct {
		Data []SuggestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	require.Len(t, resp.Data[0].Suggestions, 2)
	assert.EqualValues(t, 1, resp.Data[0].Suggestions[0].ID)
	assert.Equal(t, "garlic", resp.Data[0].Suggestions[0].Text)
}

func TestSeedCommand_SQL(t *testing.T) {
	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "recipes.db")
	cfgPath := writeFile(t, "app.yaml", "source:\n  type: sql\n  sql_dsn: \""+dsn+"\"\n")
	seed := writeFile(t, "pantry.yaml", pantryYAML)

	out, code := run(t, "", "--config", cfgPath, "--format", "json", "seed", "--file", seed)
	require.Equal(t, ExitSuccess, code, out)

	var resp struct {
		Data SeedResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "sql", resp.Data.Source)
	assert.Equal(t, 5, resp.Data.Received)
	assert.Equal(t, 5, resp.Data.Upserted)
}

func TestSeedCommand_InvalidFile(t *testing.T) {
	cfgPath := writeFile(t, "app.yaml", "source:\n  type: file\n")
	seed := writeFile(t, "bad.yaml", "- {id: 0, name: \"\"}\n")

	_, code := run(t, "", "--config", cfgPath, "seed", "--file", seed)
	assert.Equal(t, ExitCommandError, code)
}

func TestSeedCommand_ReadOnlySource(t *testing.T) {
	cfgPath := writeFile(t, "app.yaml", "source:\n  type: file\n")
	seed := writeFile(t, "pantry.yaml", pantryYAML)

	_, code := run(t, "", "--config", cfgPath, "seed", "--file", seed)
	assert.Equal(t, ExitCommandError, code)
}

func TestSyncSearchCommand_Disabled(t *testing.T) {
	cfgPath := writeFile(t, "app.yaml", "source:\n  type: file\nmeilisearch:\n  enabled: false\n")

	_, code := run(t, "", "--config", cfgPath, "sync-search")
	assert.Equal(t, ExitCommandError, code)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", assert.AnError)))
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	err := f.Error(NewExitError(ExitCommandError, "bad input"))
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ExitCommandError, resp.Error.Code)
	assert.Equal(t, "bad input", resp.Error.Message)
	assert.NoError(t, f.Error(nil))
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozzus/pm-tracker/internal/domain"
)

const yamlDraft = `pm_number: PM-12
name: Compresor
asset_code: CP-2
tasks:
  - title: Drain condensate
    key_points: Valve fully open
  - title: Check belt tension
    sequence: 30
    key_points: deflection 10 mm
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadDraft(t *testing.T) {
	draft, err := loadDraft(writeFile(t, "pm.yaml", yamlDraft))
	require.NoError(t, err)
	assert.Equal(t, "PM-12", draft.PMNumber)
	require.Len(t, draft.Tasks, 2)
	assert.Nil(t, draft.Tasks[0].Sequence)
	require.NotNil(t, draft.Tasks[1].Sequence)
	assert.Equal(t, 30, *draft.Tasks[1].Sequence)

	draft, err = loadDraft(writeFile(t, "pm.json", `{"pm_number":"PM-1","tasks":[{"title":"Wipe"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Wipe", draft.Tasks[0].Title)

	_, err = loadDraft(writeFile(t, "bad.json", `{"tasks": [`))
	assert.Equal(t, domain.ErrValidation, domain.Kind(err))

	_, err = loadDraft(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTemplateImportAndRender(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENV", "dev")
	t.Setenv("DATABASE_DSN", filepath.Join(dir, "pm.db"))
	t.Setenv("STORAGE_LOCAL_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("RECONCILER_SOURCE", "sql")

	out, err := runCLI(t, "migrate")
	require.NoError(t, err, out)

	out, err = runCLI(t, "template", "import", writeFile(t, "pm.yaml", yamlDraft))
	require.NoError(t, err, out)
	assert.Contains(t, out, "imported (2 tasks)")

	_, err = runCLI(t, "template", "import", "--pm", "no-such-pm", writeFile(t, "pm.yaml", yamlDraft))
	assert.Equal(t, domain.ErrNotFound, domain.Kind(err))

	_, err = runCLI(t, "report", "render", "no-such-execution", "-o", filepath.Join(dir, "out.pdf"))
	assert.Equal(t, domain.ErrNotFound, domain.Kind(err))
}

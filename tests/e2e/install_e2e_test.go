package e2e

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"bero-pm/tests/testutil"
)

func TestInstallCommandE2E(t *testing.T) {
	root := testutil.RepoRoot(t)
	projectDir := t.TempDir()

	server := testutil.StartRegistry(t, []testutil.Package{
		{
			Name:    "left-pad",
			Version: "1.3.0",
			Files: map[string]string{
				"package/package.json": `{"name":"left-pad","version":"1.3.0"}`,
				"package/index.js":     "module.exports = function leftPad() {}\n",
			},
		},
	})

	manifest := []byte(`{"dependencies":{"left-pad":"^1.0.0"}}`)
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "package.json"), manifest, 0644))

	cmd := exec.Command("go", "run", "./cmd/bero-pm", "install",
		"--dir", projectDir,
		"--registry", server.URL,
	)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "GO111MODULE=on")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))

	require.FileExists(t, filepath.Join(projectDir, "bero-pm.yml"))
	require.FileExists(t, filepath.Join(projectDir, "node_modules", "left-pad", "index.js"))
}

func TestResolveCommandE2E(t *testing.T) {
	root := testutil.RepoRoot(t)
	projectDir := t.TempDir()

	server := testutil.StartRegistry(t, []testutil.Package{
		{Name: "tiny", Version: "2.1.0"},
	})

	manifest := []byte(`{"dependencies":{"tiny":""}}`)
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "package.json"), manifest, 0644))

	cmd := exec.Command("go", "run", "./cmd/bero-pm", "resolve",
		"--dir", projectDir,
		"--registry", server.URL,
	)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "GO111MODULE=on")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))

	require.FileExists(t, filepath.Join(projectDir, "bero-pm.yml"))
	require.NoDirExists(t, filepath.Join(projectDir, "node_modules"))

	rewritten, err := os.ReadFile(filepath.Join(projectDir, "package.json"))
	require.NoError(t, err)
	require.Contains(t, string(rewritten), `"tiny": "^2.1.0"`)
}

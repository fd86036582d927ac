package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apim-tools/apimctl/internal/config"
)

// newTestStager builds a stager over temp directories with a minimal module
// tree containing both phases and a shared modules directory.
func newTestStager(t *testing.T) *Stager {
	t.Helper()

	moduleRoot := t.TempDir()
	for _, phase := range []string{PhaseBootstrap, PhaseMain} {
		dir := filepath.Join(moduleRoot, phase)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.tf"), []byte("# "+phase+"\n"), 0o644))
	}
	shared := filepath.Join(moduleRoot, "modules", "network")
	require.NoError(t, os.MkdirAll(shared, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(shared, "network.tf"), []byte("# shared\n"), 0o644))

	cfg := &config.Config{RootDir: t.TempDir()}
	cfg.Project.GCPProjectID = "demo-project"

	return &Stager{
		cfg:        cfg,
		ModuleRoot: moduleRoot,
		DataDir:    t.TempDir(),
		CacheDir:   t.TempDir(),
	}
}

func TestStagePhaseLayout(t *testing.T) {
	s := newTestStager(t)

	sc, err := s.StagePhase(PhaseMain, map[string]string{"gcp_project_id": "demo-project"}, nil)
	require.NoError(t, err)

	assert.Equal(t, PhaseMain, sc.Phase)
	assert.FileExists(t, filepath.Join(sc.Dir, "main.tf"))
	assert.FileExists(t, filepath.Join(sc.Dir, "modules", "network", "network.tf"))
	assert.FileExists(t, filepath.Join(sc.Dir, "backend.tf"))
	assert.FileExists(t, filepath.Join(sc.Dir, generatedVarsFile))

	backend, err := os.ReadFile(filepath.Join(sc.Dir, "backend.tf"))
	require.NoError(t, err)
	assert.Contains(t, string(backend), `backend "local"`)
	assert.Contains(t, string(backend), sc.StatePath)
}

func TestStagePhaseStatePathIsStable(t *testing.T) {
	s := newTestStager(t)

	first, err := s.StagePhase(PhaseMain, nil, nil)
	require.NoError(t, err)
	second, err := s.StagePhase(PhaseMain, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, first.StatePath, second.StatePath)
	assert.Contains(t, first.StatePath, filepath.Join("demo-project", "tf", PhaseMain, "terraform.tfstate"))
}

func TestStagePhaseSuffixIsolatesState(t *testing.T) {
	s := newTestStager(t)
	plain := s.StatePath(PhaseMain)

	s.cfg.Apigee.StateSuffix = "staging"
	suffixed := s.StatePath(PhaseMain)

	assert.NotEqual(t, plain, suffixed)
	assert.Contains(t, suffixed, filepath.Join("demo-project", "staging", "tf"))
}

func TestStagePhaseWipesLeftovers(t *testing.T) {
	s := newTestStager(t)

	sc, err := s.StagePhase(PhaseMain, nil, nil)
	require.NoError(t, err)
	leftover := filepath.Join(sc.Dir, "stale.tf")
	require.NoError(t, os.WriteFile(leftover, []byte("# stale\n"), 0o644))

	_, err = s.StagePhase(PhaseMain, nil, nil)
	require.NoError(t, err)
	assert.NoFileExists(t, leftover)
}

func TestStagePhaseGeneratedVarsSorted(t *testing.T) {
	s := newTestStager(t)

	sc, err := s.StagePhase(PhaseMain, map[string]string{
		"gcp_project_id":      "demo-project",
		"apigee_billing_type": "PAYG",
	}, nil)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(sc.Dir, generatedVarsFile))
	require.NoError(t, err)
	assert.Equal(t,
		"# Generated by apimctl. Do not edit; regenerated on every run.\n"+
			"apigee_billing_type = \"PAYG\"\n"+
			"gcp_project_id = \"demo-project\"\n",
		string(content))
}

func TestStagePhaseMissingModule(t *testing.T) {
	s := newTestStager(t)

	_, err := s.StagePhase("2-nonexistent", nil, nil)
	var notFound *ModuleNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "2-nonexistent", notFound.Phase)
}

func TestStagePhaseUserOverlays(t *testing.T) {
	s := newTestStager(t)
	root := s.cfg.RootDir
	require.NoError(t, os.WriteFile(filepath.Join(root, "terraform.tfvars"), []byte("a = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "extra.auto.tfvars"), []byte("b = 2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "custom.tf"), []byte("# user\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "_apim_reserved.tf"), []byte("# packaged\n"), 0o644))

	// Variable files reach both phases; user .tf declarations only main.
	boot, err := s.StagePhase(PhaseBootstrap, nil, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(boot.Dir, "terraform.tfvars"))
	assert.FileExists(t, filepath.Join(boot.Dir, "extra.auto.tfvars"))
	assert.NoFileExists(t, filepath.Join(boot.Dir, "custom.tf"))

	mainSC, err := s.StagePhase(PhaseMain, nil, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(mainSC.Dir, "custom.tf"))
	assert.NoFileExists(t, filepath.Join(mainSC.Dir, "_apim_reserved.tf"))
}

func TestStagePhaseExplicitOverrides(t *testing.T) {
	s := newTestStager(t)
	extra := filepath.Join(t.TempDir(), "special.auto.tfvars")
	require.NoError(t, os.WriteFile(extra, []byte("c = 3\n"), 0o644))

	sc, err := s.StagePhase(PhaseMain, nil, []string{extra})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(sc.Dir, "90_override_00.auto.tfvars"))
}

func TestStagePhaseRejectsDisallowedOverride(t *testing.T) {
	s := newTestStager(t)
	bad := filepath.Join(t.TempDir(), "random.txt")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))

	_, err := s.StagePhase(PhaseMain, nil, []string{bad})
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Msg, "not allowed")
}

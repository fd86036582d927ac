package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apim-tools/apimctl/internal/config"
	"github.com/apim-tools/apimctl/internal/logging"
)

// sharedModulesDir is the subdirectory of the module root holding modules
// shared across phases; it is copied into every staged phase so each phase
// tree is self-contained.
const sharedModulesDir = "modules"

// generatedVarsFile is regenerated on every stage call and must never be
// hand-edited. The zz_ prefix keeps it sorting after user files.
const generatedVarsFile = "zz_generated.auto.tfvars"

// reservedPrefix marks packaged .tf files that user overlays may not shadow.
const reservedPrefix = "_apim_"

// StagingContext describes one freshly staged phase directory. It is owned
// exclusively by the orchestrator invocation that created it.
type StagingContext struct {
	Phase        string
	Dir          string
	StatePath    string
	ModuleSource string
	Vars         map[string]string
}

// Stager prepares clean, reproducible execution directories per phase. Every
// StagePhase call wipes and rebuilds the phase directory from scratch;
// nothing survives between runs except the durable state file.
type Stager struct {
	cfg *config.Config

	// ModuleRoot holds the packaged terraform phase trees.
	ModuleRoot string
	// DataDir is the durable root for state files.
	DataDir string
	// CacheDir is the ephemeral root for staging directories.
	CacheDir string
}

// NewStager builds a stager with the standard filesystem layout.
func NewStager(cfg *config.Config) *Stager {
	return &Stager{
		cfg:        cfg,
		ModuleRoot: config.ModuleRoot(),
		DataDir:    config.DataDir(),
		CacheDir:   config.CacheDir(),
	}
}

// StatePath returns the durable state file path for a phase. It is a pure
// function of (project, phase, suffix): re-staging the same phase always
// targets the same state file.
func (s *Stager) StatePath(phase string) string {
	return config.StatePath(s.DataDir, s.cfg.Project.GCPProjectID, phase, s.cfg.Apigee.StateSuffix)
}

func (s *Stager) stagingDir(phase string) string {
	return config.StagingDir(s.CacheDir, s.cfg.Project.GCPProjectID, phase, s.cfg.Apigee.StateSuffix)
}

// StagePhase wipes and rebuilds the staging directory for a phase: packaged
// module tree, shared modules, generated backend declaration, generated
// variables file, then user overlay files. overrides lists explicit extra
// variable files; anything outside the allowlist is rejected.
func (s *Stager) StagePhase(phase string, vars map[string]string, overrides []string) (*StagingContext, error) {
	dir := s.stagingDir(phase)
	logging.Debug("staging phase", "phase", phase, "dir", dir)

	// Idempotent wipe. A crash mid-stage leaves no partial state behind
	// because the next call starts from an empty directory again.
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to wipe staging directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory %s: %w", dir, err)
	}

	moduleSource := filepath.Join(s.ModuleRoot, phase)
	if info, err := os.Stat(moduleSource); err != nil || !info.IsDir() {
		return nil, &ModuleNotFoundError{Phase: phase, Path: moduleSource}
	}
	if err := copyTree(moduleSource, dir); err != nil {
		return nil, fmt.Errorf("failed to copy phase modules: %w", err)
	}

	shared := filepath.Join(s.ModuleRoot, sharedModulesDir)
	if info, err := os.Stat(shared); err == nil && info.IsDir() {
		if err := copyTree(shared, filepath.Join(dir, sharedModulesDir)); err != nil {
			return nil, fmt.Errorf("failed to copy shared modules: %w", err)
		}
	}

	statePath := s.StatePath(phase)
	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := s.writeBackend(dir, statePath); err != nil {
		return nil, err
	}
	if err := s.writeGeneratedVars(dir, vars); err != nil {
		return nil, err
	}

	if err := s.copyUserFiles(dir, phase); err != nil {
		return nil, err
	}
	if err := s.copyOverrides(dir, overrides); err != nil {
		return nil, err
	}

	return &StagingContext{
		Phase:        phase,
		Dir:          dir,
		StatePath:    statePath,
		ModuleSource: moduleSource,
		Vars:         vars,
	}, nil
}

func (s *Stager) writeBackend(dir, statePath string) error {
	content := fmt.Sprintf("terraform {\n  backend \"local\" {\n    path = %q\n  }\n}\n", statePath)
	if err := os.WriteFile(filepath.Join(dir, "backend.tf"), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write backend declaration: %w", err)
	}
	return nil
}

func (s *Stager) writeGeneratedVars(dir string, vars map[string]string) error {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("# Generated by apimctl. Do not edit; regenerated on every run.\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = %q\n", k, vars[k])
	}

	if err := os.WriteFile(filepath.Join(dir, generatedVarsFile), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write generated variables file: %w", err)
	}
	return nil
}

// copyUserFiles overlays user-authored files from the project root onto the
// staged tree. Variable files are shared across phases; supplemental .tf
// declarations apply to the main phase only.
func (s *Stager) copyUserFiles(dir, phase string) error {
	for _, pattern := range []string{"terraform.tfvars", "*.auto.tfvars", "*.auto.tfvars.json"} {
		matches, err := filepath.Glob(filepath.Join(s.cfg.RootDir, pattern))
		if err != nil {
			return fmt.Errorf("bad overlay pattern %q: %w", pattern, err)
		}
		for _, src := range matches {
			if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
				return fmt.Errorf("failed to copy overlay %s: %w", src, err)
			}
		}
	}

	if phase != PhaseMain {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(s.cfg.RootDir, "*.tf"))
	if err != nil {
		return fmt.Errorf("bad overlay pattern: %w", err)
	}
	for _, src := range matches {
		base := filepath.Base(src)
		if strings.HasPrefix(base, reservedPrefix) {
			continue
		}
		if err := copyFile(src, filepath.Join(dir, base)); err != nil {
			return fmt.Errorf("failed to copy overlay %s: %w", src, err)
		}
	}
	return nil
}

// copyOverrides injects explicitly supplied variable files. Only
// terraform.tfvars and *.auto.tfvars* names are accepted; anything else
// would create ambiguous load-order precedence inside the staged tree.
func (s *Stager) copyOverrides(dir string, overrides []string) error {
	for i, src := range overrides {
		base := filepath.Base(src)
		if !allowedOverride(base) {
			return &ConfigError{Msg: fmt.Sprintf(
				"override file %q not allowed: only terraform.tfvars and *.auto.tfvars files are accepted", src)}
		}
		if _, err := os.Stat(src); err != nil {
			return fmt.Errorf("override file not found: %s", src)
		}

		dest := base
		if base != config.VarsFile {
			// Numbered prefix pins load order: later overrides win.
			dest = fmt.Sprintf("90_override_%02d.auto.tfvars", i)
		}
		if err := copyFile(src, filepath.Join(dir, dest)); err != nil {
			return fmt.Errorf("failed to copy override %s: %w", src, err)
		}
	}
	return nil
}

func allowedOverride(name string) bool {
	return name == config.VarsFile || strings.Contains(name, ".auto.tfvars")
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

package cli

import (
	"fmt"
	"os"

	"github.com/apim-tools/apimctl/internal/config"
	"github.com/apim-tools/apimctl/internal/engine"
	"github.com/apim-tools/apimctl/internal/template"
)

// loadProject locates the project root from the working directory and loads
// its configuration. With optional set, a missing apigee.toml yields a
// default config rooted at the working directory.
func loadProject(optional bool) (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	root, err := config.FindRoot(wd)
	if err != nil {
		if !optional {
			return nil, fmt.Errorf("no %s found in %s or any parent directory (run 'apimctl init' first)", config.ConfigFile, wd)
		}
		root = wd
	}
	return config.Load(root, optional)
}

// loadTemplate resolves, parses and validates a named template. A residency
// or billing violation aborts here, before anything touches the project.
func loadTemplate(name string, cfg *config.Config) (*template.Template, error) {
	path, err := template.Resolve(name, cfg.RootDir, config.ModuleRoot())
	if err != nil {
		return nil, err
	}
	t, err := template.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return t, nil
}

func newOrchestrator(cfg *config.Config) *engine.Orchestrator {
	return engine.NewOrchestrator(cfg, engine.ExecRunner{})
}

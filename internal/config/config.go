package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFile is the project configuration file searched for in the working
// directory and its parents.
const ConfigFile = "apigee.toml"

// VarsFile is the user-authored variable file that anchors a project
// directory to a GCP project.
const VarsFile = "terraform.tfvars"

// ProjectConfig identifies the managed project.
type ProjectConfig struct {
	Name         string `toml:"name"`
	GCPProjectID string `toml:"gcp_project_id"`
	Nickname     string `toml:"nickname"`
}

// ApigeeConfig carries org-level settings.
type ApigeeConfig struct {
	BillingType          string `toml:"billing_type"`
	AnalyticsRegion      string `toml:"analytics_region"`
	ControlPlaneLocation string `toml:"control_plane_location"`
	ConsumerDataRegion   string `toml:"consumer_data_region"`
	InstanceName         string `toml:"instance_name"`
	StateSuffix          string `toml:"state_suffix"`
}

// NetworkConfig carries networking settings.
type NetworkConfig struct {
	Domain string `toml:"domain"`
}

// Config is the loaded project configuration.
type Config struct {
	Project ProjectConfig `toml:"project"`
	Apigee  ApigeeConfig  `toml:"apigee"`
	Network NetworkConfig `toml:"network"`

	// RootDir is the directory the config was loaded from. Overlay files
	// (terraform.tfvars, *.auto.tfvars) are picked up from here.
	RootDir string `toml:"-"`
}

// Load reads and parses apigee.toml from dir. When the file is absent and
// optional is true, a default config rooted at dir is returned so commands
// that only need path resolution keep working.
func Load(dir string, optional bool) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}

	cfg := &Config{RootDir: abs}
	path := filepath.Join(abs, ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && optional {
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.RootDir = abs
	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Project.Name == "" {
		cfg.Project.Name = "unnamed-project"
	}
	if cfg.Project.Nickname == "" {
		cfg.Project.Nickname = cfg.Project.Name
	}
	if cfg.Apigee.BillingType == "" {
		cfg.Apigee.BillingType = "EVALUATION"
	}
	if cfg.Project.GCPProjectID == "" {
		// The vars file is the historical home of the project id; honor it
		// when the TOML section leaves it blank.
		vars, err := LoadVars(filepath.Join(cfg.RootDir, VarsFile))
		if err == nil {
			cfg.Project.GCPProjectID = vars["gcp_project_id"]
		}
	}
}

// FindRoot walks from dir upward looking for apigee.toml and returns the
// first directory containing it.
func FindRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory: %w", err)
	}
	for cur := abs; ; cur = filepath.Dir(cur) {
		if _, err := os.Stat(filepath.Join(cur, ConfigFile)); err == nil {
			return cur, nil
		}
		if cur == filepath.Dir(cur) {
			return "", fmt.Errorf("could not find %s in %s or any parent", ConfigFile, abs)
		}
	}
}

// LoadVars reads a flat key = "value" tfvars file into a map. Only simple
// scalar assignments are recognized; block values are skipped. This is not an
// HCL parser and is not meant to be one; generated and user var files for
// this tool are flat by construction.
func LoadVars(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "{") || strings.HasPrefix(v, "[") {
			continue
		}
		v = strings.Trim(v, `"'`)
		vars[k] = v
	}
	return vars, nil
}

// WriteProjectID creates or rewrites the vars file with the given project id,
// preserving any other assignments already present.
func WriteProjectID(path, projectID string) error {
	lines := []string{fmt.Sprintf("gcp_project_id = %q", projectID)}

	if data, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			if strings.Contains(line, "gcp_project_id") {
				continue
			}
			lines = append(lines, line)
		}
	}

	content := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(path, []byte(content), 0o644)
}

package config

import (
	"os"
	"path/filepath"
)

// Environment overrides for the filesystem layout.
const (
	// EnvDataDir overrides the persisted-data root (state files).
	EnvDataDir = "APIGEE_TF_DATA_DIR"
	// EnvCacheDir overrides the ephemeral staging root.
	EnvCacheDir = "XDG_CACHE_HOME"
	// EnvModuleDir overrides where the packaged terraform modules live.
	EnvModuleDir = "APIGEE_TF_MODULE_DIR"
)

const appDir = "apigee-tf"

// DataDir returns the durable data root. State files live underneath it and
// survive cache wipes.
func DataDir() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", appDir)
}

// CacheDir returns the ephemeral staging root. Everything under it is safe to
// delete at any time.
func CacheDir() string {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		return filepath.Join(dir, appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cache", appDir)
}

// StatePath returns the persisted terraform state file for a project phase:
// <dataDir>/<project>[/<suffix>]/tf/<phase>/terraform.tfstate.
func StatePath(dataDir, projectID, phase, suffix string) string {
	root := filepath.Join(dataDir, projectID)
	if suffix != "" {
		root = filepath.Join(root, suffix)
	}
	return filepath.Join(root, "tf", phase, "terraform.tfstate")
}

// StagingDir returns the ephemeral staging directory for a project phase:
// <cacheDir>/<project>[/<suffix>]/tf/<phase>.
func StagingDir(cacheDir, projectID, phase, suffix string) string {
	root := filepath.Join(cacheDir, projectID)
	if suffix != "" {
		root = filepath.Join(root, suffix)
	}
	return filepath.Join(root, "tf", phase)
}

// ModuleRoot locates the packaged terraform module tree. Resolution order:
// explicit env override, a tf/ directory next to the executable, then tf/
// under the working directory (source checkouts).
func ModuleRoot() string {
	if dir := os.Getenv(EnvModuleDir); dir != "" {
		return dir
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "tf")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return filepath.Join(wd, "tf")
}

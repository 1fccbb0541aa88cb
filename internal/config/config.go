package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirName is the per-project directory holding config.json and the run ledger.
const DirName = ".pulsekit"

// Config holds application configuration.
// Directory fields are relative to the project root unless absolute.
type Config struct {
	// RawDataDir holds raw .npz captures.
	RawDataDir string `json:"raw_data_dir,omitempty"`

	// ProcessedDir holds extracted pulses files (.txt).
	ProcessedDir string `json:"processed_dir,omitempty"`

	// SelectionsDir holds selections.json and <stem>_selections.json files.
	SelectionsDir string `json:"selections_dir,omitempty"`

	// OutputsDir is the root for approved pulses, validation and analysis output.
	OutputsDir string `json:"outputs_dir,omitempty"`

	ApprovedSubdir   string `json:"approved_subdir,omitempty"`
	ValidationSubdir string `json:"validation_subdir,omitempty"`
	AnalysisSubdir   string `json:"analysis_subdir,omitempty"`

	// OutputFile is the default pulses file name written by extraction.
	OutputFile string `json:"output_file,omitempty"`

	// HistogramBins, UnitScale and UnitLabel control charge histograms.
	// UnitScale 1e9 with label "nC" reports nanocoulombs.
	HistogramBins int     `json:"histogram_bins,omitempty"`
	UnitScale     float64 `json:"unit_scale,omitempty"`
	UnitLabel     string  `json:"unit_label,omitempty"`

	// DisabledTools lists tool-server tools that are not registered.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RawDataDir:       filepath.Join("data", "raw"),
		ProcessedDir:     filepath.Join("data", "processed"),
		SelectionsDir:    filepath.Join("data", "selections"),
		OutputsDir:       "outputs",
		ApprovedSubdir:   "approved",
		ValidationSubdir: "validation",
		AnalysisSubdir:   "analysis",
		OutputFile:       "pulses.txt",
		HistogramBins:    20,
		UnitScale:        1e9,
		UnitLabel:        "nC",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithProject loads the global config from globalDir and the nearest
// project config found walking upward from startDir. Project values win.
// It returns the merged config and the project root (startDir when no
// project config exists). An empty globalDir skips the global config.
func LoadWithProject(globalDir, startDir string) (*Config, string, error) {
	global := &Config{}
	if globalDir != "" {
		var err error
		global, err = loadFileRaw(filepath.Join(globalDir, "config.json"))
		if err != nil {
			return nil, "", err
		}
	}

	root := startDir
	projectPath := FindProjectConfig(startDir)
	project := &Config{}
	if projectPath != "" {
		root = filepath.Dir(filepath.Dir(projectPath))
		var err error
		project, err = loadFileRaw(projectPath)
		if err != nil {
			return nil, "", err
		}
	}

	return Merge(Merge(DefaultConfig(), global), project), root, nil
}

// Save writes cfg to baseDir/config.json, creating baseDir if needed.
func Save(baseDir string, cfg *Config) error {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", baseDir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(baseDir, "config.json"), append(data, '\n'), 0644)
}

// FindProjectConfig walks upward from startDir to find the nearest .pulsekit/config.json.
// Returns the path if found, or empty string if not found.
func FindProjectConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs. Non-zero overlay values win.
func Merge(base, overlay *Config) *Config {
	result := *base

	pick := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	pick(&result.RawDataDir, overlay.RawDataDir)
	pick(&result.ProcessedDir, overlay.ProcessedDir)
	pick(&result.SelectionsDir, overlay.SelectionsDir)
	pick(&result.OutputsDir, overlay.OutputsDir)
	pick(&result.ApprovedSubdir, overlay.ApprovedSubdir)
	pick(&result.ValidationSubdir, overlay.ValidationSubdir)
	pick(&result.AnalysisSubdir, overlay.AnalysisSubdir)
	pick(&result.OutputFile, overlay.OutputFile)
	pick(&result.UnitLabel, overlay.UnitLabel)

	if overlay.HistogramBins != 0 {
		result.HistogramBins = overlay.HistogramBins
	}
	if overlay.UnitScale != 0 {
		result.UnitScale = overlay.UnitScale
	}
	if len(overlay.DisabledTools) > 0 {
		result.DisabledTools = append([]string(nil), overlay.DisabledTools...)
	}

	return &result
}

// Resolve returns a copy of c whose directories are absolute, relative paths
// being joined to root. It never touches the filesystem.
func (c *Config) Resolve(root string) *Config {
	out := *c
	abs := func(p string) string {
		p = filepath.FromSlash(strings.ReplaceAll(p, `\`, "/"))
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(root, p)
	}
	out.RawDataDir = abs(c.RawDataDir)
	out.ProcessedDir = abs(c.ProcessedDir)
	out.SelectionsDir = abs(c.SelectionsDir)
	out.OutputsDir = abs(c.OutputsDir)
	return &out
}

// ApprovedDir returns the folder for approved pulse exports.
func (c *Config) ApprovedDir() string { return filepath.Join(c.OutputsDir, c.ApprovedSubdir) }

// ValidationDir returns the folder for validation output.
func (c *Config) ValidationDir() string { return filepath.Join(c.OutputsDir, c.ValidationSubdir) }

// AnalysisDir returns the folder for analysis output.
func (c *Config) AnalysisDir() string { return filepath.Join(c.OutputsDir, c.AnalysisSubdir) }

// Dirs lists every directory the project layout needs.
func (c *Config) Dirs() []string {
	return []string{
		c.RawDataDir,
		c.ProcessedDir,
		c.SelectionsDir,
		c.OutputsDir,
		c.ApprovedDir(),
		c.ValidationDir(),
		c.AnalysisDir(),
	}
}

// EnsureDirs creates the project directory layout. It is the only place
// that creates data directories.
func EnsureDirs(c *Config) error {
	for _, dir := range c.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

package ops

import (
	"os"
	"path/filepath"

	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/errors"
)

// InitInput contains parameters for the Init operation.
type InitInput struct {
	ConfigDir string // optional, writes a default config.json here unless one exists
}

// InitOutput contains the result of the Init operation.
type InitOutput struct {
	Dirs          []string `json:"dirs"`
	ConfigPath    string   `json:"config_path,omitempty"`
	ConfigCreated bool     `json:"config_created"`
}

// Init creates the project directory layout.
func Init(cfg *config.Config, input InitInput) (*InitOutput, error) {
	if err := config.EnsureDirs(cfg); err != nil {
		return nil, errors.NewInternal(err)
	}
	out := &InitOutput{Dirs: cfg.Dirs()}

	if input.ConfigDir != "" {
		out.ConfigPath = filepath.Join(input.ConfigDir, "config.json")
		if _, err := os.Stat(out.ConfigPath); os.IsNotExist(err) {
			if err := config.Save(input.ConfigDir, config.DefaultConfig()); err != nil {
				return nil, errors.NewInternal(err)
			}
			out.ConfigCreated = true
		} else if err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	return out, nil
}

// FolderStatus describes one project folder.
type FolderStatus struct {
	Role   string `json:"role"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Files  int    `json:"files"`
	Ext    string `json:"ext,omitempty"`
}

// StatusOutput contains the result of the Status operation.
type StatusOutput struct {
	Folders []FolderStatus `json:"folders"`
}

// Status reports which project folders exist and how many data files each
// holds. It never creates anything.
func Status(cfg *config.Config) (*StatusOutput, error) {
	folders := []FolderStatus{
		{Role: "raw", Path: cfg.RawDataDir, Ext: ExtRaw},
		{Role: "processed", Path: cfg.ProcessedDir, Ext: ExtPulses},
		{Role: "selections", Path: cfg.SelectionsDir, Ext: ExtJSON},
		{Role: "approved", Path: cfg.ApprovedDir(), Ext: ExtPulses},
		{Role: "validation", Path: cfg.ValidationDir()},
		{Role: "analysis", Path: cfg.AnalysisDir(), Ext: ExtJSON},
	}

	for i := range folders {
		f := &folders[i]
		info, err := os.Stat(f.Path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.NewInternal(err)
		}
		if !info.IsDir() {
			continue
		}
		f.Exists = true

		if f.Ext == "" {
			entries, err := os.ReadDir(f.Path)
			if err != nil {
				return nil, errors.NewInternal(err)
			}
			f.Files = len(entries)
			continue
		}
		files, err := listFiles(f.Path, f.Ext)
		if err != nil {
			return nil, err
		}
		f.Files = len(files)
	}

	return &StatusOutput{Folders: folders}, nil
}

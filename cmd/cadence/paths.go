package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samcharles93/cadence/internal/workspace"
)

const envCadenceHome = "CADENCE_HOME"

// resolveWorkspaceDir picks the workspace root: the flag (or config), then
// $CADENCE_HOME, then the current directory.
func resolveWorkspaceDir(flag string) string {
	if dir := strings.TrimSpace(flag); dir != "" {
		return filepath.Clean(dir)
	}
	if dir := strings.TrimSpace(os.Getenv(envCadenceHome)); dir != "" {
		return filepath.Clean(dir)
	}
	return "."
}

func openWorkspace() (*workspace.Workspace, error) {
	return workspace.Open(resolveWorkspaceDir(workspaceDir))
}

// discoverMIDIFiles lists the .mid and .midi files directly inside dir,
// sorted by name.
func discoverMIDIFiles(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("data directory is empty")
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("data path is not a directory: %s", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".mid", ".midi":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

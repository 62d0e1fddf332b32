package task

import (
	"os"
	"path/filepath"

	"recap/internal/services"
)

// Workspace holds the four artifact directories owned by one task.
type Workspace struct {
	Root       string
	Raw        string
	Converted  string
	Transcript string
	Summary    string
}

// CreateWorkspace creates the raw/converted/transcript/summary directory
// layout for taskID under dataDir. Safe to call twice for the same task.
func CreateWorkspace(dataDir, taskID string) (Workspace, error) {
	root := filepath.Join(dataDir, taskID)
	ws := Workspace{
		Root:       root,
		Raw:        filepath.Join(root, "raw"),
		Converted:  filepath.Join(root, "converted"),
		Transcript: filepath.Join(root, "transcript"),
		Summary:    filepath.Join(root, "summary"),
	}
	for _, dir := range []string{ws.Raw, ws.Converted, ws.Transcript, ws.Summary} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Workspace{}, services.Wrap(services.ErrConfiguration, "workspace", "create", dir, err)
		}
	}
	return ws, nil
}

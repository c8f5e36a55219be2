package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxNoteSize = 1024 * 1024 // 1 MB

// SaveNoteTool writes a text note into the notes directory.
type SaveNoteTool struct {
	dir string
}

// NewSaveNoteTool creates the tool rooted at dir ("" means the working directory).
func NewSaveNoteTool(dir string) *SaveNoteTool {
	if dir == "" {
		dir = "."
	}
	return &SaveNoteTool{dir: dir}
}

func (t *SaveNoteTool) Def() ToolDef {
	return ToolDef{
		Name: "save_note",
		Description: "Saves a text note to a file. Use this to remember information for later. " +
			"The 'filename' should be a simple name like 'my_note.txt'. " +
			"The 'content' is the text you want to save.",
		Parameters: ToolParameters{
			Type: "object",
			Properties: map[string]ToolProperty{
				"filename": {
					Type:        "string",
					Description: "Simple file name, e.g. my_note.txt",
				},
				"content": {
					Type:        "string",
					Description: "Text to save",
				},
			},
			Required: []string{"filename", "content"},
		},
	}
}

type saveNoteArgs struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (t *SaveNoteTool) Call(_ context.Context, argsJSON string) string {
	var args saveNoteArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Sprintf("Failed to save note: invalid arguments: %v", err)
	}

	path, err := t.resolve(args.Filename)
	if err != nil {
		return fmt.Sprintf("Failed to save note: %v", err)
	}
	if len(args.Content) > maxNoteSize {
		return fmt.Sprintf("Failed to save note: content too large (%dKB, max 1MB)", len(args.Content)/1024)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("Failed to save note: %v", err)
		}
	}
	if err := os.WriteFile(path, []byte(args.Content), 0644); err != nil {
		return fmt.Sprintf("Failed to save note: %v", err)
	}
	return fmt.Sprintf("Note saved successfully as %s.", args.Filename)
}

// resolve maps a model-supplied file name to a path inside the notes dir.
func (t *SaveNoteTool) resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, `\`) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("filename %q must be relative to the notes directory", name)
	}
	clean := filepath.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("filename %q escapes the notes directory", name)
	}
	return filepath.Join(t.dir, clean), nil
}

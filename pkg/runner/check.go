package runner

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Check resolves the summarizer command and any script arguments that look
// like files. It returns the resolved executable path.
func (r *Runner) Check() (string, error) {
	path, err := exec.LookPath(r.Command)
	if err != nil {
		return "", fmt.Errorf("summarizer command %q not found: %w", r.Command, err)
	}
	slog.Debug("Summarizer command found", "path", path)

	for _, arg := range r.Args {
		if !looksLikeScript(arg) {
			continue
		}
		scriptPath := arg
		if !filepath.IsAbs(scriptPath) && r.Dir != "" {
			scriptPath = filepath.Join(r.Dir, scriptPath)
		}
		if _, err := os.Stat(scriptPath); err != nil {
			return path, fmt.Errorf("summarizer script %q: %w", scriptPath, err)
		}
	}

	return path, nil
}

func looksLikeScript(arg string) bool {
	switch filepath.Ext(arg) {
	case ".py", ".sh", ".js":
		return true
	}
	return false
}

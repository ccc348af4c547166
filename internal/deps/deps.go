package deps

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Requirement defines an external tool carat relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Fallbacks   []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Available   bool
	Resolved    string
	Detail      string
}

// Resolve locates an executable: explicit override first, then PATH, then the
// platform fallback locations. Returns "" when nothing is found.
func Resolve(req Requirement) string {
	if override := strings.TrimSpace(req.Command); override != "" {
		if resolved, err := exec.LookPath(override); err == nil {
			return resolved
		}
		if isExecutableFile(override) {
			return override
		}
		return ""
	}
	if resolved, err := exec.LookPath(req.Name); err == nil {
		return resolved
	}
	for _, candidate := range req.Fallbacks {
		if isExecutableFile(candidate) {
			return candidate
		}
	}
	return ""
}

// Check evaluates the provided requirements and reports availability.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
		}
		resolved := Resolve(req)
		if resolved == "" {
			status.Detail = fmt.Sprintf("binary %q not found", req.Name)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Resolved = resolved
		results = append(results, status)
	}
	return results
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

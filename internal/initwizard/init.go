// Package initwizard implements the `init` command: it introspects a
// project directory for obvious build/test/lint commands and emits a
// starter TOML config. It asks the user no questions.
package initwizard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// convention maps a marker file to the tasks it implies.
type convention struct {
	marker string
	tasks  []starterTask
}

type starterTask struct {
	name          string
	prompt        string
	verifyCommand string
}

var conventions = []convention{
	{
		marker: "go.mod",
		tasks: []starterTask{
			{"build", "Fix any compile errors so the module builds cleanly.", "go build ./..."},
			{"test", "Make the failing tests pass without weakening them.", "go test ./..."},
			{"lint", "Fix any issues reported by go vet.", "go vet ./..."},
		},
	},
	{
		marker: "package.json",
		tasks: []starterTask{
			{"build", "Fix any build errors.", "npm run build"},
			{"test", "Make the failing tests pass without weakening them.", "npm test"},
		},
	},
	{
		marker: "pyproject.toml",
		tasks: []starterTask{
			{"test", "Make the failing tests pass without weakening them.", "pytest"},
		},
	},
	{
		marker: "Makefile",
		tasks: []starterTask{
			{"build", "Fix whatever `make` reports as broken.", "make"},
		},
	},
}

// Generate introspects dir for recognizable build conventions and
// returns a starter TOML document. It never silently overwrites an
// existing file; the caller is responsible for refusing to write when
// one is already present at the destination.
func Generate(dir string) (string, error) {
	var tasks []starterTask
	seen := map[string]bool{}
	for _, c := range conventions {
		if _, err := os.Stat(filepath.Join(dir, c.marker)); err != nil {
			continue
		}
		for _, t := range c.tasks {
			if seen[t.name] {
				continue
			}
			seen[t.name] = true
			tasks = append(tasks, t)
		}
	}
	if len(tasks) == 0 {
		tasks = []starterTask{
			{"build", "Describe what this project's build step should do.", "true"},
		}
	}

	var b strings.Builder
	b.WriteString("[settings]\n")
	b.WriteString("check_interval = 5\n")
	b.WriteString("max_parallel_tasks = 4\n")
	b.WriteString("enable_parallel = true\n\n")

	for i, t := range tasks {
		fmt.Fprintf(&b, "[[tasks]]\n")
		fmt.Fprintf(&b, "name = %q\n", t.name)
		fmt.Fprintf(&b, "prompt = %q\n", t.prompt)
		fmt.Fprintf(&b, "verify_command = %q\n", t.verifyCommand)
		if i > 0 {
			fmt.Fprintf(&b, "depends_on = [%q]\n", tasks[i-1].name)
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

// WriteNew writes content to path, refusing if the file already exists.
func WriteNew(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing file: %s", path)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

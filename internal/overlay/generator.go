// Package overlay renders the environment-specific kustomize overlay from
// the portable template. The only transformation is replacing the __HOME__
// placeholder with the real home directory in each patch file; there is no
// conditional logic and no merging beyond that substitution.
package overlay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
)

// Generator renders a template directory into an overlay directory.
type Generator struct {
	// TemplateDir is the portable overlay source tree.
	TemplateDir string
	// OutputDir is deleted and recreated on every Render call so no stale
	// patch files survive a previous run with a different home path.
	OutputDir string
	// HomeDir replaces every occurrence of the __HOME__ placeholder.
	HomeDir string
}

// Render produces the overlay tree on disk. On any failure the output
// directory is removed again: a partial overlay is never valid and callers
// must treat failure as "overlay absent".
func (g Generator) Render(logger logr.Logger) error {
	if err := g.render(logger); err != nil {
		_ = os.RemoveAll(g.OutputDir)
		return err
	}
	return nil
}

func (g Generator) render(logger logr.Logger) error {
	info, err := os.Stat(g.TemplateDir)
	if err != nil {
		return fmt.Errorf("failed to read overlay template %s: %w", g.TemplateDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("overlay template %s is not a directory", g.TemplateDir)
	}

	if err := os.RemoveAll(g.OutputDir); err != nil {
		return fmt.Errorf("failed to remove previous overlay %s: %w", g.OutputDir, err)
	}
	if err := os.MkdirAll(g.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create overlay directory %s: %w", g.OutputDir, err)
	}

	rendered := 0
	err = filepath.WalkDir(g.TemplateDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(g.TemplateDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(g.OutputDir, rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			return os.MkdirAll(target, 0o755)
		}

		data, err := os.ReadFile(path) //#nosec G304 -- path comes from walking the template directory
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", path, err)
		}

		out := strings.ReplaceAll(string(data), constants.PlaceholderHome, g.HomeDir)

		if isYAML(rel) {
			if err := validateYAML([]byte(out)); err != nil {
				return fmt.Errorf("rendered overlay file %s is not valid YAML: %w", rel, err)
			}
		}

		if err := os.WriteFile(target, []byte(out), 0o644); err != nil {
			return fmt.Errorf("failed to write overlay file %s: %w", target, err)
		}

		rendered++
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Rendered overlay", "template", g.TemplateDir, "overlay", g.OutputDir, "files", rendered)
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// validateYAML checks every document in the rendered file so a broken
// template fails the render instead of failing later inside kubectl.
func validateYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc yaml.Node
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

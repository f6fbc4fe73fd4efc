// Package preflight checks that every container image the overlay
// references actually exists in its registry before anything is applied, so
// a typoed tag fails in seconds instead of surfacing as an
// ImagePullBackOff at the readiness gate minutes later.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"gopkg.in/yaml.v3"
)

// HeadFunc resolves an image descriptor from its registry. Injectable so
// tests run without network access.
type HeadFunc func(ref name.Reference, options ...remote.Option) (*v1.Descriptor, error)

// Checker verifies image references against their registries.
type Checker struct {
	Head HeadFunc
}

// NewChecker returns a Checker backed by the real registry client.
func NewChecker() *Checker {
	return &Checker{Head: remote.Head}
}

// CollectImages walks the rendered overlay and returns every distinct image
// reference found in its manifests, sorted.
func CollectImages(overlayDir string) ([]string, error) {
	seen := map[string]struct{}{}

	err := filepath.WalkDir(overlayDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		data, err := os.ReadFile(path) //#nosec G304 -- path comes from walking the overlay
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		for {
			var doc any
			if err := dec.Decode(&doc); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return fmt.Errorf("failed to parse %s: %w", path, err)
			}
			collectImageValues(doc, seen)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	images := make([]string, 0, len(seen))
	for img := range seen {
		images = append(images, img)
	}
	sort.Strings(images)
	return images, nil
}

// collectImageValues gathers string values of "image" keys anywhere in the
// decoded document tree.
func collectImageValues(node any, out map[string]struct{}) {
	switch v := node.(type) {
	case map[string]any:
		for key, val := range v {
			if key == "image" {
				if s, ok := val.(string); ok && s != "" {
					out[s] = struct{}{}
				}
				continue
			}
			collectImageValues(val, out)
		}
	case []any:
		for _, item := range v {
			collectImageValues(item, out)
		}
	}
}

// CheckImages issues a registry HEAD for every image reference. Images the
// registry reports as absent fail the check; registries that cannot be
// reached at all only warn, so an offline cluster with pre-pulled images
// still deploys.
func (c *Checker) CheckImages(ctx context.Context, logger logr.Logger, images []string) error {
	var missing []string

	for _, image := range images {
		ref, err := name.ParseReference(image)
		if err != nil {
			return fmt.Errorf("invalid image reference %q: %w", image, err)
		}

		_, err = c.Head(ref, remote.WithContext(ctx))
		if err == nil {
			logger.V(1).Info("Image present in registry", "image", image)
			continue
		}

		if isNotFound(err) {
			logger.Info("Image not found in registry", "image", image)
			missing = append(missing, image)
			continue
		}

		logger.Info("Warning: registry unreachable, skipping image check", "image", image, "error", err.Error())
	}

	if len(missing) > 0 {
		return fmt.Errorf("images not found in registry: %s", strings.Join(missing, ", "))
	}
	return nil
}

func isNotFound(err error) bool {
	var terr *transport.Error
	if errors.As(err, &terr) {
		return terr.StatusCode == http.StatusNotFound
	}
	return false
}

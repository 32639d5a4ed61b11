package catalog

import (
	"log/slog"
	"os"

	"github.com/civicpulse/civicpulse/pkg/apperr"
	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML shape of a catalog override file.
type catalogFile struct {
	Products []Product `yaml:"products"`
}

// Load builds the product registry. With an empty path the built-in
// catalog is used; otherwise the YAML file at path replaces it entirely.
func Load(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(Builtin())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, err, "reading catalog file %q", path)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, err, "parsing catalog file %q", path)
	}

	slog.Info("Loaded catalog override", "path", path, "products", len(file.Products))
	return NewRegistry(file.Products)
}

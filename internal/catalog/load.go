package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"quiz-session-service/internal/domain"
)

// Parse decodes a YAML or JSON catalog document and validates it. Unknown
// fields are rejected.
func Parse(data []byte) (domain.Catalog, error) {
	var c domain.Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return domain.Catalog{}, errors.Wrap(err, "decode catalog")
	}
	if err := Validate(c); err != nil {
		return domain.Catalog{}, err
	}
	return c, nil
}

// LoadFile reads one catalog file.
func LoadFile(path string) (domain.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, errors.Wrapf(err, "read catalog %s", path)
	}
	c, err := Parse(data)
	if err != nil {
		return domain.Catalog{}, errors.Wrapf(err, "load catalog %s", path)
	}
	return c, nil
}

// LoadDir reads every .yaml, .yml and .json file in dir. All broken files are
// reported together; catalog ids must be unique across the directory.
func LoadDir(dir string) (map[string]domain.Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog dir %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	catalogs := make(map[string]domain.Catalog, len(paths))
	sources := make(map[string]string, len(paths))
	var result *multierror.Error
	for _, path := range paths {
		c, err := LoadFile(path)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if prev, dup := sources[c.ID]; dup {
			result = multierror.Append(result, errors.Errorf("catalog %q defined in both %s and %s", c.ID, prev, path))
			continue
		}
		catalogs[c.ID] = c
		sources[c.ID] = path
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return catalogs, nil
}

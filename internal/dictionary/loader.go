package dictionary

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data
var embedded embed.FS

// DefaultVersion is the dictionary version used when none is configured
const DefaultVersion = "v1"

// domainFile is the on-disk layout of data/<version>/<domain>.yaml
type domainFile struct {
	Domain  Domain  `yaml:"domain"`
	Terms   []Term  `yaml:"terms"`
	Aliases []Alias `yaml:"aliases"`
}

// Embedded returns the dictionary tree compiled into the binary, rooted so
// that each top-level directory is a version.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		// fs.Sub only fails on an invalid path literal.
		panic(err)
	}
	return sub
}

// Load loads version from the embedded dictionary tree
func Load(version string) (*Dictionary, error) {
	return LoadFS(Embedded(), version)
}

// LoadFS loads version from fsys, where each version is a directory holding
// one YAML file per domain.
func LoadFS(fsys fs.FS, version string) (*Dictionary, error) {
	version = strings.TrimSpace(version)
	if version == "" || !fs.ValidPath(version) || strings.Contains(version, "/") {
		return nil, fmt.Errorf("%w: %q", ErrVersionNotFound, version)
	}

	entries, err := fs.ReadDir(fsys, version)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrVersionNotFound, version)
		}
		return nil, fmt.Errorf("failed to read dictionary directory %s: %w", version, err)
	}

	var terms []Term
	var aliases []Alias
	var problems []error

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		name := path.Join(version, entry.Name())
		file, err := readDomainFile(fsys, name)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		for _, term := range file.Terms {
			term.Domain = file.Domain
			terms = append(terms, term)
		}
		for _, alias := range file.Aliases {
			alias.Domain = file.Domain
			aliases = append(aliases, alias)
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidDictionary, version, errors.Join(problems...))
	}

	dict, err := New(version, terms, aliases)
	if err != nil {
		return nil, err
	}
	slog.Debug("Loaded dictionary", "version", version, "terms", len(terms), "aliases", len(aliases))
	return dict, nil
}

func readDomainFile(fsys fs.FS, name string) (domainFile, error) {
	var file domainFile
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return file, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if !file.Domain.Valid() {
		return file, fmt.Errorf("%s: %w: %q", name, ErrUnknownDomain, file.Domain)
	}
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	if base != string(file.Domain) {
		return file, fmt.Errorf("%s: file declares domain %q", name, file.Domain)
	}
	return file, nil
}

func isYAML(name string) bool {
	ext := path.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// Versions lists the version directories present in fsys in sorted order
func Versions(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list dictionary versions: %w", err)
	}
	var versions []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			versions = append(versions, entry.Name())
		}
	}
	slices.Sort(versions)
	return versions, nil
}

// Validate loads version from fsys and reports every structural problem.
func Validate(fsys fs.FS, version string) error {
	_, err := LoadFS(fsys, version)
	return err
}

// Catalog holds every dictionary version of a tree, loaded once.
type Catalog struct {
	versions []string
	dicts    map[string]*Dictionary
}

// OpenCatalog eagerly loads every version in fsys. Any invalid version fails the whole catalog.
func OpenCatalog(fsys fs.FS) (*Catalog, error) {
	versions, err := Versions(fsys)
	if err != nil {
		return nil, err
	}
	c := &Catalog{versions: versions, dicts: make(map[string]*Dictionary, len(versions))}
	for _, version := range versions {
		dict, err := LoadFS(fsys, version)
		if err != nil {
			return nil, err
		}
		c.dicts[version] = dict
	}
	return c, nil
}

// Get returns the loaded dictionary for version
func (c *Catalog) Get(version string) (*Dictionary, error) {
	dict, ok := c.dicts[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrVersionNotFound, version)
	}
	return dict, nil
}

// Versions returns the loaded versions in sorted order
func (c *Catalog) Versions() []string {
	return slices.Clone(c.versions)
}

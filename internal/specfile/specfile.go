// Package specfile loads a bintest suite from disk. A suite is a directory
// (or a single file) containing an optional bintest.toml/bintest.yaml with
// suite-level defaults and one or more sibling spec files, each holding an
// ordered list of tests. Format is picked by extension: .toml decodes with
// github.com/pelletier/go-toml/v2, .yaml/.yml with gopkg.in/yaml.v3.
//
// Grounded on the teacher's own config loader
// (internal/runner/config/config.go reads a single TOML document into a
// typed struct); this package generalizes that to a directory of documents
// plus a second wire format, and adds the doc->model conversion step the
// teacher's flatter config shape never needed.
package specfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/bintest/bintest/internal/bterrors"
	"github.com/bintest/bintest/internal/dbpool"
	"github.com/bintest/bintest/internal/model"
)

const (
	suiteStemTOML = "bintest.toml"
	suiteStemYAML = "bintest.yaml"
	suiteStemYML  = "bintest.yml"
)

// Load reads path, which is either a single spec file or a directory
// containing spec files and optionally a suite config (spec.md §6: "run
// <path> - path is a spec file or a directory containing spec files and
// optionally bintest.yaml"), and returns a fully assembled, validated Suite.
func Load(path string) (*model.Suite, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bterrors.ErrSpec, err)
	}

	var suite *model.Suite
	if info.IsDir() {
		suite, err = loadDir(path)
	} else {
		suite, err = loadSingleFile(path)
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(suite); err != nil {
		return nil, err
	}
	return suite, nil
}

func loadSingleFile(path string) (*model.Suite, error) {
	file, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return &model.Suite{Files: []*model.File{file}}, nil
}

func loadDir(dir string) (*model.Suite, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bterrors.ErrSpec, err)
	}

	suite := &model.Suite{}
	var specPaths []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !isSpecExt(name) {
			continue
		}
		full := filepath.Join(dir, name)
		switch name {
		case suiteStemTOML, suiteStemYAML, suiteStemYML:
			ds, err := decodeSuite(full)
			if err != nil {
				return nil, err
			}
			merged, err := convertSuite(*ds)
			if err != nil {
				return nil, err
			}
			suite = merged
		default:
			specPaths = append(specPaths, full)
		}
	}

	sort.Strings(specPaths)

	seenNames := map[string]bool{}
	for _, p := range specPaths {
		file, err := decodeFile(p)
		if err != nil {
			return nil, err
		}
		if seenNames[file.Path] {
			return nil, fmt.Errorf("%w: duplicate spec file path %q", bterrors.ErrSpec, file.Path)
		}
		seenNames[file.Path] = true
		suite.Files = append(suite.Files, file)
	}

	if len(suite.Files) == 0 {
		return nil, fmt.Errorf("%w: no spec files found in %s", bterrors.ErrSpec, dir)
	}

	return suite, nil
}

func decodeSuite(path string) (*docSuite, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bterrors.ErrSpec, err)
	}
	doc := &docSuite{}
	if err := unmarshal(path, raw, doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", bterrors.ErrSpec, path, err)
	}
	return doc, nil
}

func decodeFile(path string) (*model.File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bterrors.ErrSpec, err)
	}
	doc := &docFile{}
	if err := unmarshal(path, raw, doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", bterrors.ErrSpec, path, err)
	}
	return convertFile(*doc, path)
}

func unmarshal(path string, raw []byte, target any) error {
	switch ext(path) {
	case ".toml":
		return toml.Unmarshal(raw, target)
	case ".yaml", ".yml":
		return yaml.Unmarshal(raw, target)
	default:
		return fmt.Errorf("unrecognized spec file extension")
	}
}

func isSpecExt(name string) bool {
	switch ext(name) {
	case ".toml", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Validate checks structural invariants that span the whole suite, beyond
// what doc->model conversion already caught per-document: duplicate test
// names within a file (checked during conversion), binary existence, and
// isolation: per_file restricted to sqlite (spec.md §3).
func Validate(suite *model.Suite) error {
	if err := dbpool.ValidateIsolation(suite.Databases); err != nil {
		return err
	}

	for _, file := range suite.Files {
		if err := dbpool.ValidateIsolation(file.Databases); err != nil {
			return err
		}
		binary := file.Binary
		if binary == "" {
			binary = suite.Binary
		}
		if binary != "" {
			if _, err := os.Stat(binary); err != nil && !strings.Contains(binary, "$") {
				return fmt.Errorf("%w: %s: binary %q: %v", bterrors.ErrSpec, file.Path, binary, err)
			}
		}
		for _, test := range file.Tests {
			if len(test.Steps) == 0 {
				return fmt.Errorf("%w: %s: test %q has no steps", bterrors.ErrSpec, file.Path, test.Name)
			}
		}
	}
	return nil
}

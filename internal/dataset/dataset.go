// Package dataset reads and writes archive dumps: a directory holding
// users.yaml and posts.yaml.
//
// A dump is what `archivist export` writes and what the mirror server and
// the test fake origin serve from. Index answers the origin's queries over a
// loaded dump.
package dataset

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/archivist/internal/model"
)

// File names inside a dataset directory.
const (
	UsersFile = "users.yaml"
	PostsFile = "posts.yaml"
)

// Dataset is a set of users and posts.
type Dataset struct {
	Users []model.User `yaml:"users"`
	Posts []model.Post `yaml:"posts"`
}

// Load reads a dataset directory. A missing file is treated as empty so a
// directory with only posts.yaml is valid.
// Unknown YAML fields are rejected to catch typos.
func Load(dir string) (*Dataset, error) {
	var ds Dataset

	if err := readFile(filepath.Join(dir, UsersFile), &ds.Users); err != nil {
		return nil, err
	}
	if err := readFile(filepath.Join(dir, PostsFile), &ds.Posts); err != nil {
		return nil, err
	}

	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset %s: %w", dir, err)
	}
	return &ds, nil
}

// Save writes the dataset into dir, creating it if needed. Records are
// written sorted by ID so repeated exports of the same archive are
// byte-identical.
func (ds *Dataset) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	users := slices.Clone(ds.Users)
	slices.SortFunc(users, func(a, b model.User) int { return cmp.Compare(a.ID, b.ID) })
	posts := slices.Clone(ds.Posts)
	slices.SortFunc(posts, func(a, b model.Post) int { return cmp.Compare(a.ID, b.ID) })

	if err := writeFile(filepath.Join(dir, UsersFile), users); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, PostsFile), posts)
}

// Validate checks every record and rejects duplicate IDs.
func (ds *Dataset) Validate() error {
	var errs []error

	users := make(map[uint64]bool, len(ds.Users))
	for i, u := range ds.Users {
		if err := u.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("users[%d]: %w", i, err))
			continue
		}
		if users[u.ID] {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate id %d", i, u.ID))
		}
		users[u.ID] = true
	}

	posts := make(map[uint64]bool, len(ds.Posts))
	for i, p := range ds.Posts {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("posts[%d]: %w", i, err))
			continue
		}
		if posts[p.ID] {
			errs = append(errs, fmt.Errorf("posts[%d]: duplicate id %d", i, p.ID))
		}
		posts[p.ID] = true
	}

	return errors.Join(errs...)
}

func readFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeFile(path string, v any) error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

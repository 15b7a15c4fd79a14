package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/desertthunder/rdex/internal/shared"
)

// Snapshot collection names, matching the layout under output/rde/data.
const (
	ListDatasets    = "dataset"
	ListSubgroups   = "subGroup"
	ListSelf        = "self"
	ListInstruments = "instruments"
	ListTemplates   = "template"
	ListLicenses    = "licenses"

	KindDatasets       = "datasets"
	KindDataEntries    = "dataEntry"
	KindSamples        = "samples"
	KindGroups         = "subGroups"
	KindInvoiceSchemas = "invoiceSchemas"
	KindInvoices       = "invoice"
)

// SnapshotStore caches raw API responses as JSON files. Bytes are stored exactly as fetched so
// every field present at fetch time survives a reload.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore returns a store rooted at dir.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

// Dir returns the root directory.
func (s *SnapshotStore) Dir() string { return s.dir }

// ListPath is the file holding a whole collection, e.g. dataset.json.
func (s *SnapshotStore) ListPath(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Path is the file holding one resource, e.g. datasets/{id}.json.
func (s *SnapshotStore) Path(kind, id string) string {
	return filepath.Join(s.dir, kind, id+".json")
}

// SaveList writes a collection response.
func (s *SnapshotStore) SaveList(name string, raw []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	return s.write(s.ListPath(name), raw)
}

// LoadList reads a collection response.
func (s *SnapshotStore) LoadList(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return s.read(s.ListPath(name))
}

// Save writes one resource response.
func (s *SnapshotStore) Save(kind, id string, raw []byte) error {
	if err := checkName(kind); err != nil {
		return err
	}
	if err := checkName(id); err != nil {
		return err
	}
	return s.write(s.Path(kind, id), raw)
}

// Load reads one resource response.
func (s *SnapshotStore) Load(kind, id string) ([]byte, error) {
	if err := checkName(kind); err != nil {
		return nil, err
	}
	if err := checkName(id); err != nil {
		return nil, err
	}
	return s.read(s.Path(kind, id))
}

// Exists reports whether a resource snapshot is on disk.
func (s *SnapshotStore) Exists(kind, id string) bool {
	_, err := os.Stat(s.Path(kind, id))
	return err == nil
}

// IDs lists the resource ids cached under kind, sorted.
func (s *SnapshotStore) IDs(kind string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, kind))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	slices.Sort(ids)
	return ids, nil
}

// DataFilePath is where a downloaded data file goes: dataFiles/{grant}/{dataset}/{name}.
func (s *SnapshotStore) DataFilePath(grantNumber, datasetName, fileName string) string {
	return filepath.Join(s.dir, "dataFiles", SafeName(grantNumber), SafeName(datasetName), SafeName(fileName))
}

func (s *SnapshotStore) write(path string, raw []byte) error {
	if !json.Valid(raw) {
		return fmt.Errorf("%w: snapshot %s is not valid JSON", shared.ErrInvalidInput, filepath.Base(path))
	}
	if err := shared.WriteFileAtomic(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no snapshot at %s", shared.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return data, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid snapshot name %q", shared.ErrInvalidArgument, name)
	}
	return nil
}

// SafeName replaces characters that are not allowed in Windows or POSIX file names.
func SafeName(name string) string {
	name = strings.TrimSpace(name)
	switch name {
	case "":
		return "unknown"
	case ".", "..":
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		}
		return r
	}, name)
}

package mcprt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists tool definitions as one <name>.json file each under a data
// directory. Writes go through a temp file and os.Rename, so a concurrent
// Load never observes a half-written record.
type Store struct {
	dir string
}

// NewStore creates the data directory if needed and returns a store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tool data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Save writes the complete definition, replacing any existing record.
func (s *Store) Save(def *ToolDefinition) error {
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("saving tool %s: %w", def.Name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+def.Name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("saving tool %s: %w", def.Name, err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("saving tool %s: %w", def.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("saving tool %s: %w", def.Name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(def.Name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("saving tool %s: %w", def.Name, err)
	}
	return nil
}

// Load reads one definition. A missing record returns (nil, nil); a record
// that exists but fails structural validation returns ErrCorrupt. The two
// cases are distinct: the first means the name is free, the second means
// stored data needs attention.
func (s *Store) Load(name string) (*ToolDefinition, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading tool %s: %w", name, err)
	}

	var def ToolDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("tool %s: %w: %v", name, ErrCorrupt, err)
	}
	if err := validateDefinition(&def, name); err != nil {
		return nil, fmt.Errorf("tool %s: %w: %v", name, ErrCorrupt, err)
	}
	return &def, nil
}

// LoadAll reads every record in the directory. Entries that are not tool
// records (wrong extension, dotfiles, subdirectories) are skipped silently,
// but a corrupt record fails the whole call: silently dropping one from a
// bulk listing could mask data loss.
func (s *Store) LoadAll() (map[string]*ToolDefinition, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing tool data dir: %w", err)
	}

	out := make(map[string]*ToolDefinition)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		def, err := s.Load(name)
		if err != nil {
			return nil, err
		}
		if def != nil {
			out[name] = def
		}
	}
	return out, nil
}

// Delete removes a record. Deleting an already-absent record is a no-op.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting tool %s: %w", name, err)
	}
	return nil
}

func validateDefinition(def *ToolDefinition, name string) error {
	if def.Name != name {
		return fmt.Errorf("record name %q does not match file name %q", def.Name, name)
	}
	if !ValidToolName(def.Name) {
		return fmt.Errorf("invalid tool name %q", def.Name)
	}
	if def.SQLTemplate == "" {
		return fmt.Errorf("missing sql_template")
	}
	if def.SQLPrepared == "" {
		return fmt.Errorf("missing sql_prepared")
	}
	for _, p := range def.ParameterOrder {
		if !paramNameRe.MatchString(p) {
			return fmt.Errorf("invalid parameter name %q", p)
		}
	}
	return nil
}

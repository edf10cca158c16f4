package sets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/guarzo/pkmprice/internal/model"
)

// MappingSuffix is the file name suffix LoadDir picks up.
const MappingSuffix = "_set_mappings.json"

// Mapping is one entry of a mappings file.
type Mapping struct {
	Name string `json:"name,omitempty"`
	ID   string `json:"id"`
	Code string `json:"code"`
}

// LoadDir reads every *_set_mappings.json file in dir into one table.
// Files are read in name order; a missing dir yields an empty table.
func LoadDir(dir string) (Table, error) {
	t := Table{}
	if dir == "" {
		return t, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*"+MappingSuffix))
	if err != nil {
		return nil, fmt.Errorf("glob mappings: %w", err)
	}
	if len(files) == 0 {
		if _, err := os.Stat(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat mappings dir: %w", err)
		}
		return t, nil
	}
	sort.Strings(files)

	for _, f := range files {
		mappings, err := readMappings(f)
		if err != nil {
			return nil, err
		}
		for _, m := range mappings {
			if m.Code == "" || m.ID == "" {
				continue
			}
			code := normalize(m.Code)
			if _, dup := t[code]; !dup {
				t[code] = m.ID
			}
		}
	}
	return t, nil
}

func readMappings(path string) ([]Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var out []Mapping
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

// FromSets builds a table from the catalog's set list using each set's
// ptcgoCode. Sets without a code are skipped.
func FromSets(list []model.Set) Table {
	t := Table{}
	for _, s := range list {
		if s.PtcgoCode == "" {
			continue
		}
		code := normalize(s.PtcgoCode)
		if _, dup := t[code]; !dup {
			t[code] = s.ID
		}
	}
	return t
}

// WriteMappings writes the sets that carry a ptcgoCode to path in the
// mappings file format, sorted by code.
func WriteMappings(path string, list []model.Set) error {
	withCode := lo.Filter(list, func(s model.Set, _ int) bool { return s.PtcgoCode != "" })
	mappings := lo.Map(withCode, func(s model.Set, _ int) Mapping {
		return Mapping{Name: s.Name, ID: s.ID, Code: strings.ToUpper(s.PtcgoCode)}
	})
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].Code < mappings[j].Code })

	data, err := json.MarshalIndent(mappings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mappings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create mappings dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

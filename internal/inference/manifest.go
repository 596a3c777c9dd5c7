package inference

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/tphakala/segmentlab/internal/errors"
)

// ReadManifest loads class names from a class_names.json file. Both a JSON
// array and an object keyed by class index are accepted.
func ReadManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(fmt.Errorf("%w: %s", errors.ErrMissingClassManifest, path)).
				Component("inference").
				Category(errors.CategoryModelLoad).
				Build()
		}
		return nil, errors.New(err).Component("inference").Category(errors.CategoryFileIO).Build()
	}

	names, err := parseManifest(data)
	if err != nil {
		return nil, errors.New(fmt.Errorf("parse %s: %w", path, err)).
			Component("inference").
			Category(errors.CategoryModelLoad).
			Build()
	}
	if len(names) == 0 {
		return nil, errors.New(fmt.Errorf("%w: %s lists no classes", errors.ErrMissingClassManifest, path)).
			Component("inference").
			Category(errors.CategoryModelLoad).
			Build()
	}
	return names, nil
}

func parseManifest(data []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var byIndex map[string]string
	if err := json.Unmarshal(data, &byIndex); err != nil {
		return nil, fmt.Errorf("expected array or index map: %w", err)
	}
	idx := make([]int, 0, len(byIndex))
	for k := range byIndex {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("invalid class index %q", k)
		}
		idx = append(idx, i)
	}
	sort.Ints(idx)
	names := make([]string, len(idx))
	for pos, i := range idx {
		if i != pos {
			return nil, fmt.Errorf("class indices are not dense at %d", pos)
		}
		names[pos] = byIndex[strconv.Itoa(i)]
	}
	return names, nil
}

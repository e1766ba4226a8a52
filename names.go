package geopackage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// maxNameAttempts bounds the search for a free catalog name.
const maxNameAttempts = 10000

// CreateName derives a new name for a dependent object (index, trigger, view)
// when its table is copied: every occurrence of replace in name becomes
// replacement. When that leaves the name unchanged, a numeric suffix is
// appended or incremented instead ("idx" -> "idx_2", "idx_2" -> "idx_3").
//
// With a non-nil catalog the counter keeps increasing until no catalog entry
// has the candidate name.
func CreateName(ctx context.Context, catalog Catalog, name, replace, replacement string) (string, error) {
	newName := name
	if replace != "" {
		newName = strings.ReplaceAll(name, replace, replacement)
	}

	base, counter := newName, 1
	if newName == name {
		base, counter = splitNameCounter(name)
		counter++
		newName = numberedName(base, counter)
	} else {
		base, counter = splitNameCounter(newName)
	}

	if catalog == nil {
		return newName, nil
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		n, err := catalog.CountByName(ctx, newName)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return newName, nil
		}
		counter++
		newName = numberedName(base, counter)
	}
	return "", fmt.Errorf("%w: no free name derived from %q after %d attempts", ErrDefinition, name, maxNameAttempts)
}

// splitNameCounter splits a trailing "_<digits>" suffix off name. Names
// without a suffix count as 1.
func splitNameCounter(name string) (string, int) {
	i := strings.LastIndexByte(name, '_')
	if i < 0 || i == len(name)-1 {
		return name, 1
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil || n < 0 || strings.HasPrefix(name[i+1:], "+") {
		return name, 1
	}
	return name[:i], n
}

func numberedName(base string, counter int) string {
	return base + "_" + strconv.Itoa(counter)
}

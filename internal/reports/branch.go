package reports

import (
	"errors"
	"fmt"
	"strings"
)

// BranchID identifies a sucursal whose report tables live under its own suffix.
type BranchID string

// AllBranches is the synthetic aggregate identifier. It is expanded into the
// concrete catalogue and never reaches the store.
const AllBranches BranchID = "todas"

var (
	// ErrUnknownBranch is returned when an identifier is not part of the catalogue.
	ErrUnknownBranch = errors.New("reports: unknown branch")
	// ErrEmptyCatalog is returned when no concrete branch is configured.
	ErrEmptyCatalog = errors.New("reports: branch catalog is empty")
)

// IsAggregate reports whether the identifier is the "all branches" sentinel.
func (b BranchID) IsAggregate() bool {
	return b == AllBranches
}

func (b BranchID) String() string {
	return string(b)
}

// Catalog is the fixed, ordered set of concrete branches.
type Catalog struct {
	branches []BranchID
	index    map[BranchID]struct{}
}

// NewCatalog normalises identifiers and rejects duplicates and the sentinel.
func NewCatalog(ids []string) (*Catalog, error) {
	c := &Catalog{index: make(map[BranchID]struct{}, len(ids))}
	for _, raw := range ids {
		id := BranchID(strings.ToLower(strings.TrimSpace(raw)))
		if id == "" {
			continue
		}
		if id.IsAggregate() {
			return nil, fmt.Errorf("reports: %q is reserved for the aggregate view", AllBranches)
		}
		if _, dup := c.index[id]; dup {
			return nil, fmt.Errorf("reports: duplicate branch %q", id)
		}
		c.index[id] = struct{}{}
		c.branches = append(c.branches, id)
	}
	if len(c.branches) == 0 {
		return nil, ErrEmptyCatalog
	}
	return c, nil
}

// Branches returns a copy of the concrete identifiers in configured order.
func (c *Catalog) Branches() []BranchID {
	out := make([]BranchID, len(c.branches))
	copy(out, c.branches)
	return out
}

// Parse resolves user input to a catalogue identifier. Empty input selects the
// aggregate view.
func (c *Catalog) Parse(raw string) (BranchID, error) {
	id := BranchID(strings.ToLower(strings.TrimSpace(raw)))
	if id == "" || id.IsAggregate() {
		return AllBranches, nil
	}
	if _, ok := c.index[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBranch, raw)
	}
	return id, nil
}

// Expand returns the concrete branches a selection covers.
func (c *Catalog) Expand(id BranchID) []BranchID {
	if id.IsAggregate() {
		return c.Branches()
	}
	return []BranchID{id}
}

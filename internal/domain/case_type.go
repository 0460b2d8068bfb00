package domain

import (
	"fmt"
	"sort"
	"strings"
)

// CaseTypeCatalog is the authoritative case-type to priority-class table,
// together with the per-class wait baselines used for estimates.
type CaseTypeCatalog struct {
	caseTypes        map[string]PriorityClass
	baseWaitMinutes  map[PriorityClass]int
	perPersonMinutes int
}

// NewCaseTypeCatalog validates and freezes the given tables.
func NewCaseTypeCatalog(caseTypes map[string]PriorityClass, baseWait map[PriorityClass]int, perPersonMinutes int) (*CaseTypeCatalog, error) {
	if len(caseTypes) == 0 {
		return nil, fmt.Errorf("case type table is empty")
	}
	if perPersonMinutes < 0 {
		return nil, fmt.Errorf("per person minutes must not be negative")
	}
	catalog := &CaseTypeCatalog{
		caseTypes:        make(map[string]PriorityClass, len(caseTypes)),
		baseWaitMinutes:  make(map[PriorityClass]int, len(PriorityClasses)),
		perPersonMinutes: perPersonMinutes,
	}
	for _, class := range PriorityClasses {
		minutes, ok := baseWait[class]
		if !ok {
			return nil, fmt.Errorf("missing base wait for class %s", class)
		}
		if minutes < 0 {
			return nil, fmt.Errorf("base wait for class %s must not be negative", class)
		}
		catalog.baseWaitMinutes[class] = minutes
	}
	for name, class := range caseTypes {
		key := NormalizeCaseType(name)
		if key == "" {
			return nil, fmt.Errorf("case type name must not be empty")
		}
		if !class.Valid() {
			return nil, fmt.Errorf("case type %q has unknown class %q", name, class)
		}
		if _, dup := catalog.caseTypes[key]; dup {
			return nil, fmt.Errorf("case type %q declared twice", key)
		}
		catalog.caseTypes[key] = class
	}
	return catalog, nil
}

// NormalizeCaseType trims and lower-cases a case type name.
func NormalizeCaseType(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup resolves the class for a case type.
func (c *CaseTypeCatalog) Lookup(caseType string) (PriorityClass, bool) {
	class, ok := c.caseTypes[NormalizeCaseType(caseType)]
	return class, ok
}

// BaseWaitMinutes returns the baseline wait for class.
func (c *CaseTypeCatalog) BaseWaitMinutes(class PriorityClass) int {
	return c.baseWaitMinutes[class]
}

// PerPersonMinutes returns the wait added per ticket ahead.
func (c *CaseTypeCatalog) PerPersonMinutes() int {
	return c.perPersonMinutes
}

// CaseTypes returns the known case type names sorted alphabetically.
func (c *CaseTypeCatalog) CaseTypes() []string {
	names := make([]string, 0, len(c.caseTypes))
	for name := range c.caseTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package domain

import "testing"

func defaultBaseWait() map[PriorityClass]int {
	return map[PriorityClass]int{
		PriorityClassA: 15,
		PriorityClassB: 30,
		PriorityClassC: 45,
		PriorityClassD: 60,
	}
}

func TestCaseTypeCatalogLookup(t *testing.T) {
	catalog, err := NewCaseTypeCatalog(map[string]PriorityClass{
		"Eviction_Response": PriorityClassB,
		"fee_waiver":        PriorityClassD,
	}, defaultBaseWait(), 5)
	if err != nil {
		t.Fatalf("NewCaseTypeCatalog: %v", err)
	}

	class, ok := catalog.Lookup("  EVICTION_RESPONSE ")
	if !ok || class != PriorityClassB {
		t.Fatalf("Lookup = %s, %v", class, ok)
	}
	if _, ok := catalog.Lookup("unknown"); ok {
		t.Fatal("unknown case type resolved")
	}
	if got := catalog.BaseWaitMinutes(PriorityClassC); got != 45 {
		t.Fatalf("BaseWaitMinutes(C) = %d", got)
	}
	names := catalog.CaseTypes()
	if len(names) != 2 || names[0] != "eviction_response" || names[1] != "fee_waiver" {
		t.Fatalf("CaseTypes = %v", names)
	}
}

func TestCaseTypeCatalogRejectsBadTables(t *testing.T) {
	missingClass := defaultBaseWait()
	delete(missingClass, PriorityClassD)

	tests := []struct {
		name      string
		caseTypes map[string]PriorityClass
		baseWait  map[PriorityClass]int
		perPerson int
	}{
		{"empty", map[string]PriorityClass{}, defaultBaseWait(), 5},
		{"unknown class", map[string]PriorityClass{"x": "Z"}, defaultBaseWait(), 5},
		{"duplicate after normalize", map[string]PriorityClass{"X": PriorityClassA, " x": PriorityClassB}, defaultBaseWait(), 5},
		{"missing base wait", map[string]PriorityClass{"x": PriorityClassA}, missingClass, 5},
		{"negative per person", map[string]PriorityClass{"x": PriorityClassA}, defaultBaseWait(), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCaseTypeCatalog(tt.caseTypes, tt.baseWait, tt.perPerson); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

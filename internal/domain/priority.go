package domain

import (
	"fmt"
	"strings"
)

// PriorityClass is a service tier; A is the most urgent.
type PriorityClass string

const (
	PriorityClassA PriorityClass = "A"
	PriorityClassB PriorityClass = "B"
	PriorityClassC PriorityClass = "C"
	PriorityClassD PriorityClass = "D"
)

// PriorityClasses lists every class in rank order.
var PriorityClasses = []PriorityClass{PriorityClassA, PriorityClassB, PriorityClassC, PriorityClassD}

var classRanks = map[PriorityClass]int{
	PriorityClassA: 1,
	PriorityClassB: 2,
	PriorityClassC: 3,
	PriorityClassD: 4,
}

// Rank returns the class position, lower served first. Unknown classes rank 0.
func (c PriorityClass) Rank() int {
	return classRanks[c]
}

// Valid reports whether c is a known class.
func (c PriorityClass) Valid() bool {
	_, ok := classRanks[c]
	return ok
}

// ParsePriorityClass accepts a class label in any case.
func ParsePriorityClass(raw string) (PriorityClass, error) {
	class := PriorityClass(strings.ToUpper(strings.TrimSpace(raw)))
	if !class.Valid() {
		return "", fmt.Errorf("unknown priority class %q", raw)
	}
	return class, nil
}

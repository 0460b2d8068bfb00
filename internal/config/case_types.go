package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/visitor-queue/internal/domain"
)

//go:embed case_types.yaml
var defaultCaseTypes []byte

// caseTypeFile mirrors the YAML layout of the case-type catalog.
type caseTypeFile struct {
	PerPersonMinutes *int                   `yaml:"per_person_minutes"`
	Classes          map[string]classConfig `yaml:"classes"`
	CaseTypes        map[string]string      `yaml:"case_types"`
}

type classConfig struct {
	BaseWaitMinutes int `yaml:"base_wait_minutes"`
}

// LoadCaseTypeCatalog reads the catalog from path, or the embedded default when path is empty.
func LoadCaseTypeCatalog(path string) (*domain.CaseTypeCatalog, error) {
	data := defaultCaseTypes
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read case types %s: %w", path, err)
		}
		data = content
	}
	return ParseCaseTypeCatalog(data)
}

// ParseCaseTypeCatalog decodes a YAML catalog.
func ParseCaseTypeCatalog(data []byte) (*domain.CaseTypeCatalog, error) {
	var file caseTypeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode case types: %w", err)
	}

	perPerson := 5
	if file.PerPersonMinutes != nil {
		perPerson = *file.PerPersonMinutes
	}

	baseWait := map[domain.PriorityClass]int{
		domain.PriorityClassA: 15,
		domain.PriorityClassB: 30,
		domain.PriorityClassC: 45,
		domain.PriorityClassD: 60,
	}
	for label, cls := range file.Classes {
		class, err := domain.ParsePriorityClass(label)
		if err != nil {
			return nil, err
		}
		baseWait[class] = cls.BaseWaitMinutes
	}

	caseTypes := make(map[string]domain.PriorityClass, len(file.CaseTypes))
	for name, label := range file.CaseTypes {
		class, err := domain.ParsePriorityClass(label)
		if err != nil {
			return nil, fmt.Errorf("case type %q: %w", name, err)
		}
		caseTypes[name] = class
	}

	return domain.NewCaseTypeCatalog(caseTypes, baseWait, perPerson)
}

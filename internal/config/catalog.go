package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tool types a machine can be fitted with. Speed ranges differ per tool.
const (
	ToolCarbide = "carbide"
	ToolHSS     = "hss"
)

// Machine describes one physical machine.
type Machine struct {
	Name         string   `yaml:"name" json:"name"`
	Tool         string   `yaml:"tool,omitempty" json:"tool,omitempty"`
	Materials    []string `yaml:"materials" json:"materials"`
	ExpectedTime int      `yaml:"expected_time" json:"expected_time"` // seconds per job
}

// ToolType returns the configured tool, or infers it from the machine name
// ("Lathe Carbide", "Mill HSS"). Empty when neither applies.
func (m Machine) ToolType() string {
	if m.Tool != "" {
		return strings.ToLower(m.Tool)
	}
	name := strings.ToLower(m.Name)
	switch {
	case strings.Contains(name, ToolCarbide):
		return ToolCarbide
	case strings.Contains(name, ToolHSS):
		return ToolHSS
	}
	return ""
}

// Offers reports whether the machine accepts the material. A machine
// without a material list accepts anything.
func (m Machine) Offers(material string) bool {
	if len(m.Materials) == 0 {
		return true
	}
	for _, mat := range m.Materials {
		if strings.EqualFold(mat, material) {
			return true
		}
	}
	return false
}

// Material holds the cutting speed ranges per tool type.
type Material struct {
	Name            string `yaml:"name" json:"name"`
	CarbideMinSpeed int    `yaml:"carbide_minSpeed" json:"carbide_minSpeed"`
	CarbideMaxSpeed int    `yaml:"carbide_maxSpeed" json:"carbide_maxSpeed"`
	HSSMinSpeed     int    `yaml:"hss_minSpeed" json:"hss_minSpeed"`
	HSSMaxSpeed     int    `yaml:"hss_maxSpeed" json:"hss_maxSpeed"`
}

// SpeedRange returns the allowed speed range for a tool type. ok is false
// when the material defines no range for it.
func (m Material) SpeedRange(tool string) (lo, hi int, ok bool) {
	switch tool {
	case ToolCarbide:
		lo, hi = m.CarbideMinSpeed, m.CarbideMaxSpeed
	case ToolHSS:
		lo, hi = m.HSSMinSpeed, m.HSSMaxSpeed
	default:
		return 0, 0, false
	}
	if lo == 0 && hi == 0 {
		return 0, 0, false
	}
	return lo, hi, true
}

// Catalog is the static machine/material configuration table.
type Catalog struct {
	Machines  []Machine  `yaml:"machines" json:"machines"`
	Materials []Material `yaml:"materials" json:"materials"`
}

// Machine looks up a machine by exact name.
func (c *Catalog) Machine(name string) (Machine, bool) {
	for _, m := range c.Machines {
		if m.Name == name {
			return m, true
		}
	}
	return Machine{}, false
}

// Material looks up a material by name, case-insensitively.
func (c *Catalog) Material(name string) (Material, bool) {
	for _, m := range c.Materials {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return Material{}, false
}

// MachineNames returns machine names in catalog order.
func (c *Catalog) MachineNames() []string {
	names := make([]string, 0, len(c.Machines))
	for _, m := range c.Machines {
		names = append(names, m.Name)
	}
	return names
}

// Validate checks the catalog for duplicate or unnamed machines and
// negative durations.
func (c *Catalog) Validate() error {
	if len(c.Machines) == 0 {
		return fmt.Errorf("catalog defines no machines")
	}
	seen := make(map[string]bool, len(c.Machines))
	for i, m := range c.Machines {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("machine #%d has no name", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate machine %q", m.Name)
		}
		seen[m.Name] = true
		if m.ExpectedTime < 0 {
			return fmt.Errorf("machine %q: negative expected_time", m.Name)
		}
	}
	return nil
}

// LoadCatalog reads a catalog file. YAML and JSON are both accepted.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog data.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Machines: []Machine{
			{Name: "Lathe Carbide", Materials: []string{"Steel", "Aluminium", "Brass"}, ExpectedTime: 60},
			{Name: "Lathe HSS", Materials: []string{"Steel", "Aluminium", "Brass"}, ExpectedTime: 90},
			{Name: "Mill Carbide", Materials: []string{"Steel", "Aluminium"}, ExpectedTime: 120},
			{Name: "Mill HSS", Materials: []string{"Aluminium", "Brass"}, ExpectedTime: 150},
		},
		Materials: []Material{
			{Name: "Steel", CarbideMinSpeed: 80, CarbideMaxSpeed: 200, HSSMinSpeed: 20, HSSMaxSpeed: 40},
			{Name: "Aluminium", CarbideMinSpeed: 200, CarbideMaxSpeed: 600, HSSMinSpeed: 60, HSSMaxSpeed: 150},
			{Name: "Brass", CarbideMinSpeed: 150, CarbideMaxSpeed: 400, HSSMinSpeed: 50, HSSMaxSpeed: 100},
		},
	}
}

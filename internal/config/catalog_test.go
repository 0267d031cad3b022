package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// legacyCatalogJSON mirrors the shape of the original config.json.
const legacyCatalogJSON = `{
  "machines": [
    {"name": "Lathe Carbide", "materials": ["Steel", "Brass"], "expected_time": 30},
    {"name": "Mill HSS", "materials": ["Brass"], "expected_time": 45}
  ],
  "materials": [
    {"name": "Steel", "carbide_minSpeed": 80, "carbide_maxSpeed": 200, "hss_minSpeed": 20, "hss_maxSpeed": 40},
    {"name": "Brass", "carbide_minSpeed": 150, "carbide_maxSpeed": 400, "hss_minSpeed": 50, "hss_maxSpeed": 100}
  ]
}`

func TestParseCatalog_LegacyJSON(t *testing.T) {
	c, err := ParseCatalog([]byte(legacyCatalogJSON))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	m, ok := c.Machine("Mill HSS")
	if !ok {
		t.Fatal("Mill HSS not found")
	}
	if m.ExpectedTime != 45 {
		t.Errorf("ExpectedTime = %d, want 45", m.ExpectedTime)
	}
	if m.ToolType() != ToolHSS {
		t.Errorf("ToolType = %q, want hss", m.ToolType())
	}
	brass, ok := c.Material("brass")
	if !ok {
		t.Fatal("brass not found (case-insensitive)")
	}
	lo, hi, ok := brass.SpeedRange(ToolHSS)
	if !ok || lo != 50 || hi != 100 {
		t.Errorf("SpeedRange(hss) = %d, %d, %v", lo, hi, ok)
	}
}

func TestLoadCatalog_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := `machines:
  - name: M1
    tool: carbide
    expected_time: 5
materials: []
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	m, _ := c.Machine("M1")
	if m.ToolType() != ToolCarbide {
		t.Errorf("ToolType = %q, want carbide", m.ToolType())
	}
	if !m.Offers("anything") {
		t.Error("machine without material list should accept any material")
	}
}

func TestCatalog_Validate(t *testing.T) {
	tests := []struct {
		name    string
		catalog Catalog
		wantErr string
	}{
		{"empty", Catalog{}, "no machines"},
		{"unnamed", Catalog{Machines: []Machine{{Name: " "}}}, "no name"},
		{"duplicate", Catalog{Machines: []Machine{{Name: "A"}, {Name: "A"}}}, "duplicate"},
		{"negative", Catalog{Machines: []Machine{{Name: "A", ExpectedTime: -1}}}, "negative"},
		{"ok", Catalog{Machines: []Machine{{Name: "A"}, {Name: "B"}}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.catalog.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestMachine_Offers(t *testing.T) {
	m := Machine{Name: "Lathe", Materials: []string{"Steel", "Brass"}}
	if !m.Offers("steel") {
		t.Error("Offers(steel) = false, want true")
	}
	if m.Offers("Titanium") {
		t.Error("Offers(Titanium) = true, want false")
	}
}

func TestDefaultCatalog_Valid(t *testing.T) {
	c := DefaultCatalog()
	if err := c.Validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
	if got := len(c.MachineNames()); got != 4 {
		t.Errorf("machines = %d, want 4", got)
	}
}

// Package occupancy estimates residents and jobs for buildings from their
// floor area and a per-category density table.
package occupancy

import (
	"maps"
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultVersion labels the built-in density tables.
const DefaultVersion = "2025.1"

// Table maps a building category to square feet per occupant.
type Table map[string]float64

// Tables holds the residential and job density tables. A category appears in
// at most one of them.
type Tables struct {
	Version     string `yaml:"version"`
	Residential Table  `yaml:"residential"`
	Jobs        Table  `yaml:"jobs"`
}

// Square feet per resident. Hand-tuned; keep values as they are.
var residential = Table{
	"yes":                600,
	"apartments":         240,
	"barracks":           100,
	"bungalow":           600,
	"cabin":              600,
	"detached":           600,
	"annexe":             240,
	"dormitory":          125,
	"farm":               600,
	"ger":                240,
	"hotel":              240,
	"house":              600,
	"houseboat":          600,
	"residential":        600,
	"semidetached_house": 400,
	"static_caravan":     500,
	"stilt_house":        600,
	"terrace":            500,
	"tree_house":         240,
	"trullo":             240,
}

// Square feet per job. Places of worship and sports venues count visitors.
var jobs = Table{
	"commercial":     150,
	"industrial":     500,
	"kiosk":          50,
	"office":         150,
	"retail":         300,
	"supermarket":    300,
	"warehouse":      500,
	"religious":      100,
	"cathedral":      100,
	"chapel":         100,
	"church":         100,
	"kingdom_hall":   100,
	"monastery":      100,
	"mosque":         100,
	"presbytery":     100,
	"shrine":         100,
	"synagogue":      100,
	"temple":         100,
	"bakehouse":      300,
	"college":        250,
	"fire_station":   500,
	"government":     150,
	"gatehouse":      150,
	"hospital":       150,
	"kindergarten":   100,
	"museum":         300,
	"public":         300,
	"school":         100,
	"train_station":  1000,
	"transportation": 1000,
	"university":     250,
	"grandstand":     150,
	"pavilion":       150,
	"riding_hall":    150,
	"sports_hall":    150,
	"sports_centre":  150,
	"stadium":        150,
}

func init() {
	if err := Defaults().Validate(); err != nil {
		panic(err)
	}
}

// Defaults returns a copy of the built-in tables.
func Defaults() Tables {
	return Tables{
		Version:     DefaultVersion,
		Residential: maps.Clone(residential),
		Jobs:        maps.Clone(jobs),
	}
}

// Validate checks that both tables are non-empty, every density is positive,
// and no category is listed in both.
func (t Tables) Validate() error {
	if len(t.Residential) == 0 {
		return eris.New("occupancy: residential table is empty")
	}
	if len(t.Jobs) == 0 {
		return eris.New("occupancy: jobs table is empty")
	}
	if err := checkPositive("residential", t.Residential); err != nil {
		return err
	}
	if err := checkPositive("jobs", t.Jobs); err != nil {
		return err
	}
	for _, cat := range slices.Sorted(maps.Keys(t.Residential)) {
		if _, dup := t.Jobs[cat]; dup {
			return eris.Errorf("occupancy: category %q is in both residential and jobs tables", cat)
		}
	}
	return nil
}

func checkPositive(name string, table Table) error {
	for _, cat := range slices.Sorted(maps.Keys(table)) {
		if table[cat] <= 0 {
			return eris.Errorf("occupancy: %s density for %q must be positive, got %v", name, cat, table[cat])
		}
	}
	return nil
}

// Load reads density tables from a YAML file and validates them.
func Load(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, eris.Wrapf(err, "occupancy: read %s", path)
	}
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, eris.Wrapf(err, "occupancy: parse %s", path)
	}
	if err := t.Validate(); err != nil {
		return Tables{}, eris.Wrapf(err, "occupancy: invalid tables in %s", path)
	}
	return t, nil
}

// LoadOrDefault loads tables from path, or returns Defaults when path is empty.
func LoadOrDefault(path string) (Tables, error) {
	if path == "" {
		return Defaults(), nil
	}
	return Load(path)
}

// Marshal renders the tables as YAML.
func (t Tables) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(t)
	if err != nil {
		return nil, eris.Wrap(err, "occupancy: marshal tables")
	}
	return data, nil
}

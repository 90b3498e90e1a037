package phase

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CreatedKey refers to the case creation timestamp inside milestone lists.
const CreatedKey = "created"

// Family keys declared by the default schema
const (
	FamilyInspection = "inspection"
	FamilyBudgeting  = "budgeting"
	FamilyVacancy    = "vacancy"
)

// Milestone list keys declared by the default schema
const (
	MilestonesNoPendingPath     = "no_pending_path"
	MilestonesInspectionRelease = "inspection_release"
)

//go:embed schema.yaml
var defaultSchema []byte

var ErrInvalidSchema = errors.New("invalid phase schema")

// Phase one phase-entry column of the source spreadsheet
type Phase struct {
	Key    string `yaml:"key" json:"key"`
	Column string `yaml:"column" json:"column"`
	Label  string `yaml:"label" json:"label"`
}

// Family a named sub-flow whose phases are measured together
type Family struct {
	Key    string   `yaml:"key" json:"key"`
	Label  string   `yaml:"label" json:"label"`
	Phases []string `yaml:"phases" json:"phases"`
}

// Group buckets several milestones under one label
type Group struct {
	Key    string   `yaml:"key" json:"key"`
	Label  string   `yaml:"label" json:"label"`
	Phases []string `yaml:"phases,omitempty" json:"phases,omitempty"`
}

// Milestones descending-priority list; the first present phase classifies a case
type Milestones struct {
	Key      string   `yaml:"key" json:"key"`
	Phases   []string `yaml:"phases" json:"phases"`
	Groups   []Group  `yaml:"groups,omitempty" json:"groups,omitempty"`
	Fallback *Group   `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// GroupOf returns the group a milestone key rolls up into.
// Keys outside every group (including "") go to the fallback.
func (m *Milestones) GroupOf(key string) (Group, bool) {
	for _, g := range m.Groups {
		for _, p := range g.Phases {
			if p == key {
				return g, true
			}
		}
	}
	if m.Fallback != nil {
		return *m.Fallback, true
	}
	return Group{}, false
}

// Columns identity columns of the spreadsheet
type Columns struct {
	Created  string `yaml:"created"`
	Property string `yaml:"property"`
	Contact  string `yaml:"contact"`
}

// Flags single phases that mark a case property
type Flags struct {
	TenantRepairs string `yaml:"tenant_repairs"`
	AgencyRepairs string `yaml:"agency_repairs"`
	NoPending     string `yaml:"no_pending"`
}

// Schema static description of the phase columns and how reports group them
type Schema struct {
	Identity   Columns      `yaml:"columns"`
	Phases     []Phase      `yaml:"phases"`
	Start      []string     `yaml:"start"`
	End        []string     `yaml:"end"`
	Families   []Family     `yaml:"families"`
	Flags      Flags        `yaml:"flags"`
	Milestones []Milestones `yaml:"milestones"`

	index map[string]int
}

// Default returns the embedded schema.
func Default() *Schema {
	s, err := Parse(defaultSchema)
	if err != nil {
		panic(fmt.Sprintf("embedded phase schema: %v", err))
	}
	return s
}

// Load reads a schema file; an empty path yields Default().
func Load(path string) (*Schema, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phase schema %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) build() error {
	if len(s.Phases) == 0 {
		return fmt.Errorf("%w: no phases declared", ErrInvalidSchema)
	}
	s.index = make(map[string]int, len(s.Phases))
	columns := make(map[string]bool, len(s.Phases))
	for i, p := range s.Phases {
		if p.Key == "" || p.Column == "" {
			return fmt.Errorf("%w: phase %d needs key and column", ErrInvalidSchema, i)
		}
		if p.Key == CreatedKey {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidSchema, CreatedKey)
		}
		if _, dup := s.index[p.Key]; dup {
			return fmt.Errorf("%w: duplicate phase key %q", ErrInvalidSchema, p.Key)
		}
		col := strings.TrimSpace(p.Column)
		if columns[col] {
			return fmt.Errorf("%w: duplicate phase column %q", ErrInvalidSchema, col)
		}
		columns[col] = true
		if s.Phases[i].Label == "" {
			s.Phases[i].Label = p.Key
		}
		s.index[p.Key] = i
	}

	if len(s.Start) == 0 || len(s.End) == 0 {
		return fmt.Errorf("%w: start and end candidates are required", ErrInvalidSchema)
	}
	if err := s.checkKeys("start", s.Start, false); err != nil {
		return err
	}
	if err := s.checkKeys("end", s.End, false); err != nil {
		return err
	}
	for _, f := range s.Families {
		if err := s.checkKeys("family "+f.Key, f.Phases, false); err != nil {
			return err
		}
	}
	for _, flag := range []string{s.Flags.TenantRepairs, s.Flags.AgencyRepairs, s.Flags.NoPending} {
		if flag == "" {
			continue
		}
		if err := s.checkKeys("flags", []string{flag}, false); err != nil {
			return err
		}
	}
	for _, m := range s.Milestones {
		if err := s.checkKeys("milestones "+m.Key, m.Phases, true); err != nil {
			return err
		}
		for _, g := range m.Groups {
			if err := s.checkKeys("milestone group "+g.Key, g.Phases, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Schema) checkKeys(where string, keys []string, allowCreated bool) error {
	for _, k := range keys {
		if allowCreated && k == CreatedKey {
			continue
		}
		if _, ok := s.index[k]; !ok {
			return fmt.Errorf("%w: %s references unknown phase %q", ErrInvalidSchema, where, k)
		}
	}
	return nil
}

// Index position of a phase key in Phases, -1 when unknown.
func (s *Schema) Index(key string) int {
	if i, ok := s.index[key]; ok {
		return i
	}
	return -1
}

func (s *Schema) Phase(key string) (Phase, bool) {
	i := s.Index(key)
	if i < 0 {
		return Phase{}, false
	}
	return s.Phases[i], true
}

// Label display label for a phase key ("Criado" column for the created pseudo key).
func (s *Schema) Label(key string) string {
	if key == CreatedKey {
		return s.Identity.Created
	}
	if p, ok := s.Phase(key); ok {
		return p.Label
	}
	return key
}

// Column spreadsheet header for a phase key.
func (s *Schema) Column(key string) string {
	if key == CreatedKey {
		return s.Identity.Created
	}
	if p, ok := s.Phase(key); ok {
		return p.Column
	}
	return ""
}

func (s *Schema) Family(key string) (Family, bool) {
	for _, f := range s.Families {
		if f.Key == key {
			return f, true
		}
	}
	return Family{}, false
}

func (s *Schema) MilestoneList(key string) (Milestones, bool) {
	for _, m := range s.Milestones {
		if m.Key == key {
			return m, true
		}
	}
	return Milestones{}, false
}

// Keys all phase keys in declared order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.Phases))
	for i, p := range s.Phases {
		keys[i] = p.Key
	}
	return keys
}

// PhaseColumns all phase column headers in declared order.
func (s *Schema) PhaseColumns() []string {
	cols := make([]string, len(s.Phases))
	for i, p := range s.Phases {
		cols[i] = p.Column
	}
	return cols
}

// ResolveKey accepts a phase key, label or column and returns the key.
func (s *Schema) ResolveKey(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	if v == CreatedKey || v == s.Identity.Created {
		return CreatedKey, true
	}
	for _, p := range s.Phases {
		if p.Key == v || p.Label == v || p.Column == v {
			return p.Key, true
		}
	}
	return "", false
}

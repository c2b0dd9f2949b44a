// ABOUTME: Skill is a named agent attribute with an enumerated set of valid values.
// ABOUTME: Provides case-insensitive value validation and stateless lookup by name.

package skill

import (
	"slices"
	"strings"
)

// Prompts holds the voice-menu strings presented when a caller is asked to
// choose a value for the skill. They are opaque metadata to the registry.
type Prompts struct {
	Main          string `yaml:"main" toml:"main" json:"main,omitempty"`
	NoRecognition string `yaml:"no_recognition" toml:"no_recognition" json:"no_recognition,omitempty"`
	Silence       string `yaml:"silence" toml:"silence" json:"silence,omitempty"`
	Recognition   string `yaml:"recognition" toml:"recognition" json:"recognition,omitempty"`
}

// Skill is an immutable named attribute with an ordered set of valid values.
type Skill struct {
	name    string
	values  []string
	prompts Prompts
}

// New creates a Skill. The values slice is copied.
func New(name string, values []string, prompts Prompts) *Skill {
	return &Skill{
		name:    name,
		values:  slices.Clone(values),
		prompts: prompts,
	}
}

// Name returns the skill name.
func (s *Skill) Name() string {
	return s.name
}

// Values returns a copy of the valid values in configured order.
func (s *Skill) Values() []string {
	return slices.Clone(s.values)
}

// Prompts returns the voice-menu prompts.
func (s *Skill) Prompts() Prompts {
	return s.prompts
}

// IsValidValue reports whether value case-insensitively matches one of the
// skill's values.
func (s *Skill) IsValidValue(value string) bool {
	return s.canonical(value) != ""
}

// canonical returns the configured spelling of value, or "" if it is not valid.
func (s *Skill) canonical(value string) string {
	for _, v := range s.values {
		if strings.EqualFold(v, value) {
			return v
		}
	}
	return ""
}

// Equal reports whether both skills have the same name and the same set of
// values, irrespective of order.
func (s *Skill) Equal(other *Skill) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	if s.name != other.name {
		return false
	}
	return containsAll(s.values, other.values) && containsAll(other.values, s.values)
}

func containsAll(set, want []string) bool {
	for _, w := range want {
		if !slices.Contains(set, w) {
			return false
		}
	}
	return true
}

// String returns the skill name.
func (s *Skill) String() string {
	return s.name
}

// FindSkill returns the skill in skills whose name exactly matches name, or
// nil if there is none.
func FindSkill(name string, skills []*Skill) *Skill {
	idx := slices.IndexFunc(skills, func(s *Skill) bool {
		return s != nil && s.name == name
	})
	if idx < 0 {
		return nil
	}
	return skills[idx]
}

// ABOUTME: AgentSkill binds a Skill to one of its valid values for a single agent.
// ABOUTME: Construction validates the value; the result is an immutable value object.

package skill

import (
	"errors"
	"fmt"
	"strings"
)

// Construction errors.
var (
	ErrNullSkill    = errors.New("skill is required")
	ErrNullValue    = errors.New("skill value is required")
	ErrInvalidValue = errors.New("invalid skill value")
	ErrUnknownSkill = errors.New("unknown skill")
)

// AgentSkill is a (Skill, value) pair. The value is always one of the
// skill's configured values.
type AgentSkill struct {
	skill *Skill
	value string
}

// NewAgentSkill binds value to skill. Returns ErrNullSkill, ErrNullValue or
// ErrInvalidValue if the pair cannot be built.
func NewAgentSkill(skill *Skill, value string) (AgentSkill, error) {
	if skill == nil {
		return AgentSkill{}, ErrNullSkill
	}
	if value == "" {
		return AgentSkill{}, ErrNullValue
	}
	if !skill.IsValidValue(value) {
		return AgentSkill{}, fmt.Errorf("%w: %q is not a value of skill %q", ErrInvalidValue, value, skill.name)
	}
	return AgentSkill{skill: skill, value: value}, nil
}

// MustAgentSkill is like NewAgentSkill but panics on error. Intended for
// tests and static tables.
func MustAgentSkill(skill *Skill, value string) AgentSkill {
	as, err := NewAgentSkill(skill, value)
	if err != nil {
		panic(err)
	}
	return as
}

// ParseAgentSkill resolves a "Name=Value" requirement against skills.
func ParseAgentSkill(s string, skills []*Skill) (AgentSkill, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return AgentSkill{}, fmt.Errorf("%w: %q is not in name=value form", ErrInvalidValue, s)
	}
	name = strings.TrimSpace(name)
	sk := FindSkill(name, skills)
	if sk == nil {
		return AgentSkill{}, fmt.Errorf("%w: %q", ErrUnknownSkill, name)
	}
	return NewAgentSkill(sk, strings.TrimSpace(value))
}

// Skill returns the bound skill.
func (a AgentSkill) Skill() *Skill {
	return a.skill
}

// Value returns the value as given at construction.
func (a AgentSkill) Value() string {
	return a.value
}

// IsZero reports whether a was not produced by NewAgentSkill.
func (a AgentSkill) IsZero() bool {
	return a.skill == nil
}

// Equal reports whether both pairs refer to equal skills with
// case-insensitively equal values.
func (a AgentSkill) Equal(other AgentSkill) bool {
	return a.skill.Equal(other.skill) && strings.EqualFold(a.value, other.value)
}

// String renders the pair as Name=Value using the skill's configured spelling.
func (a AgentSkill) String() string {
	if a.skill == nil {
		return ""
	}
	return a.skill.name + "=" + a.skill.canonical(a.value)
}

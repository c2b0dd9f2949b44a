// Package skill defines the attributes used to match call-center agents to
// customer sessions.
//
// # Skill
//
// A Skill is a named attribute with an enumerated set of valid values:
//
//	lang := skill.New("Language", []string{"English", "Spanish"}, skill.Prompts{})
//
// Skills are built once when the directory configuration is loaded and are
// immutable afterwards. Value comparison is case-insensitive.
//
// # AgentSkill
//
// An AgentSkill binds a Skill to one of its values:
//
//	english, err := skill.NewAgentSkill(lang, "english")
//
// Construction fails with ErrNullSkill, ErrNullValue or ErrInvalidValue; a
// caller never receives a half-built AgentSkill.
//
// # Lookup
//
// FindSkill and ParseAgentSkill resolve skills by name against a skill list.
// Lookups are stateless and safe for concurrent use.
package skill

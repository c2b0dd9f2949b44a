// ABOUTME: Builds the in-memory agent directory from configuration.
// ABOUTME: Creates skills, supervisors and agents and links agents to their supervisors.

package gateway

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/2389/coven-contactcenter/internal/agent"
	"github.com/2389/coven-contactcenter/internal/config"
	"github.com/2389/coven-contactcenter/internal/skill"
)

// buildDirectory registers every configured supervisor and agent on a new
// Manager and returns it with the configured skills.
func buildDirectory(cfg config.DirectoryConfig, logger *slog.Logger) (*agent.Manager, []*skill.Skill, error) {
	skills := make([]*skill.Skill, 0, len(cfg.Skills))
	for _, s := range cfg.Skills {
		skills = append(skills, skill.New(s.Name, s.Values, s.Prompts))
	}

	manager := agent.NewManager(logger)

	for _, s := range cfg.Supervisors {
		sup := agent.NewSupervisor(s.SignInAddress, s.PublicName, s.InstantMessageColor)
		if err := manager.AddSupervisor(sup); err != nil {
			return nil, nil, fmt.Errorf("adding supervisor %q: %w", s.SignInAddress, err)
		}
	}

	for _, a := range cfg.Agents {
		agentSkills, err := resolveAgentSkills(a.Skills, skills)
		if err != nil {
			return nil, nil, fmt.Errorf("agent %q: %w", a.SignInAddress, err)
		}

		ag := agent.New(agent.Params{
			SignInAddress: a.SignInAddress,
			PublicName:    a.PublicName,
			Skills:        agentSkills,
			Logger:        logger,
		})
		if err := manager.Register(ag); err != nil {
			return nil, nil, fmt.Errorf("registering agent %q: %w", a.SignInAddress, err)
		}

		if a.Supervisor != "" {
			sup, ok := manager.GetSupervisor(a.Supervisor)
			if !ok {
				return nil, nil, fmt.Errorf("agent %q: unknown supervisor %q", a.SignInAddress, a.Supervisor)
			}
			sup.AddAgent(ag)
		}

		ag.SetOnline(a.Online)
		// Startup state is not a change worth publishing.
		ag.GetWhetherPropertiesChanged()
	}

	return manager, skills, nil
}

// resolveAgentSkills turns a name to value map into AgentSkills, ordered
// by skill name.
func resolveAgentSkills(values map[string]string, skills []*skill.Skill) ([]skill.AgentSkill, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]skill.AgentSkill, 0, len(names))
	for _, name := range names {
		sk := skill.FindSkill(name, skills)
		if sk == nil {
			return nil, fmt.Errorf("%w: %q", skill.ErrUnknownSkill, name)
		}
		as, err := skill.NewAgentSkill(sk, values[name])
		if err != nil {
			return nil, err
		}
		out = append(out, as)
	}
	return out, nil
}

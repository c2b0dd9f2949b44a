// ABOUTME: Record is the display projection of an agent for dashboards.
// ABOUTME: Convert builds one from an agent snapshot and its current session participant.

package dashboard

import (
	"slices"
	"time"

	"github.com/2389/coven-contactcenter/internal/agent"
)

// Participant is the agent's side of the session it is serving.
type Participant struct {
	SessionID  string
	Customer   string
	MediaTypes []string
}

// ParticipantSource looks up the session participant for an agent.
type ParticipantSource interface {
	Participant(agentAddress string) (Participant, bool)
}

// Record is what dashboards show for one agent.
type Record struct {
	SignInAddress   string    `json:"sign_in_address"`
	DisplayName     string    `json:"display_name"`
	Skills          []string  `json:"skills"`
	Online          bool      `json:"online"`
	Allocated       bool      `json:"allocated"`
	Status          string    `json:"status"`
	StatusChangedAt time.Time `json:"status_changed_at"`
	Supervisor      string    `json:"supervisor,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
	Customer        string    `json:"customer,omitempty"`
	MediaTypes      []string  `json:"media_types"`
}

// Convert projects a and its participant into a Record. The agent state is
// read as a single snapshot.
func Convert(a *agent.Agent, p Participant) Record {
	return FromSnapshot(a.Snapshot(), p)
}

// FromSnapshot builds a Record from an already taken snapshot.
func FromSnapshot(s agent.Snapshot, p Participant) Record {
	name := s.PublicName
	if name == "" {
		name = s.SignInAddress
	}
	media := slices.Clone(p.MediaTypes)
	if media == nil {
		media = []string{}
	}
	r := Record{
		SignInAddress:   s.SignInAddress,
		DisplayName:     name,
		Skills:          s.Skills,
		Online:          s.Online,
		Allocated:       s.Allocated,
		Status:          s.Status.String(),
		StatusChangedAt: s.ActiveIdleSince,
		Supervisor:      s.Supervisor,
		MediaTypes:      media,
	}
	if s.Allocated {
		r.SessionID = p.SessionID
		r.Customer = p.Customer
	}
	return r
}

// Records converts every agent, looking participants up in src (which may
// be nil).
func Records(agents []*agent.Agent, src ParticipantSource) []Record {
	out := make([]Record, 0, len(agents))
	for _, a := range agents {
		out = append(out, Convert(a, lookup(src, a.SignInAddress())))
	}
	return out
}

func lookup(src ParticipantSource, address string) Participant {
	if src == nil {
		return Participant{}
	}
	p, _ := src.Participant(address)
	return p
}

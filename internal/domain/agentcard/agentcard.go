// Package agentcard builds and validates the capability descriptor (A2A agent
// card) an agent publishes, and derives tool names from discovered skills.
package agentcard

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"slices"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/domain/task"
)

// ProtocolVersion is the A2A protocol version advertised in published cards.
const ProtocolVersion = "0.3.0"

// WellKnownPath is where an agent serves its card relative to its base URL.
const WellKnownPath = "/.well-known/agent.json"

// AltWellKnownPath is the newer A2A card location, served as an alias.
const AltWellKnownPath = "/.well-known/agent-card.json"

// MaxToolNameLen is the longest tool name accepted by OpenAI-compatible models.
const MaxToolNameLen = 64

// Skill describes one skill to publish.
type Skill struct {
	ID          string
	Name        string
	Description string
	Tags        []string
}

// Params holds everything needed to build a card.
type Params struct {
	Name               string
	Description        string
	Version            string
	URL                string
	Streaming          bool
	PushNotifications  bool
	DefaultInputModes  []string
	DefaultOutputModes []string
	Skills             []Skill
}

// Build returns the card described by p. The result is validated.
func Build(p *Params) (*a2a.AgentCard, error) {
	skills := make([]a2a.AgentSkill, 0, len(p.Skills))
	for _, s := range p.Skills {
		skills = append(skills, a2a.AgentSkill{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Tags:        slices.Clone(s.Tags),
		})
	}
	card := &a2a.AgentCard{
		Name:            p.Name,
		Description:     p.Description,
		Version:         p.Version,
		ProtocolVersion: ProtocolVersion,
		URL:             p.URL,
		Capabilities: a2a.AgentCapabilities{
			Streaming:         p.Streaming,
			PushNotifications: p.PushNotifications,
		},
		DefaultInputModes:  slices.Clone(p.DefaultInputModes),
		DefaultOutputModes: slices.Clone(p.DefaultOutputModes),
		Skills:             skills,
	}
	if err := Validate(card); err != nil {
		return nil, err
	}
	return card, nil
}

// Validate checks that the required card fields are present and that skill
// ids are unique. Failures wrap domain.ErrMalformed.
func Validate(card *a2a.AgentCard) error {
	if card == nil {
		return fmt.Errorf("%w: agent card is nil", domain.ErrMalformed)
	}
	if strings.TrimSpace(card.Name) == "" {
		return fmt.Errorf("%w: agent card name is required", domain.ErrMalformed)
	}
	if card.Version == "" {
		return fmt.Errorf("%w: agent card %q: version is required", domain.ErrMalformed, card.Name)
	}
	u, err := url.Parse(card.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: agent card %q: url %q is not an absolute http(s) URL", domain.ErrMalformed, card.Name, card.URL)
	}
	if len(card.Skills) == 0 {
		return fmt.Errorf("%w: agent card %q declares no skills", domain.ErrMalformed, card.Name)
	}
	seen := make(map[string]bool, len(card.Skills))
	for i := range card.Skills {
		s := &card.Skills[i]
		if s.ID == "" {
			return fmt.Errorf("%w: agent card %q: skill %d has no id", domain.ErrMalformed, card.Name, i)
		}
		if s.Name == "" {
			return fmt.Errorf("%w: agent card %q: skill %q has no name", domain.ErrMalformed, card.Name, s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: agent card %q: duplicate skill id %q", domain.ErrMalformed, card.Name, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Clone returns a deep copy of card so callers cannot mutate a published card.
func Clone(card *a2a.AgentCard) *a2a.AgentCard {
	c := *card
	c.DefaultInputModes = slices.Clone(card.DefaultInputModes)
	c.DefaultOutputModes = slices.Clone(card.DefaultOutputModes)
	c.Skills = make([]a2a.AgentSkill, len(card.Skills))
	for i := range card.Skills {
		s := card.Skills[i]
		s.Tags = slices.Clone(s.Tags)
		s.Examples = slices.Clone(s.Examples)
		s.InputModes = slices.Clone(s.InputModes)
		s.OutputModes = slices.Clone(s.OutputModes)
		c.Skills[i] = s
	}
	return &c
}

// ResolveSkill finds the skill a task addresses. An empty id or
// task.DefaultSkill selects the only skill of a single-skill card.
func ResolveSkill(card *a2a.AgentCard, id string) (a2a.AgentSkill, error) {
	if id == "" || id == task.DefaultSkill {
		if len(card.Skills) == 1 {
			return card.Skills[0], nil
		}
		return a2a.AgentSkill{}, fmt.Errorf("%w: agent %q has %d skills, a skill id is required",
			domain.ErrUnknownSkill, card.Name, len(card.Skills))
	}
	for i := range card.Skills {
		if card.Skills[i].ID == id {
			return card.Skills[i], nil
		}
	}
	return a2a.AgentSkill{}, fmt.Errorf("%w: %q", domain.ErrUnknownSkill, id)
}

// ToolName derives the externally visible tool name for a skill. The result
// only contains [a-z0-9_-] and is at most MaxToolNameLen long.
func ToolName(agentName, skillID string) string {
	name := sanitize(agentName) + "_" + sanitize(skillID)
	if len(name) <= MaxToolNameLen {
		return name
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(agentName + "\x00" + skillID))
	suffix := fmt.Sprintf("_%08x", h.Sum32())
	return name[:MaxToolNameLen-len(suffix)] + suffix
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "agent"
	}
	return b.String()
}

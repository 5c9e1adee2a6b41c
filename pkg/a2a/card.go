package a2a

import "fmt"

// ============================================================================
// AGENT CARD - Discovery descriptor served at /agent.json
// ============================================================================

// AgentCard is the self-describing descriptor an agent exposes for
// discovery. Cards are produced at server startup and served read-only.
type AgentCard struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Version     string `json:"version"`

	Capabilities AgentCapabilities `json:"capabilities"`
	Skills       []AgentSkill      `json:"skills,omitempty"`

	DefaultInputModes  []string `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string `json:"defaultOutputModes,omitempty"`

	Provider         *AgentProvider       `json:"provider,omitempty"`
	DocumentationURL string               `json:"documentationUrl,omitempty"`
	Authentication   *AgentAuthentication `json:"authentication,omitempty"`
}

// AgentCapabilities advertises what the agent supports.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// AgentSkill is one advertised capability; tags feed the keyword router.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// AgentProvider names the organization behind an agent.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitempty"`
}

// AgentAuthentication declares the schemes a caller may use. The runtime
// itself does not enforce authentication.
type AgentAuthentication struct {
	Schemes     []string `json:"schemes,omitempty"`
	Credentials string   `json:"credentials,omitempty"`
}

// Validate checks the fields required for discovery.
func (c *AgentCard) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("agent card requires a name")
	}
	if c.Version == "" {
		return fmt.Errorf("agent card requires a version")
	}
	return nil
}

// Package config defines MakerConfig and the types it's built from
// (spec §3), serializable as YAML for the external persistence
// collaborator (SPEC_FULL §6).
package config

import "github.com/makercode/maker/pkg/engine/model"

// LLMProvider selects which language-model backend generate() talks to.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// AgentProfile is one configured agent persona, immutable within a task
// execution (spec §3).
type AgentProfile struct {
	ID            string          `yaml:"id"`
	DisplayName   string          `yaml:"displayName"`
	Role          model.AgentRole `yaml:"role"`
	RiskTolerance float64         `yaml:"riskTolerance"`
	ModelTag      string          `yaml:"modelTag"`
}

// ToolDefinition describes one invocable tool, either a built-in system
// tool or a user-configured one (spec §3).
type ToolDefinition struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	CommandTemplate  string `yaml:"commandTemplate"`
	RequiresApproval bool   `yaml:"requiresApproval"`
	IsSystem         bool   `yaml:"isSystem"`
	// Interactive, when true, runs the command through a PTY (SPEC_FULL §6)
	// instead of a plain pipe, for tools that need a real terminal.
	Interactive bool `yaml:"interactive"`
}

// MakerConfig is the recognized set of engine configuration options
// (spec §3).
type MakerConfig struct {
	LLMProvider         LLMProvider             `yaml:"llmProvider"`
	ProviderCredentials []byte                  `yaml:"providerCredentials"` // opaque, sealed
	RiskThreshold       float64                 `yaml:"riskThreshold"`
	MaxAgents           int                     `yaml:"maxAgents"`
	AutoFixLinter       bool                    `yaml:"autoFixLinter"`
	UseGitWorktrees     bool                    `yaml:"useGitWorktrees"`
	MaxParallelism      int                     `yaml:"maxParallelism"`
	AgentProfiles       []AgentProfile          `yaml:"agentProfiles"`
	Tools               []ToolDefinition        `yaml:"tools"`
}

// Default returns a MakerConfig with the conservative defaults the Engine
// Facade falls back on before the first updateConfig call.
func Default() MakerConfig {
	return MakerConfig{
		LLMProvider:     ProviderGemini,
		RiskThreshold:   0.7,
		MaxAgents:       3,
		AutoFixLinter:   true,
		UseGitWorktrees: false,
		MaxParallelism:  1,
		AgentProfiles: []AgentProfile{
			{ID: "architect-1", DisplayName: "Architect", Role: model.RoleArchitect, RiskTolerance: 0.4},
			{ID: "developer-1", DisplayName: "Developer", Role: model.RoleDeveloper, RiskTolerance: 0.6},
			{ID: "qa-1", DisplayName: "QA", Role: model.RoleQA, RiskTolerance: 0.3},
		},
	}
}

// Merge overlays non-zero fields of partial onto a copy of c, matching the
// Engine Facade's "merges into current config" semantics (spec §4.1).
func (c MakerConfig) Merge(partial MakerConfig) MakerConfig {
	merged := c
	if partial.LLMProvider != "" {
		merged.LLMProvider = partial.LLMProvider
	}
	if partial.ProviderCredentials != nil {
		merged.ProviderCredentials = partial.ProviderCredentials
	}
	if partial.RiskThreshold != 0 {
		merged.RiskThreshold = partial.RiskThreshold
	}
	if partial.MaxAgents != 0 {
		merged.MaxAgents = partial.MaxAgents
	}
	if partial.AutoFixLinter {
		merged.AutoFixLinter = true
	}
	if partial.UseGitWorktrees {
		merged.UseGitWorktrees = true
	}
	if partial.MaxParallelism != 0 {
		merged.MaxParallelism = partial.MaxParallelism
	}
	if partial.AgentProfiles != nil {
		merged.AgentProfiles = partial.AgentProfiles
	}
	if partial.Tools != nil {
		merged.Tools = partial.Tools
	}
	return merged
}

// CredentialsOrProviderChanged reports whether updateConfig must rebuild
// the model client and its dependents (spec §4.1).
func CredentialsOrProviderChanged(old, next MakerConfig) bool {
	if old.LLMProvider != next.LLMProvider {
		return true
	}
	if len(old.ProviderCredentials) != len(next.ProviderCredentials) {
		return true
	}
	for i := range old.ProviderCredentials {
		if old.ProviderCredentials[i] != next.ProviderCredentials[i] {
			return true
		}
	}
	return false
}

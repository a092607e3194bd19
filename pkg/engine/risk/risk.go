// Package risk implements the deterministic risk-assessment function
// (spec §4.10) the Step Executor consults before deciding whether a
// coding step must go through the Voter.
package risk

import (
	"strings"

	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/engine/model"
)

const (
	baseLogic      = 0.85
	baseBoilerplate = 0.2
	securityBump   = 0.3
	cap            = 0.99

	reasonBusinessLogic    = "Business Logic"
	reasonBoilerplate      = "Boilerplate/Scaffold"
	reasonSecurityCritical = "%s flagged security critical component"
)

// Assess maps (step, agent) to (score, reason), a pure function with no
// side effects or model calls (spec §4.10).
func Assess(step *model.Step, agent config.AgentProfile) (float64, string) {
	desc := strings.ToLower(step.Description)
	score := baseBoilerplate
	reason := reasonBoilerplate
	if strings.Contains(desc, "implement") || strings.Contains(desc, "logic") {
		score = baseLogic
		reason = reasonBusinessLogic
	}

	if agent.Role == model.RoleSecurity {
		if strings.Contains(step.Description, "Auth") || strings.Contains(step.Description, "JWT") {
			score += securityBump
			if score > cap {
				score = cap
			}
			reason = securityReason(agent)
		}
	}

	return score, reason
}

func securityReason(agent config.AgentProfile) string {
	name := agent.DisplayName
	if name == "" {
		name = agent.ID
	}
	return strings.Replace(reasonSecurityCritical, "%s", name, 1)
}

// ShouldVote implements the gate riskScore > min(riskThreshold,
// agentRiskTolerance + 0.3) (spec §4.9 step 4).
func ShouldVote(riskScore, riskThreshold, agentRiskTolerance float64) bool {
	gate := riskThreshold
	if tol := agentRiskTolerance + 0.3; tol < gate {
		gate = tol
	}
	return riskScore > gate
}

// Package voter implements the multi-candidate generation and judging
// described in spec §4.5: a lead agent plus up to two others each
// generate independently, and a judge model call picks the winner.
package voter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/engine/model"
	"github.com/makercode/maker/pkg/engine/ports"
	"github.com/makercode/maker/pkg/logger"
)

var log = logger.New("engine:voter")

const maxVoters = 3

const judgeSystemPrompt = `You are judging candidate implementations of the same step.
Pick exactly one winner. Respond as strict JSON: {"winnerId": "...", "reasoning": "..."}.`

// Result is the outcome of performVoting (spec §4.5).
type Result struct {
	Winner      model.Candidate
	Candidates  []model.Candidate
	Reasoning   string
}

// Generator produces one agent's candidate content for a step, given its
// assembled context. The Step Executor supplies this, closing over the
// LLM client and the step/task context.
type Generator func(ctx context.Context, agent config.AgentProfile) (string, error)

// PerformVoting implements spec §4.5's performVoting(step, leadAgent,
// context, profiles, generator) -> VoteResult.
func PerformVoting(ctx context.Context, llm ports.LLMClient, leadAgent config.AgentProfile, profiles []config.AgentProfile, generate Generator) (Result, error) {
	voters := selectVoters(leadAgent, profiles)

	candidates := make([]model.Candidate, len(voters))
	var wg sync.WaitGroup
	for i, agent := range voters {
		wg.Add(1)
		go func(i int, agent config.AgentProfile) {
			defer wg.Done()
			content, err := generate(ctx, agent)
			if err != nil {
				log.Printf("voter %s failed to generate: %v", agent.ID, err)
				content = ""
			}
			candidates[i] = model.Candidate{AgentID: agent.ID, Content: content}
		}(i, agent)
	}
	wg.Wait()

	winnerIdx, reasoning, err := judge(ctx, llm, candidates)
	if err != nil || winnerIdx < 0 {
		log.Printf("judge failed, falling back to first candidate: %v", err)
		winner := candidates[0]
		winner.IsConsensus = false
		return Result{Winner: winner, Candidates: candidates}, nil
	}

	winner := candidates[winnerIdx]
	winner.VoteCount = len(voters)
	winner.IsConsensus = true
	candidates[winnerIdx] = winner

	return Result{Winner: winner, Candidates: candidates, Reasoning: reasoning}, nil
}

// selectVoters picks leadAgent plus up to two others ordered by roster,
// excluding the lead (spec §4.5).
func selectVoters(lead config.AgentProfile, profiles []config.AgentProfile) []config.AgentProfile {
	voters := []config.AgentProfile{lead}
	for _, p := range profiles {
		if len(voters) >= maxVoters {
			break
		}
		if p.ID == lead.ID {
			continue
		}
		voters = append(voters, p)
	}
	return voters
}

type judgeResponse struct {
	WinnerID  string `json:"winnerId"`
	Reasoning string `json:"reasoning"`
}

func judge(ctx context.Context, llm ports.LLMClient, candidates []model.Candidate) (int, string, error) {
	var b []byte
	type candidateView struct {
		ID      string `json:"id"`
		Content string `json:"content"`
	}
	views := make([]candidateView, len(candidates))
	for i, c := range candidates {
		views[i] = candidateView{ID: c.AgentID, Content: c.Content}
	}
	b, err := json.Marshal(views)
	if err != nil {
		return -1, "", err
	}

	schema := json.RawMessage(`{"type":"object","properties":{"winnerId":{"type":"string"},"reasoning":{"type":"string"}},"required":["winnerId","reasoning"]}`)
	raw, err := llm.Generate(ctx, judgeSystemPrompt, string(b), &schema)
	if err != nil {
		return -1, "", fmt.Errorf("voter: judge call failed: %w", err)
	}

	var resp judgeResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return -1, "", fmt.Errorf("voter: judge response not parseable: %w", err)
	}
	for i, c := range candidates {
		if c.AgentID == resp.WinnerID {
			return i, resp.Reasoning, nil
		}
	}
	return -1, "", fmt.Errorf("voter: judge picked unknown winner %q", resp.WinnerID)
}

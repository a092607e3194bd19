package executor

import "github.com/makercode/maker/pkg/engine/decomposer"

// Outcome is the typed sum type replacing the source's exception-message
// sentinels (spec §9): a step either passes, fails with a reason, or
// requests a re-plan carrying the rescue steps the Scheduler should
// splice in (spec §4.11 step 5).
type Outcome struct {
	kind    outcomeKind
	reason  string
	rescues []decomposer.PartialStep
}

type outcomeKind int

const (
	kindPassed outcomeKind = iota
	kindFailed
	kindReplan
)

// Passed reports a successful terminal outcome.
func Passed() Outcome { return Outcome{kind: kindPassed} }

// Failed reports a terminal failure with a human-readable reason.
func Failed(reason string) Outcome { return Outcome{kind: kindFailed, reason: reason} }

// Replan reports a non-error exit path: the step should be spliced out
// and replaced by the given rescue steps.
func Replan(rescues []decomposer.PartialStep) Outcome {
	return Outcome{kind: kindReplan, rescues: rescues}
}

func (o Outcome) IsPassed() bool  { return o.kind == kindPassed }
func (o Outcome) IsFailed() bool  { return o.kind == kindFailed }
func (o Outcome) IsReplan() bool  { return o.kind == kindReplan }
func (o Outcome) Reason() string  { return o.reason }
func (o Outcome) Rescues() []decomposer.PartialStep { return o.rescues }

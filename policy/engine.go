package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the nudge policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.nudge_policy.decision"),
		rego.Module("nudge_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NudgeInput is the document the nudge policy evaluates.
type NudgeInput struct {
	Caller       string   `json:"caller"`
	Type         string   `json:"type"`
	GroupID      string   `json:"group_id"`
	TaskID       string   `json:"task_id"`
	Sender       string   `json:"sender"`
	Receiver     string   `json:"receiver"`
	GroupMembers []string `json:"group_members"`
}

// Evaluate checks the nudge policy.
// Returns: decision (allow, block), reason (optional), error
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy defines a default; an undefined result means it was replaced.
		return DecisionAllow, "default", nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return val, "", nil
	case map[string]interface{}:
		decision, _ := val["decision"].(string)
		reason, _ := val["reason"].(string)
		if decision == "" {
			return "", "", fmt.Errorf("policy result has no decision")
		}
		return decision, reason, nil
	}

	return DecisionAllow, "unexpected return type", nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package nudge_policy

default decision = {"decision": "allow", "reason": ""}

decision = {"decision": "block", "reason": concat("; ", deny)} {
	count(deny) > 0
}

deny["you cannot nudge yourself"] {
	input.sender == input.receiver
}

deny["nudges must be sent as yourself"] {
	input.sender != input.caller
}

deny["sender is not a member of the group"] {
	not is_member(input.sender)
}

deny["receiver is not a member of the group"] {
	not is_member(input.receiver)
}

is_member(user) {
	input.group_members[_] == user
}
`

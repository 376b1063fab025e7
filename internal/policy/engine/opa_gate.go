// Package engine evaluates the role/action authorization policy with OPA Rego.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/open-policy-agent/opa/v1/rego"

	"alumni-tracker/internal/policy/domain"
)

const defaultQuery = "data.alumni.authz.allow"

// DefaultPolicy grants coordinators the administrative actions, applicants enrollment and survey answers,
// and both roles the read and self-service actions.
const DefaultPolicy = `package alumni.authz

default allow := false

coordinator_actions := {
	"account.decide",
	"account.list",
	"account.delete",
	"activity.create",
	"activity.manage",
	"stats.read",
	"audit.read",
	"survey.manage",
}

applicant_actions := {
	"activity.enroll",
	"survey.respond",
}

shared_actions := {
	"account.self",
	"profile.update",
	"activity.read",
	"survey.read",
}

allow if {
	input.role == "coordinator"
	coordinator_actions[input.action]
}

allow if {
	input.role == "applicant"
	applicant_actions[input.action]
}

allow if {
	input.role in {"applicant", "coordinator"}
	shared_actions[input.action]
}
`

// OPAGate is a Gate backed by a Rego module compiled once at construction.
type OPAGate struct {
	query  rego.PreparedEvalQuery
	logger *slog.Logger
}

// NewOPAGate compiles module (DefaultPolicy when empty) and prepares the allow query.
func NewOPAGate(ctx context.Context, module string, logger *slog.Logger) (*OPAGate, error) {
	if module == "" {
		module = DefaultPolicy
	}
	if logger == nil {
		logger = slog.Default()
	}
	pq, err := rego.New(
		rego.Query(defaultQuery),
		rego.Module("authz.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare authz policy: %w", err)
	}
	return &OPAGate{query: pq, logger: logger}, nil
}

// Authorize returns nil when the policy allows role to perform action, ErrDenied otherwise.
// Evaluation failures deny.
func (g *OPAGate) Authorize(ctx context.Context, role string, action domain.Action) error {
	rs, err := g.query.Eval(ctx, rego.EvalInput(map[string]any{
		"role":   role,
		"action": string(action),
	}))
	if err != nil {
		g.logger.ErrorContext(ctx, "authz policy evaluation failed",
			"role", role, "action", action, "error", err)
		return ErrDenied
	}
	if !rs.Allowed() {
		return ErrDenied
	}
	return nil
}

// HealthCheck evaluates a known-allowed decision to confirm the prepared policy still answers.
func (g *OPAGate) HealthCheck(ctx context.Context) error {
	if err := g.Authorize(ctx, "coordinator", domain.ActionActivityRead); err != nil {
		return fmt.Errorf("authz policy health: %w", err)
	}
	return nil
}

package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"virtual-wallet/backend/internal/account/domain"
)

const loginQuery = "data.wallet.login"

// DefaultLoginPolicy matches StaticEvaluator.
const DefaultLoginPolicy = `package wallet.login

default locked = false
default mfa_required = false

locked if {
	input.account.verification_status == "rejected"
}

mfa_required if {
	input.account.mfa_enabled
}
`

// OPAEvaluator evaluates the login policy with an embedded Rego module.
// Evaluation failures fall back to StaticEvaluator so a broken policy never unlocks a rejected account.
type OPAEvaluator struct {
	query    rego.PreparedEvalQuery
	fallback StaticEvaluator
	log      *zap.Logger
}

// NewOPAEvaluator compiles src (DefaultLoginPolicy when empty) and prepares the login query.
func NewOPAEvaluator(ctx context.Context, src string, log *zap.Logger) (*OPAEvaluator, error) {
	if src == "" {
		src = DefaultLoginPolicy
	}
	if log == nil {
		log = zap.NewNop()
	}
	compiler, err := ast.CompileModules(map[string]string{"login.rego": src})
	if err != nil {
		return nil, fmt.Errorf("compile login policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(loginQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare login policy: %w", err)
	}
	return &OPAEvaluator{query: pq, log: log}, nil
}

// EvaluateLogin never returns an error; on evaluation failure it logs and returns the static decision.
func (e *OPAEvaluator) EvaluateLogin(ctx context.Context, a *domain.Account) (LoginDecision, error) {
	d, err := e.eval(ctx, a)
	if err != nil {
		e.log.Warn("policy: login evaluation failed, using static policy", zap.String("account_id", a.ID), zap.Error(err))
		return e.fallback.EvaluateLogin(ctx, a)
	}
	return d, nil
}

// HealthCheck evaluates the prepared policy against a synthetic pending account.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, &domain.Account{Status: domain.VerificationPending})
	return err
}

func (e *OPAEvaluator) eval(ctx context.Context, a *domain.Account) (LoginDecision, error) {
	input := map[string]interface{}{
		"account": map[string]interface{}{
			"id":                  a.ID,
			"verification_status": string(a.Status),
			"mfa_enabled":         a.MFAEnabled,
		},
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return LoginDecision{}, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return LoginDecision{}, fmt.Errorf("policy query returned no result")
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return LoginDecision{}, fmt.Errorf("policy result is %T, want object", rs[0].Expressions[0].Value)
	}
	locked, ok1 := doc["locked"].(bool)
	mfa, ok2 := doc["mfa_required"].(bool)
	if !ok1 || !ok2 {
		return LoginDecision{}, fmt.Errorf("policy result missing locked/mfa_required")
	}
	return LoginDecision{Locked: locked, MFARequired: mfa}, nil
}

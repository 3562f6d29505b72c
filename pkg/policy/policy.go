package policy

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// DenyQuery is evaluated for every target before an email is drafted. It
// must produce a set of reason strings.
const DenyQuery = "data.outreach.deny"

// Policy decides whether a target may be contacted. A nil *Policy allows
// everything.
type Policy struct {
	deny *rego.PreparedEvalQuery
}

type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Load prepares the outreach policy from the .rego files in dir. It returns
// nil without error when dir has no policy files.
func Load(ctx context.Context, dir string) (*Policy, error) {
	modules, err := loadModules(dir)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, nil
	}

	deny, err := prepareQuery(ctx, modules, DenyQuery)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare outreach policy", goerr.V("dir", dir))
	}

	logging.From(ctx).Info("outreach policy loaded", "dir", dir, "files", len(modules))
	return &Policy{deny: deny}, nil
}

// Deny returns the sorted reasons that block outreach to target. An empty
// result means the target may be contacted.
func (p *Policy) Deny(ctx context.Context, target *model.Target, campaignContext string) ([]string, error) {
	if p == nil || p.deny == nil {
		return nil, nil
	}

	input, err := toInput(map[string]any{
		"target":           target,
		"campaign_context": campaignContext,
	})
	if err != nil {
		return nil, err
	}

	rs, err := p.deny.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&printHook{ctx: ctx}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate outreach policy")
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	values, ok := rs[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, goerr.New("outreach deny must be a set of strings",
			goerr.V("value", rs[0].Expressions[0].Value))
	}

	reasons := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, goerr.New("outreach deny reason must be a string", goerr.V("value", v))
		}
		reasons = append(reasons, s)
	}
	sort.Strings(reasons)
	return reasons, nil
}

// toInput converts v to plain JSON values so rego sees the json field names.
func toInput(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal policy input")
	}
	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, goerr.Wrap(err, "failed to decode policy input")
	}
	return input, nil
}

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/ast"
	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/rego"

	"github.com/fairgov/governor/pkg/domain"
)

// admissionModule is the built-in Rego admission policy every loaded
// document must pass before it is eligible for active enforcement.
const admissionModule = `package governor.admission

import rego.v1

deny contains msg if {
	not regex.match("^[a-z0-9]([-a-z0-9]*[a-z0-9])?$", input.name)
	msg := sprintf("name %q is not a valid resource name", [input.name])
}

deny contains msg if {
	input.kind == "NetworkPolicy"
	count(input.spec) == 0
	msg := "NetworkPolicy requires a non-empty spec"
}

deny contains msg if {
	some target in input.spec.targets
	target.replicas < 0
	msg := sprintf("target %q has negative replicas", [target.name])
}
`

const admissionQuery = "data.governor.admission.deny"

// Linter evaluates loaded policy documents against the embedded Rego
// admission rules. It is safe for concurrent use after construction.
type Linter struct {
	prepared rego.PreparedEvalQuery
}

// NewLinter parses and compiles the admission module once.
func NewLinter(ctx context.Context) (*Linter, error) {
	module, err := ast.ParseModuleWithOpts("governor/admission.rego", admissionModule, ast.ParserOptions{RegoVersion: ast.RegoV1})
	if err != nil {
		return nil, fmt.Errorf("parse admission module: %w", err)
	}

	prepared, err := rego.New(
		rego.Query(admissionQuery),
		rego.ParsedModule(module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile admission module: %w", err)
	}

	return &Linter{prepared: prepared}, nil
}

// Lint returns nil when the document passes admission, or an error listing
// every deny reason.
func (l *Linter) Lint(ctx context.Context, doc domain.PolicyDocument) error {
	spec := doc.Spec
	if spec == nil {
		spec = map[string]any{}
	}
	input := map[string]any{
		"kind":      doc.Kind,
		"name":      doc.Name,
		"namespace": doc.Namespace,
		"spec":      spec,
	}

	results, err := l.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return fmt.Errorf("admission eval: %w", err)
	}

	reasons := denyReasons(results)
	if len(reasons) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(reasons, "; "))
}

func denyReasons(results rego.ResultSet) []string {
	var reasons []string
	for _, result := range results {
		for _, expr := range result.Expressions {
			values, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, v := range values {
				if msg, ok := v.(string); ok {
					reasons = append(reasons, msg)
				}
			}
		}
	}
	sort.Strings(reasons)
	return reasons
}

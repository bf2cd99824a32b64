package policyopa

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gatepass/internal/domain"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const gateQuery = "data.gatepass.gate.decision"

//go:embed gate.rego
var defaultPolicy string

type Engine struct {
	query      rego.PreparedEvalQuery
	policyHash string
}

// NewEngine compiles the gate policy. An empty path selects the built-in
// policy; otherwise the rego file at path replaces it and must define
// data.gatepass.gate.decision.
func NewEngine(ctx context.Context, path string) (*Engine, error) {
	name, source := "gate.rego", defaultPolicy
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read gate policy: %w", err)
		}
		name, source = filepath.Base(path), string(raw)
	}
	return newEngine(ctx, name, source)
}

func newEngine(ctx context.Context, name, source string) (*Engine, error) {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(gateQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Module(name, source),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(source))
	return &Engine{
		query:      prepared,
		policyHash: hex.EncodeToString(sum[:]),
	}, nil
}

// PolicyHash identifies the compiled policy source in logs.
func (e *Engine) PolicyHash() string {
	return e.policyHash
}

func (e *Engine) Evaluate(ctx context.Context, input domain.GateInput) (domain.GateDecision, error) {
	if e == nil {
		return domain.GateDecision{}, errors.New("policy engine is nil")
	}
	doc, err := toDocument(input)
	if err != nil {
		return domain.GateDecision{}, err
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return domain.GateDecision{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.GateDecision{}, errors.New("empty policy result")
	}
	return decodeDecision(results[0].Expressions[0].Value)
}

func toDocument(input domain.GateInput) (map[string]any, error) {
	if input.Allowlist == nil {
		input.Allowlist = []string{}
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeDecision(value any) (domain.GateDecision, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.GateDecision{}, err
	}
	var decision domain.GateDecision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return domain.GateDecision{}, fmt.Errorf("decode gate decision: %w", err)
	}
	return decision, nil
}

func assertNoForbiddenBuiltins(compiler *ast.Compiler) error {
	if compiler == nil {
		return errors.New("policy compiler is nil")
	}
	forbidden := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, ok := ast.BuiltinMap[name]; !ok {
				return false
			}
			if _, ok := allowedBuiltins[name]; ok {
				return false
			}
			forbidden[name] = struct{}{}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}

var _ domain.GatePolicy = (*Engine)(nil)

package policyopa

import "github.com/open-policy-agent/opa/ast"

// Gate policies only compare strings and walk their input. Nondeterministic
// builtins such as time.now_ns or http.send are not available.
var allowedBuiltins = map[string]struct{}{
	"concat":     {},
	"contains":   {},
	"count":      {},
	"endswith":   {},
	"eq":         {},
	"equal":      {},
	"gt":         {},
	"gte":        {},
	"lower":      {},
	"lt":         {},
	"lte":        {},
	"neq":        {},
	"object.get": {},
	"split":      {},
	"sprintf":    {},
	"startswith": {},
	"trim":       {},
	"upper":      {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}

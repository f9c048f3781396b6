package wire

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// providerNames wire.NewSet / wire.Build 中直接列出的 provider，跳过子集合与 Bind/Struct
func providerNames(f *ast.File) []string {
	var out []string
	ast.Inspect(f, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		switch exprName(call.Fun) {
		case "wire.NewSet", "wire.Build":
		default:
			return true
		}
		for _, arg := range call.Args {
			if _, isCall := arg.(*ast.CallExpr); isCall {
				continue
			}
			name := exprName(arg)
			if name == "" || strings.HasSuffix(name, "Set") {
				continue
			}
			out = append(out, name)
		}
		return true
	})
	return out
}

func exprName(e ast.Expr) string {
	switch v := e.(type) {
	case *ast.Ident:
		return v.Name
	case *ast.SelectorExpr:
		if x, ok := v.X.(*ast.Ident); ok {
			return x.Name + "." + v.Sel.Name
		}
	}
	return ""
}

func TestInjectorsCallEveryProvider(t *testing.T) {
	fset := token.NewFileSet()
	sets, err := parser.ParseFile(fset, "wire.go", nil, parser.ParseComments)
	require.NoError(t, err)
	injectors, err := parser.ParseFile(fset, "wire_gen.go", nil, parser.ParseComments)
	require.NoError(t, err)

	assert.False(t, ast.IsGenerated(injectors), "wire_gen.go is maintained by hand and must not carry the generated marker")

	called := map[string]bool{}
	ast.Inspect(injectors, func(n ast.Node) bool {
		if call, ok := n.(*ast.CallExpr); ok {
			called[exprName(call.Fun)] = true
		}
		return true
	})

	providers := providerNames(sets)
	require.NotEmpty(t, providers)
	assert.Contains(t, providers, "ProvideOrchestrator")
	for _, p := range providers {
		assert.Truef(t, called[p], "provider %s is listed in wire.go but never called in wire_gen.go", p)
	}
}

package analyzer

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/logger"
	"strategy-validator/internal/types"
)

// forbiddenImports are packages a strategy has no business touching. Wall
// clock, network and process access all break reproducibility or isolation.
var forbiddenImports = map[string]string{
	"time":      "wall-clock access makes decisions non-reproducible",
	"math/rand": "unseeded randomness makes decisions non-reproducible",
	"net":       "network access is not permitted in strategies",
	"net/http":  "network access is not permitted in strategies",
	"os":        "filesystem/environment access is not permitted in strategies",
	"os/exec":   "spawning processes is not permitted in strategies",
	"syscall":   "direct syscalls are not permitted in strategies",
	"unsafe":    "unsafe memory access is not permitted in strategies",
}

// forbiddenCalls are selector calls flagged even when their package slipped
// in under an alias the import check missed.
var forbiddenCalls = map[string]string{
	"time.Now":   "reads the wall clock",
	"rand.Int":   "draws unseeded randomness",
	"rand.Float": "draws unseeded randomness",
	"os.Getenv":  "reads process environment",
}

// Scanner is the cheap structural pre-filter run before a strategy is
// instantiated. It is deliberately shallow: the definitive lookahead checks
// are the runtime differential tests, not this scan.
type Scanner struct{}

var _ interfaces.StaticAnalyzer = (*Scanner)(nil)

func New() *Scanner {
	return &Scanner{}
}

// Scan parses the source payload, collects structural violations and extracts
// the exported strategy type name the loader needs. A syntactically invalid
// payload is a failed scan, not an error.
func (s *Scanner) Scan(ctx context.Context, source string) (types.ScanResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "strategy.go", source, parser.ParseComments)
	if err != nil {
		return types.ScanResult{
			Passed:     false,
			Violations: []string{fmt.Sprintf("source does not parse: %v", err)},
		}, nil
	}

	var violations []string

	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		if reason, bad := forbiddenImports[path]; bad {
			violations = append(violations, fmt.Sprintf("forbidden import %q: %s", path, reason))
		}
	}

	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		pkg, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}
		qualified := pkg.Name + "." + sel.Sel.Name
		for prefix, reason := range forbiddenCalls {
			if strings.HasPrefix(qualified, prefix) {
				violations = append(violations,
					fmt.Sprintf("forbidden call %s at %s: %s", qualified, fset.Position(call.Pos()), reason))
			}
		}
		return true
	})

	typeName := extractStrategyType(file)
	if typeName == "" {
		violations = append(violations, "no exported strategy struct type found")
	}

	result := types.ScanResult{
		Passed:     len(violations) == 0,
		Violations: violations,
		TypeName:   typeName,
	}
	logger.Debug(ctx, "Static scan finished",
		"passed", result.Passed,
		"violations", len(violations),
		"type_name", typeName,
	)
	return result, nil
}

// extractStrategyType returns the first exported struct type declared in the
// file. The plugin contract requires exactly one exported strategy type per
// payload; extra types are scratch and unexported by convention.
func extractStrategyType(file *ast.File) string {
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			if _, isStruct := ts.Type.(*ast.StructType); !isStruct {
				continue
			}
			if ts.Name.IsExported() {
				return ts.Name.Name
			}
		}
	}
	return ""
}

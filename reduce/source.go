package reduce

import (
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"reflect"
	"runtime"
	"strings"
)

var errNoSource = errors.New("reduce: source not found")

// FuncName splits the symbol name of fn into its package path and the name
// within the package, e.g. ("github.com/acme/app/model", "Train.func1").
// Both are empty when fn is not a non-nil func.
func FuncName(fn any) (pkg, name string) {
	f := funcForValue(reflect.ValueOf(fn))
	if f == nil {
		return "", ""
	}
	return SplitSymbol(f.Name())
}

// SplitSymbol splits a runtime symbol name at the first dot after the last
// slash of the import path.
func SplitSymbol(symbol string) (pkg, name string) {
	slash := strings.LastIndexByte(symbol, '/')
	dot := strings.IndexByte(symbol[slash+1:], '.')
	if dot < 0 {
		return "", symbol
	}
	dot += slash + 1
	// The linker escapes dots in the last import path element.
	return strings.ReplaceAll(symbol[:dot], "%2e", "."), symbol[dot+1:]
}

// Source returns the source text of fn when its file is readable, otherwise
// its qualified symbol name. Code without source (stripped binaries, missing
// GOROOT) is assumed not to change.
func Source(fn any) string {
	f := funcForValue(reflect.ValueOf(fn))
	if f == nil {
		return ""
	}
	file, line := f.FileLine(f.Entry())
	if src, err := sourceAt(file, line); err == nil {
		return src
	}
	return f.Name()
}

func funcForValue(v reflect.Value) *runtime.Func {
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil
	}
	return runtime.FuncForPC(v.Pointer())
}

// sourceAt returns the text of the innermost func declaration or literal
// spanning line in file.
func sourceAt(file string, line int) (string, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}

	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, src, parser.SkipObjectResolution)
	if err != nil {
		return "", err
	}

	var best ast.Node
	ast.Inspect(parsed, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.FuncDecl, *ast.FuncLit:
			start := fset.Position(n.Pos()).Line
			end := fset.Position(n.End()).Line
			if start <= line && line <= end {
				best = n // Inspect visits parents first, so the last match is innermost
			}
		}
		return true
	})
	if best == nil {
		return "", errNoSource
	}

	from := fset.Position(best.Pos()).Offset
	to := fset.Position(best.End()).Offset
	return string(src[from:to]), nil
}

// TypeName returns the package-qualified name of t, or its literal form for
// unnamed types.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

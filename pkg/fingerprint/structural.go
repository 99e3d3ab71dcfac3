package fingerprint

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"os"
	"reflect"
	"runtime"

	"krama/pkg/codec"
)

// structuralBytes renders the callable's logic into a canonical byte stream.
//
// The defining source file is located through the runtime, parsed, and the
// enclosing function declaration or literal is normalized before printing:
// comments, blank lines, and source positions never reach the output, and
// identifiers declared inside the callable are replaced with positional
// tokens. What survives is exactly the operational logic: control flow,
// operators, literal constants, and references to names outside the
// callable.
func structuralBytes(fn any) ([]byte, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, fmt.Errorf("%w: not a function value (%T)", codec.ErrNotCacheable, fn)
	}

	rf := runtime.FuncForPC(rv.Pointer())
	if rf == nil {
		return nil, fmt.Errorf("%w: no runtime info for function", codec.ErrNotCacheable)
	}

	file, line := rf.FileLine(rf.Entry())
	src, err := os.ReadFile(file)
	if err != nil {
		// Stripped binaries and generated code have no source on disk.
		return nil, fmt.Errorf("%w: source unavailable for %s: %v", codec.ErrNotCacheable, rf.Name(), err)
	}

	// Object resolution is kept on: normalizeLocals uses it to tell local
	// bindings apart from references that escape the callable.
	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, src, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", codec.ErrNotCacheable, file, err)
	}

	node := enclosingFunc(fset, parsed, line)
	if node == nil {
		return nil, fmt.Errorf("%w: no function found at %s:%d", codec.ErrNotCacheable, file, line)
	}

	normalizeLocals(node)
	clearPositions(node)

	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, node); err != nil {
		return nil, fmt.Errorf("%w: render function: %v", codec.ErrNotCacheable, err)
	}
	return buf.Bytes(), nil
}

// enclosingFunc returns the innermost FuncDecl or FuncLit whose source span
// contains the given line. Innermost matters for function literals defined
// inside another function.
func enclosingFunc(fset *token.FileSet, file *ast.File, line int) ast.Node {
	var best ast.Node
	bestSpan := 0

	ast.Inspect(file, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.FuncDecl, *ast.FuncLit:
			start := fset.Position(n.Pos())
			end := fset.Position(n.End())
			if start.Line <= line && line <= end.Line {
				span := end.Line - start.Line
				if best == nil || span <= bestSpan {
					best = n
					bestSpan = span
				}
			}
		}
		return true
	})
	return best
}

// normalizeLocals rewrites, in place, every identifier bound inside the
// function to a positional token, and strips doc comments. Binding is
// decided per parser object, so a local that shadows an external name never
// drags uses of the external along with it. Identifiers that resolve outside
// the function, or not at all like selector fields and other packages'
// names, keep their names, so a changed external reference still changes
// the rendered stream.
//
// A declaration's own name is cosmetic too: a plain function rename keeps
// its digest, and recursion stays consistent because every use shares the
// declaration's object.
func normalizeLocals(node ast.Node) {
	if decl, ok := node.(*ast.FuncDecl); ok {
		decl.Doc = nil
	}

	// First pass: walk in syntax order and number each object whose
	// declaration sits inside the node, so positional numbering is stable.
	tokens := make(map[*ast.Object]string)
	ast.Inspect(node, func(n ast.Node) bool {
		id, ok := n.(*ast.Ident)
		if !ok || id.Obj == nil {
			return true
		}
		if _, seen := tokens[id.Obj]; seen {
			return true
		}
		if pos := id.Obj.Pos(); node.Pos() <= pos && pos < node.End() {
			tokens[id.Obj] = fmt.Sprintf("v%d", len(tokens))
		}
		return true
	})

	// Second pass: rewrite uses. Renaming must not start earlier because
	// object positions are recovered from declaration names.
	ast.Inspect(node, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok {
			if repl, ok := tokens[id.Obj]; ok {
				id.Name = repl
			}
		}
		return true
	})
}

var noPos = reflect.ValueOf(token.NoPos)

// clearPositions invalidates every position in the subtree. The printer
// preserves the source's line gaps between valid positions, which would let
// blank lines and removed comment lines leak into the rendered bytes.
func clearPositions(node ast.Node) {
	ast.Inspect(node, func(n ast.Node) bool {
		if n == nil {
			return false
		}
		v := reflect.ValueOf(n).Elem()
		if v.Kind() != reflect.Struct {
			return true
		}
		for i := 0; i < v.NumField(); i++ {
			if f := v.Field(i); f.Type() == noPos.Type() {
				f.Set(noPos)
			}
		}
		return true
	})
}

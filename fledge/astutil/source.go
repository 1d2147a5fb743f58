// Package astutil inspects Go source with the standard go/parser so generators
// can locate insertion points and check their edits before writing them.
package astutil

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
)

// Import is one import spec of a Go file. Name is empty for unaliased imports.
type Import struct {
	Name string
	Path string
}

// ValidateSyntax parses bytes to ensure valid Go syntax.
func ValidateSyntax(content []byte) error {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "", content, parser.AllErrors); err != nil {
		return fmt.Errorf("syntax validation failed: %w", err)
	}
	return nil
}

// Imports returns the import specs of a Go file, parsing only up to the end
// of the import block.
func Imports(content []byte) ([]Import, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.ImportsOnly)
	if err != nil {
		return nil, fmt.Errorf("parsing imports: %w", err)
	}

	imports := make([]Import, 0, len(file.Imports))
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			return nil, fmt.Errorf("import path %s: %w", spec.Path.Value, err)
		}
		imp := Import{Path: path}
		if spec.Name != nil {
			imp.Name = spec.Name.Name
		}
		imports = append(imports, imp)
	}
	return imports, nil
}

// HasImport reports whether imports contains path under the given name.
// An empty name matches only an unaliased import.
func HasImport(imports []Import, name, path string) bool {
	for _, imp := range imports {
		if imp.Path == path && imp.Name == name {
			return true
		}
	}
	return false
}

// Span is a byte range of a source file.
type Span struct {
	Start int
	End   int
}

// FuncBody returns the offsets of the braces around the body of the top-level
// function name. ok is false when the file has no such function.
func FuncBody(content []byte, name string) (body Span, ok bool, err error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.SkipObjectResolution)
	if err != nil {
		return Span{}, false, fmt.Errorf("parsing source: %w", err)
	}

	for _, decl := range file.Decls {
		fn, isFunc := decl.(*ast.FuncDecl)
		if !isFunc || fn.Recv != nil || fn.Name.Name != name || fn.Body == nil {
			continue
		}
		return Span{
			Start: fset.Position(fn.Body.Lbrace).Offset,
			End:   fset.Position(fn.Body.Rbrace).Offset,
		}, true, nil
	}
	return Span{}, false, nil
}

// Literal locates the composite literal assigned to a package variable.
type Literal struct {
	// Braces holds the offsets of the opening and closing brace.
	Braces Span
	// LastElem is the end offset of the last element, or -1 for an empty literal.
	LastElem int
}

// VarLiteral finds the package-level variable name whose value is a composite
// literal. ok is false when there is no such variable.
func VarLiteral(content []byte, name string) (lit Literal, ok bool, err error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.SkipObjectResolution)
	if err != nil {
		return Literal{}, false, fmt.Errorf("parsing source: %w", err)
	}

	for _, decl := range file.Decls {
		gen, isGen := decl.(*ast.GenDecl)
		if !isGen || gen.Tok != token.VAR {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, ident := range vs.Names {
				if ident.Name != name || i >= len(vs.Values) {
					continue
				}
				cl, isLit := vs.Values[i].(*ast.CompositeLit)
				if !isLit {
					return Literal{}, false, nil
				}
				lit = Literal{
					Braces:   Span{Start: fset.Position(cl.Lbrace).Offset, End: fset.Position(cl.Rbrace).Offset},
					LastElem: -1,
				}
				if n := len(cl.Elts); n > 0 {
					lit.LastElem = fset.Position(cl.Elts[n-1].End()).Offset
				}
				return lit, true, nil
			}
		}
	}
	return Literal{}, false, nil
}

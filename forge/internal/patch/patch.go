// Package patch wires a generated module into the project's registry file.
//
// The registry is an ordinary Go file holding either a registration function
// or a provider list. Patch finds the insertion point with go/parser, inserts
// the import lines and the registration statement as text, and checks the
// result before anything is written. Bytes outside the insertion are left as
// they were, and running it twice leaves the file byte-identical.
package patch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/simonhull/firebird-suite/fledge/astutil"
)

// Mode selects how the module is registered.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeFunction Mode = "function"
	ModeList     Mode = "list"
)

// ParseMode validates a configured mode. An empty string means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeFunction, ModeList:
		return m, nil
	default:
		return "", fmt.Errorf("unknown registry mode %q (want auto, function or list)", s)
	}
}

// Status is the outcome of a patch.
type Status string

const (
	StatusPatched        Status = "patched"
	StatusAlreadyPresent Status = "already-present"
)

// ErrAnchorNotFound is returned when the registry has neither the
// registration function nor the provider list.
var ErrAnchorNotFound = errors.New("registry anchor not found")

// Import is one aliased import line.
type Import struct {
	Alias string
	Path  string
}

func (i Import) String() string {
	if i.Alias == "" {
		return fmt.Sprintf("import %q", i.Path)
	}
	return fmt.Sprintf("import %s %q", i.Alias, i.Path)
}

// Registration is what one mode inserts.
type Registration struct {
	// Anchor is the function or variable name to look for.
	Anchor    string
	Statement string
	Imports   []Import
}

// Request describes one registry patch.
type Request struct {
	Mode     Mode
	Function Registration
	List     Registration
}

// Result reports what Patch did. After equals Before when nothing changed.
type Result struct {
	Status         Status
	Mode           Mode
	AddedImports   []Import
	StatementAdded bool
	Before         []byte
	After          []byte
}

// Changed reports whether the content was modified.
func (r Result) Changed() bool { return r.Status == StatusPatched }

// Patch applies req to content without touching any file.
func Patch(content []byte, req Request) (Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeAuto
	}

	switch mode {
	case ModeFunction:
		return patchWith(content, ModeFunction, req.Function, insertIntoFunction)
	case ModeList:
		return patchWith(content, ModeList, req.List, insertIntoList)
	case ModeAuto:
		res, err := patchWith(content, ModeFunction, req.Function, insertIntoFunction)
		if !errors.Is(err, ErrAnchorNotFound) {
			return res, err
		}
		res, err = patchWith(content, ModeList, req.List, insertIntoList)
		if errors.Is(err, ErrAnchorNotFound) {
			return res, fmt.Errorf("%w: neither func %s nor var %s", ErrAnchorNotFound, req.Function.Anchor, req.List.Anchor)
		}
		return res, err
	default:
		return Result{}, fmt.Errorf("unknown registry mode %q", mode)
	}
}

type inserter func(src, anchor, statement string) (string, error)

func patchWith(content []byte, mode Mode, reg Registration, insert inserter) (Result, error) {
	res := Result{Status: StatusAlreadyPresent, Mode: mode, Before: content, After: content}
	src := string(content)

	statement := strings.TrimSpace(reg.Statement)
	if statement == "" {
		return res, fmt.Errorf("empty %s registration statement", mode)
	}

	patched, err := insert(src, reg.Anchor, statement)
	if err != nil {
		return res, err
	}
	if patched != src {
		res.StatementAdded = true
	}

	missing, err := missingImports(content, reg.Imports)
	if err != nil {
		return res, err
	}
	if len(missing) > 0 {
		patched, err = insertImports(patched, missing)
		if err != nil {
			return res, err
		}
		res.AddedImports = missing
	}

	if !res.StatementAdded && len(res.AddedImports) == 0 {
		return res, nil
	}

	after := []byte(patched)
	if err := astutil.ValidateSyntax(after); err != nil {
		return res, fmt.Errorf("patched registry: %w", err)
	}
	res.Status = StatusPatched
	res.After = after
	return res, nil
}

// hasLines reports whether the lines of block appear consecutively in src,
// comparing trimmed lines.
func hasLines(src, block string) bool {
	want := strings.Split(block, "\n")
	lines := strings.Split(src, "\n")
	for i := 0; i+len(want) <= len(lines); i++ {
		found := true
		for j, w := range want {
			if strings.TrimSpace(lines[i+j]) != strings.TrimSpace(w) {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

func missingImports(content []byte, imports []Import) ([]Import, error) {
	if len(imports) == 0 {
		return nil, nil
	}
	existing, err := astutil.Imports(content)
	if err != nil {
		return nil, fmt.Errorf("reading registry imports: %w", err)
	}

	var missing []Import
	for _, imp := range imports {
		if hasLines(string(content), imp.String()) || astutil.HasImport(existing, imp.Alias, imp.Path) {
			continue
		}
		missing = append(missing, imp)
	}
	return missing, nil
}

var packagePattern = regexp.MustCompile(`(?m)^package[ \t]+\w+[^\n]*$`)

func insertImports(src string, imports []Import) (string, error) {
	loc := packagePattern.FindStringIndex(src)
	if loc == nil {
		return "", errors.New("registry has no package clause")
	}
	var b strings.Builder
	b.WriteString("\n")
	for _, imp := range imports {
		b.WriteString("\n" + imp.String())
	}
	return src[:loc[1]] + b.String() + src[loc[1]:], nil
}

func insertIntoFunction(src, name, statement string) (string, error) {
	body, ok, err := astutil.FuncBody([]byte(src), name)
	if err != nil {
		return "", fmt.Errorf("reading registry: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: func %s", ErrAnchorNotFound, name)
	}
	if hasLines(src[body.Start+1:body.End], statement) {
		return src, nil
	}

	// A comment on the brace line stays there. Code on the brace line moves
	// below the new statement.
	open := body.Start + 1
	eol := open + strings.IndexByte(src[open:], '\n')
	if eol >= open {
		if rest := strings.TrimSpace(src[open:eol]); rest == "" || strings.HasPrefix(rest, "//") {
			return src[:eol] + "\n" + indent(statement) + src[eol:], nil
		}
	}
	return src[:open] + "\n" + indent(statement) + "\n" + src[open:], nil
}

func insertIntoList(src, name, entry string) (string, error) {
	lit, ok, err := astutil.VarLiteral([]byte(src), name)
	if err != nil {
		return "", fmt.Errorf("reading registry: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: var %s", ErrAnchorNotFound, name)
	}
	if !strings.HasSuffix(entry, ",") {
		entry += ","
	}
	closing := lit.Braces.End
	if hasLines(src[lit.Braces.Start+1:closing], entry) {
		return src, nil
	}

	head, tail := src[:closing], src[closing:]
	if lit.LastElem >= 0 && !hasComma(src[lit.LastElem:closing]) {
		head = head[:lit.LastElem] + "," + head[lit.LastElem:]
	}

	lineStart := strings.LastIndexByte(head, '\n') + 1
	if strings.TrimSpace(head[lineStart:]) == "" {
		return head[:lineStart] + indent(entry) + "\n" + head[lineStart:] + tail, nil
	}
	return head + "\n" + indent(entry) + "\n" + tail, nil
}

func indent(s string) string {
	return "\t" + strings.ReplaceAll(s, "\n", "\n\t")
}

// hasComma reports whether s, the text between the last list element and the
// closing brace, holds a comma outside comments.
func hasComma(s string) bool {
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == ',':
			return true
		case strings.HasPrefix(s[i:], "//"):
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				return false
			}
			i += nl
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += end + 3
		}
	}
	return false
}

// Apply patches the registry file at path in place. The file is written
// once, and only when the patch changed it.
func Apply(fsys afero.Fs, path string, req Request) (Result, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading registry: %w", err)
	}
	content, err := afero.ReadFile(fsys, path)
	if err != nil {
		return Result{}, fmt.Errorf("reading registry: %w", err)
	}

	res, err := Patch(content, req)
	if err != nil || !res.Changed() {
		return res, err
	}
	if bytes.Equal(res.After, content) {
		res.Status = StatusAlreadyPresent
		return res, nil
	}
	if err := afero.WriteFile(fsys, path, res.After, info.Mode().Perm()); err != nil {
		return res, fmt.Errorf("writing registry: %w", err)
	}
	return res, nil
}

// Exists reports whether the registry file is present.
func Exists(fsys afero.Fs, path string) (bool, error) {
	_, err := fsys.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

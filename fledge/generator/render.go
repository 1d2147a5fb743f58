package generator

import (
	"bytes"
	"fmt"
	"go/token"
	"io/fs"
	"strings"
	"sync"
	"text/template"
	"unicode"
)

// Renderer parses and executes text/template sources, caching parsed templates.
// It is safe for concurrent use.
type Renderer struct {
	funcMap template.FuncMap
	cache   map[string]*template.Template
	mu      sync.RWMutex
}

// NewRenderer creates a renderer with the built-in helper functions.
func NewRenderer() *Renderer {
	return &Renderer{
		funcMap: defaultFuncMap(),
		cache:   make(map[string]*template.Template),
	}
}

// RenderString renders a template held in memory.
// The name is used for caching and error messages.
func (r *Renderer) RenderString(name, templateStr string, data any) ([]byte, error) {
	return r.render("string:"+name, name, func() (string, error) {
		return templateStr, nil
	}, data)
}

// RenderFS renders the template at path inside fsys (typically an embed.FS).
func (r *Renderer) RenderFS(fsys fs.FS, path string, data any) ([]byte, error) {
	return r.render("fs:"+path, path, func() (string, error) {
		b, err := fs.ReadFile(fsys, path)
		if err != nil {
			return "", fmt.Errorf("failed to read template from fs '%s': %w", path, err)
		}
		return string(b), nil
	}, data)
}

// ClearCache drops every parsed template.
func (r *Renderer) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*template.Template)
}

func (r *Renderer) render(key, name string, load func() (string, error), data any) ([]byte, error) {
	r.mu.RLock()
	tmpl, ok := r.cache[key]
	r.mu.RUnlock()

	if !ok {
		src, err := load()
		if err != nil {
			return nil, err
		}
		tmpl, err = template.New(name).Funcs(r.funcMap).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template '%s': %w", name, err)
		}
		r.mu.Lock()
		r.cache[key] = tmpl
		r.mu.Unlock()
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template '%s': %w", name, err)
	}
	return buf.Bytes(), nil
}

func defaultFuncMap() template.FuncMap {
	return template.FuncMap{
		"pascalCase": PascalCase, // user_id → UserID
		"camelCase":  CamelCase,  // user_id → userId
		"snakeCase":  SnakeCase,  // InvoiceLine → invoice_line
		"goIdent":    GoIdent,    // type → type_
		"plural":     Pluralize,
		"quote":      Quote,
		"lower":      strings.ToLower,
		"join":       strings.Join,
	}
}

// acronyms are rendered fully upper-cased by PascalCase.
var acronyms = map[string]string{
	"id":    "ID",
	"url":   "URL",
	"uri":   "URI",
	"http":  "HTTP",
	"https": "HTTPS",
	"api":   "API",
	"uuid":  "UUID",
	"sql":   "SQL",
	"html":  "HTML",
	"css":   "CSS",
	"json":  "JSON",
	"xml":   "XML",
	"ip":    "IP",
	"tcp":   "TCP",
	"udp":   "UDP",
	"tls":   "TLS",
	"ssl":   "SSL",
	"db":    "DB",
	"ui":    "UI",
	"os":    "OS",
}

// PascalCase converts snake_case or camelCase to PascalCase.
// Examples: user_name → UserName, userName → UserName, user_id → UserID
func PascalCase(s string) string {
	if s == "" {
		return ""
	}

	if strings.Contains(s, "_") {
		var b strings.Builder
		for _, part := range strings.Split(s, "_") {
			b.WriteString(capitalizeWord(part))
		}
		return b.String()
	}

	if unicode.IsLower(rune(s[0])) {
		return capitalizeWord(s)
	}
	return s
}

func capitalizeWord(s string) string {
	if s == "" {
		return ""
	}
	if acronym, ok := acronyms[strings.ToLower(s)]; ok {
		return acronym
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// CamelCase converts snake_case or PascalCase to camelCase.
// Examples: user_name → userName, UserName → userName
func CamelCase(s string) string {
	if s == "" {
		return ""
	}

	if strings.Contains(s, "_") {
		var b strings.Builder
		first := true
		for _, part := range strings.Split(s, "_") {
			if part == "" {
				continue
			}
			if first {
				b.WriteString(strings.ToLower(part))
				first = false
				continue
			}
			b.WriteString(strings.ToUpper(part[:1]) + strings.ToLower(part[1:]))
		}
		return b.String()
	}

	if unicode.IsUpper(rune(s[0])) {
		return strings.ToLower(s[:1]) + s[1:]
	}
	return s
}

// SnakeCase converts PascalCase or camelCase to snake_case.
// Examples: UserName → user_name, HTTPServer → http_server
func SnakeCase(s string) string {
	if strings.Contains(s, "_") {
		return strings.ToLower(s)
	}

	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			// Break before an upper-case rune that follows a lower-case one, and
			// before the last capital of an acronym run (HTTPServer → http_server).
			if i > 0 {
				prev := rune(s[i-1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) {
					b.WriteRune('_')
				} else if i+1 < len(s) && unicode.IsLower(rune(s[i+1])) {
					b.WriteRune('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GoIdent returns the camelCase form of s, suffixed with an underscore when it
// would otherwise be a Go keyword.
func GoIdent(s string) string {
	ident := CamelCase(s)
	if token.IsKeyword(ident) {
		return ident + "_"
	}
	return ident
}

// Quote wraps a string in double quotes using Go escaping.
func Quote(s string) string {
	return fmt.Sprintf("%q", s)
}

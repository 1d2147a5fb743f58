// Package render turns a module name and its parsed properties into the Go
// source of every generated file.
//
// Whole files come from stubs: plain text with {{ key }} placeholders that a
// project can override. The repeated parts inside them (factories, fields,
// getters, columns) are rendered from embedded text/template fragments and
// substituted into the stub as ready-made text.
package render

import (
	"fmt"
	"go/format"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/simonhull/firebird-suite/fledge/generator"
	"github.com/simonhull/firebird-suite/forge/internal/layout"
	"github.com/simonhull/firebird-suite/forge/internal/props"
)

// Router flavors for the routes and provider files.
const (
	RouterStdlib = "stdlib"
	RouterChi    = "chi"
)

// Options configures a Renderer.
type Options struct {
	// Sources are consulted in order. The built-in stubs are used when empty.
	Sources []Source
	Router  string
	Rules   RuleOptions
	Logger  *zap.Logger
}

// Renderer resolves stubs and renders module files.
type Renderer struct {
	sources []Source
	tmpl    *generator.Renderer
	router  string
	rules   RuleOptions
	log     *zap.Logger
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	sources := opts.Sources
	if len(sources) == 0 {
		sources = []Source{Builtin()}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	router := opts.Router
	if router == "" {
		router = RouterStdlib
	}
	return &Renderer{
		sources: sources,
		tmpl:    generator.NewRenderer(),
		router:  router,
		rules:   opts.Rules,
		log:     log,
	}
}

// Sources returns the lookup chain in order.
func (r *Renderer) Sources() []Source { return r.sources }

// Stub resolves the template for id.
func (r *Renderer) Stub(id string) (Stub, error) {
	return Resolve(r.sources, id)
}

// Render resolves the stub for id and fills it with values.
func (r *Renderer) Render(id string, values map[string]string) (string, error) {
	stub, err := r.Stub(id)
	if err != nil {
		return "", err
	}
	if keys := missing(stub.Content, values); len(keys) > 0 {
		r.log.Debug("placeholders left unresolved",
			zap.String("stub", id),
			zap.String("source", stub.Source),
			zap.Strings("keys", keys))
	}
	return Fill(stub.Content, values), nil
}

// Snippet renders a one-line stub such as a registry entry, trimmed.
func (r *Renderer) Snippet(id string, values map[string]string) (string, error) {
	out, err := r.Render(id, values)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Renderer) fragment(name string, data any) (string, error) {
	out, err := r.tmpl.RenderFS(assets, "fragments/"+name+".tmpl", data)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return strings.Trim(string(out), "\n"), nil
}

// Format runs gofmt over src. When src does not parse it is returned
// unchanged together with the parse error.
func Format(src []byte) ([]byte, error) {
	out, err := format.Source(src)
	if err != nil {
		return src, err
	}
	return out, nil
}

// importBlock renders an import declaration. An empty path separates groups.
func importBlock(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nimport (\n")
	for _, p := range paths {
		if p == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString("\t" + strconv.Quote(p) + "\n")
	}
	b.WriteString(")\n")
	return b.String()
}

type entityData struct {
	Module   string
	Rules    []Rule
	Others   []Rule
	Identity *Rule
}

func newEntityData(module string, rules []Rule) entityData {
	d := entityData{Module: module, Rules: rules}
	for i := range rules {
		if rules[i].Identity {
			d.Identity = &rules[i]
			continue
		}
		d.Others = append(d.Others, rules[i])
	}
	return d
}

type planner struct {
	r        *Renderer
	plan     *Plan
	warnings []string
}

func (p *planner) add(path, id, group string, values map[string]string) error {
	content, err := p.r.Render(id, values)
	if err != nil {
		return err
	}
	src, err := Format([]byte(content))
	if err != nil {
		p.warnings = append(p.warnings, fmt.Sprintf("%s is not valid Go and was left unformatted: %v", path, err))
	}
	return p.plan.Add(Artifact{Path: path, Template: id, Group: group, Content: src})
}

func with(base map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(base)+len(kv)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

// PlanModule renders every file of module m. The returned warnings name
// artifacts that could not be formatted.
func (r *Renderer) PlanModule(m layout.Module, res props.Result, modulePath string) (*Plan, []string, error) {
	rules := DeriveRules(m, res, r.rules)
	p := &planner{r: r, plan: NewPlan()}

	base := map[string]string{
		"module":             m.Name,
		"moduleSnake":        m.Snake,
		"contract":           m.Contract(),
		"repository":         m.Repository(),
		"mapper":             m.Mapper(),
		"provider":           m.Provider(),
		"resource":           m.Resource(),
		"entitiesImport":     m.ImportPath(modulePath, layout.EntitiesDir),
		"contractsImport":    m.ImportPath(modulePath, layout.ContractsDir),
		"valueObjectsImport": m.ImportPath(modulePath, layout.ValueObjectsDir),
		"enumsImport":        m.ImportPath(modulePath, layout.EnumsDir),
		"repositoriesImport": m.ImportPath(modulePath, layout.RepositoriesDir),
		"routesImport":       m.ImportPath(modulePath, layout.RoutesDir),
	}

	var hasScalars, hasEnums bool
	for _, rule := range rules {
		if rule.IsEnum {
			hasEnums = true
			if err := r.planEnum(p, m, base, rule); err != nil {
				return nil, nil, err
			}
		}
	}
	for _, rule := range rules {
		if !rule.IsEnum {
			hasScalars = true
			if err := r.planValueObject(p, m, base, rule); err != nil {
				return nil, nil, err
			}
		}
	}

	data := newEntityData(m.Name, rules)
	if len(rules) == 0 {
		if err := p.add(m.EntityFile(), StubEntitySimple, GroupDomainFiles, base); err != nil {
			return nil, nil, err
		}
	} else {
		imports := []string{"fmt"}
		if hasScalars || hasEnums {
			imports = append(imports, "")
		}
		if hasEnums {
			imports = append(imports, base["enumsImport"])
		}
		if hasScalars {
			imports = append(imports, base["valueObjectsImport"])
		}
		values := with(base, "imports", importBlock(imports))
		for key, name := range map[string]string{
			"fields":         "entity_fields",
			"constructor":    "entity_constructor",
			"fromPrimitives": "entity_from_primitives",
			"getters":        "entity_getters",
		} {
			out, err := r.fragment(name, data)
			if err != nil {
				return nil, nil, err
			}
			values[key] = out
		}
		if err := p.add(m.EntityFile(), StubEntity, GroupDomainFiles, values); err != nil {
			return nil, nil, err
		}
	}

	if err := p.add(m.ContractFile(), StubRepositoryContract, GroupDomainFiles, base); err != nil {
		return nil, nil, err
	}
	if err := p.add(m.RepositoryFile(), StubRepository, GroupDomainFiles, base); err != nil {
		return nil, nil, err
	}

	if len(rules) > 0 {
		columns, err := r.fragment("mapper_columns", data)
		if err != nil {
			return nil, nil, err
		}
		values := with(base, "columns", columns, "columnCount", strconv.Itoa(len(data.Others)))
		if err := p.add(m.MapperFile(), StubMapper, GroupDomainFiles, values); err != nil {
			return nil, nil, err
		}
	}

	routesStub, router := StubRoutes, stdlibRouter
	if r.router == RouterChi {
		routesStub, router = StubRoutesChi, chiRouter
	}
	if err := p.add(m.RoutesFile(), routesStub, GroupDomainFiles, base); err != nil {
		return nil, nil, err
	}
	values := with(base,
		"routerImport", router.imp,
		"routerParam", router.param,
		"routerArg", router.arg)
	if err := p.add(m.ProviderFile(), StubProvider, GroupDomainFiles, values); err != nil {
		return nil, nil, err
	}

	return p.plan, p.warnings, nil
}

type routerFlavor struct{ imp, param, arg string }

var (
	stdlibRouter = routerFlavor{imp: `"net/http"`, param: "mux *http.ServeMux", arg: "mux"}
	chiRouter    = routerFlavor{imp: `"github.com/go-chi/chi/v5"`, param: "r chi.Router", arg: "r"}
)

func (r *Renderer) planEnum(p *planner, m layout.Module, base map[string]string, rule Rule) error {
	cases, err := r.fragment("enum_cases", rule)
	if err != nil {
		return err
	}
	all, err := r.fragment("enum_all", rule)
	if err != nil {
		return err
	}
	values := with(base,
		"class", rule.Class,
		"property", rule.Prop.Name,
		"cases", cases,
		"all", all)
	return p.add(m.EnumFile(rule.Prop.Name), StubEnum, GroupEnums, values)
}

func (r *Renderer) planValueObject(p *planner, m layout.Module, base map[string]string, rule Rule) error {
	factories, err := r.fragment("vo_factories", rule)
	if err != nil {
		return err
	}
	values := with(base,
		"class", rule.Class,
		"property", rule.Prop.Name,
		"valueType", rule.ValueType,
		"imports", importBlock(rule.Imports()),
		"factories", factories)
	return p.add(m.ValueObjectFile(rule.Prop.Name), StubValueObject, GroupValueObjects, values)
}

type modelColumn struct {
	Name   string
	Type   string
	Column string
}

// reservedColumns are already part of the model stub.
var reservedColumns = map[string]bool{"id": true, "created_at": true, "updated_at": true}

// Model renders the storage model of m with one column per property.
func (r *Renderer) Model(m layout.Module, res props.Result) ([]byte, error) {
	var columns []modelColumn
	for _, rule := range DeriveRules(m, res, r.rules) {
		if reservedColumns[rule.Column] {
			continue
		}
		typ := rule.ValueType
		switch {
		case rule.IsEnum:
			typ = "string"
		case rule.Prop.Base == props.Opaque:
			typ = "any"
		}
		if rule.Nullable() {
			typ = "*" + typ
		}
		columns = append(columns, modelColumn{Name: rule.Getter, Type: typ, Column: rule.Column})
	}

	out, err := r.fragment("model_columns", columns)
	if err != nil {
		return nil, err
	}
	content, err := r.Render(StubModel, map[string]string{
		"module":  m.Name,
		"columns": out,
		"table":   generator.Pluralize(m.Snake),
	})
	if err != nil {
		return nil, err
	}
	return Format([]byte(content))
}

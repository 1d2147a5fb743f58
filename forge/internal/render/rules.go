package render

import (
	"go/token"
	"strings"

	"github.com/simonhull/firebird-suite/fledge/generator"
	"github.com/simonhull/firebird-suite/forge/internal/layout"
	"github.com/simonhull/firebird-suite/forge/internal/props"
)

// Factory kinds understood by the value-object fragment.
const (
	FactoryWrap      = "wrap"      // returns New<Class>(value)
	FactoryParseTime = "parseTime" // parses an RFC 3339 string
	FactoryNullable  = "nullable"  // nil-aware twin of Via
)

// Identity generator kinds.
const (
	GenerateUUID    = "uuid"
	GenerateStorage = "storage"
)

// Factory is one constructor function generated next to a value object.
type Factory struct {
	Name  string
	Kind  string
	Param string
	// Via is the factory a nullable twin delegates to.
	Via string
}

// EnumCase is one constant of a generated enum.
type EnumCase struct {
	Const string
	Value string
}

// Rule holds everything derived from one property before rendering.
type Rule struct {
	Prop props.Property
	// Class is the value object or enum type name, e.g. InvoiceTotal.
	Class  string
	Field  string
	Param  string
	Getter string
	Column string

	IsEnum    bool
	Identity  bool
	Timestamp bool
	Secret    bool

	// ValueType is the Go type wrapped by the value object.
	ValueType string
	// FieldType is the entity field type, qualified with its package.
	FieldType string
	// Primitive is the parameter type accepted by <Module>FromPrimitives.
	Primitive string
	// Converter routes a primitive into FieldType, e.g. valueobjects.InvoiceTotalFromFloat.
	Converter string

	Factories []Factory
	Generator string
	Cases     []EnumCase
}

// Nullable reports whether the entity field is optional.
func (r Rule) Nullable() bool { return r.Prop.Nullable }

// Imports lists the packages the value object file needs, standard library first.
func (r Rule) Imports() []string {
	var std, ext []string
	if r.Timestamp {
		std = append(std, "fmt", "time")
	}
	switch r.Generator {
	case GenerateStorage:
		std = append(std, "errors")
	case GenerateUUID:
		ext = append(ext, "github.com/google/uuid")
	}
	if r.Secret {
		ext = append(ext, "golang.org/x/crypto/bcrypt")
	}
	if len(ext) > 0 && len(std) > 0 {
		std = append(std, "")
	}
	return append(std, ext...)
}

var goTypes = map[props.Base]string{
	props.Int:       "int",
	props.Float:     "float64",
	props.Bool:      "bool",
	props.String:    "string",
	props.Timestamp: "time.Time",
	props.Secret:    "string",
}

var factorySuffixes = map[props.Base]string{
	props.Int:    "Int",
	props.Float:  "Float",
	props.Bool:   "Bool",
	props.String: "String",
}

// reservedParams are identifiers the generated entity uses itself.
var reservedParams = map[string]bool{
	"err":          true,
	"entity":       true,
	"fmt":          true,
	"enums":        true,
	"valueobjects": true,
}

// RuleOptions tunes rule derivation.
type RuleOptions struct {
	// NameHeuristics treats names containing "password" as secrets and names
	// ending in "_at" as timestamps, in addition to the explicit type tags.
	NameHeuristics bool
}

// DeriveRules computes the rule of every property in declaration order.
func DeriveRules(m layout.Module, res props.Result, opts RuleOptions) []Rule {
	rules := make([]Rule, 0, len(res.Properties))
	for _, p := range res.Properties {
		rules = append(rules, DeriveRule(m, p, opts))
	}
	return rules
}

// DeriveRule computes the generation rule for a single property.
func DeriveRule(m layout.Module, p props.Property, opts RuleOptions) Rule {
	r := Rule{
		Prop:   p,
		Class:  m.ClassFor(p.Name),
		Field:  generator.GoIdent(p.Name),
		Getter: generator.PascalCase(p.Name),
		Column: generator.SnakeCase(p.Name),
	}
	r.Param = r.Field
	if reservedParams[r.Param] || token.IsKeyword(r.Param) {
		r.Param += "_"
	}

	if p.IsEnum() {
		r.IsEnum = true
		r.FieldType = "enums." + r.Class
		r.Primitive = "string"
		r.Converter = "enums." + r.Class + "FromString"
		for _, v := range p.Values {
			r.Cases = append(r.Cases, EnumCase{Const: r.Class + generator.PascalCase(v), Value: v})
		}
		return r
	}

	r.Identity = p.Name == "id"
	r.Secret = p.Base == props.Secret ||
		(opts.NameHeuristics && strings.Contains(p.Name, "password"))
	r.Timestamp = !r.Secret && (p.Base == props.Timestamp ||
		(opts.NameHeuristics && strings.HasSuffix(p.Name, "_at")))

	r.FieldType = "valueobjects." + r.Class
	if p.Nullable {
		r.FieldType = "*" + r.FieldType
	}

	switch {
	case r.Secret:
		r.ValueType = "string"
		r.addFactory("Hashed", "string", FactoryWrap, p.Nullable)
	case r.Timestamp:
		// Timestamps always get both string factories, whatever their nullability.
		r.ValueType = "time.Time"
		r.addFactory("String", "string", FactoryParseTime, true)
	default:
		r.ValueType = scalarType(p)
		suffix, ok := factorySuffixes[p.Base]
		if !ok {
			suffix = "Value"
		}
		r.addFactory(suffix, r.ValueType, FactoryWrap, p.Nullable)
	}

	base := r.Factories[0]
	r.Primitive, r.Converter = base.Param, "valueobjects."+base.Name
	if p.Nullable {
		nullable := r.Factories[1]
		r.Primitive, r.Converter = nullable.Param, "valueobjects."+nullable.Name
	}

	if r.Identity {
		r.Generator = GenerateStorage
		if r.ValueType == "string" && !r.Secret {
			r.Generator = GenerateUUID
		}
	}
	return r
}

func (r *Rule) addFactory(suffix, param, kind string, withNullable bool) {
	base := Factory{Name: r.Class + "From" + suffix, Kind: kind, Param: param}
	r.Factories = append(r.Factories, base)
	if withNullable {
		r.Factories = append(r.Factories, Factory{
			Name:  r.Class + "FromNullable" + suffix,
			Kind:  FactoryNullable,
			Param: "*" + param,
			Via:   base.Name,
		})
	}
}

func scalarType(p props.Property) string {
	if t, ok := goTypes[p.Base]; ok {
		return t
	}
	return p.Type
}

// IdentityOf returns the rule of the scalar id property, if any.
func IdentityOf(rules []Rule) (Rule, bool) {
	for _, r := range rules {
		if r.Identity {
			return r, true
		}
	}
	return Rule{}, false
}

// Package props parses the property declarations passed to `forge module`.
//
// A declaration list is a comma-separated string of name:type tokens:
//
//	id:string,total:float,paid_at:?timestamp,status:enum[draft|sent|paid]
//
// Parsing never fails. Malformed tokens are skipped and reported as warnings,
// and the accepted properties keep their first-seen order.
package props

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/simonhull/firebird-suite/fledge/generator"
)

// Kind separates scalar properties from enum properties.
type Kind int

const (
	Scalar Kind = iota
	Enum
)

func (k Kind) String() string {
	if k == Enum {
		return "enum"
	}
	return "scalar"
}

// Base is the declared base type of a scalar property.
type Base string

const (
	Int       Base = "int"
	Float     Base = "float"
	Bool      Base = "bool"
	String    Base = "string"
	Timestamp Base = "timestamp"
	Secret    Base = "secret"
	// Opaque marks an unrecognized type token, kept verbatim in Property.Type.
	Opaque Base = "opaque"
)

var knownBases = map[string]Base{
	"int":       Int,
	"float":     Float,
	"bool":      Bool,
	"string":    String,
	"timestamp": Timestamp,
	"secret":    Secret,
}

// NullableMarker prefixes a scalar type to make it nullable.
const NullableMarker = "?"

var (
	namePattern = regexp.MustCompile(`^[a-z][A-Za-z0-9_]*$`)
	enumPattern = regexp.MustCompile(`^enum\[(.+)\]$`)
)

// Property is one accepted declaration.
type Property struct {
	Name string
	// Raw is the type expression as written, after trimming.
	Raw      string
	Kind     Kind
	Base     Base
	Nullable bool
	// Type is the opaque type token for Base == Opaque.
	Type string
	// Values lists the enum cases for Kind == Enum.
	Values []string
}

// IsEnum reports whether the property is enum-typed.
func (p Property) IsEnum() bool { return p.Kind == Enum }

// EnumSpec is one entry of the enum side-table.
type EnumSpec struct {
	Name   string
	Values []string
}

// Warning describes a token that was skipped or altered.
type Warning struct {
	Token  string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("property %q: %s", w.Token, w.Reason)
}

// Result is the outcome of Parse.
type Result struct {
	Properties []Property
	Enums      []EnumSpec
	Warnings   []Warning
}

// Scalars returns the non-enum properties in declaration order.
func (r Result) Scalars() []Property {
	var out []Property
	for _, p := range r.Properties {
		if !p.IsEnum() {
			out = append(out, p)
		}
	}
	return out
}

// Lookup returns the property with the given name.
func (r Result) Lookup(name string) (Property, bool) {
	for _, p := range r.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Parse turns a declaration list into properties and the enum side-table.
// An empty or blank spec yields an empty result. Generated identifiers are
// checked as if the module name were empty; use ParseModule when it is known.
func Parse(spec string) Result {
	return ParseModule("", spec)
}

// ParseModule is Parse for the module named module (PascalCase). A property is
// skipped when an identifier generated for it equals one generated for an
// earlier property, such as the type of x_from_string and the XFromString
// factory of x.
func ParseModule(module, spec string) Result {
	var (
		res   Result
		names = newNameSet()
	)

	warn := func(token, format string, args ...any) {
		res.Warnings = append(res.Warnings, Warning{Token: token, Reason: fmt.Sprintf(format, args...)})
	}

	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		name, typeExpr, ok := strings.Cut(token, ":")
		if !ok {
			warn(token, "expected name:type")
			continue
		}
		name = strings.TrimSpace(name)
		typeExpr = strings.TrimSpace(typeExpr)

		if !namePattern.MatchString(name) {
			warn(token, "invalid name %q (must match %s)", name, namePattern)
			continue
		}
		if typeExpr == "" {
			warn(token, "missing type")
			continue
		}
		if clash, taken := names.clash(derivedNames(name)); taken {
			if clash == name {
				warn(token, "duplicate property %q, keeping the first declaration", name)
			} else {
				warn(token, "generated names of %q collide with %q", name, clash)
			}
			continue
		}

		prop, dropped, reason := parseType(name, typeExpr)
		if reason != "" {
			warn(token, "%s", reason)
			continue
		}
		idents := generatedIdents(module, prop)
		if clash, taken := names.clash(idents); taken {
			warn(token, "generated names of %q collide with %q", name, clash)
			continue
		}
		for _, v := range dropped {
			warn(token, "duplicate enum value %q ignored", v)
		}

		names.add(name, idents)
		res.Properties = append(res.Properties, prop)
		if prop.IsEnum() {
			res.Enums = append(res.Enums, EnumSpec{Name: prop.Name, Values: prop.Values})
		}
	}

	return res
}

// parseType classifies a type expression. It returns the enum values dropped
// as duplicates, and a non-empty reason when the property must be skipped.
func parseType(name, typeExpr string) (Property, []string, string) {
	prop := Property{Name: name, Raw: typeExpr}

	if strings.HasPrefix(typeExpr, NullableMarker+"enum") {
		return prop, nil, "enums cannot be nullable"
	}
	if strings.HasPrefix(typeExpr, "enum[") || typeExpr == "enum" {
		m := enumPattern.FindStringSubmatch(typeExpr)
		if m == nil {
			return prop, nil, fmt.Sprintf("malformed enum %q (expected enum[a|b|c])", typeExpr)
		}
		values, dropped, reason := parseEnumValues(m[1])
		if reason != "" {
			return prop, nil, reason
		}
		prop.Kind = Enum
		prop.Values = values
		return prop, dropped, ""
	}

	base := typeExpr
	if strings.HasPrefix(base, NullableMarker) {
		prop.Nullable = true
		base = strings.TrimSpace(strings.TrimPrefix(base, NullableMarker))
		if base == "" {
			return prop, nil, "missing type after nullable marker"
		}
	}

	prop.Kind = Scalar
	if known, ok := knownBases[base]; ok {
		prop.Base = known
		return prop, nil, ""
	}
	prop.Base = Opaque
	prop.Type = base
	return prop, nil, ""
}

// reservedEnumIdents are suffixes of the functions generated next to each
// enum's constants.
var reservedEnumIdents = map[string]bool{
	"All":                true,
	"FromString":         true,
	"FromNullableString": true,
}

// parseEnumValues validates bar-separated enum values. Exact duplicates are
// dropped; values whose generated constant names collide reject the property.
func parseEnumValues(list string) (values, dropped []string, reason string) {
	seen := make(map[string]string)

	for _, v := range strings.Split(list, "|") {
		v = strings.TrimSpace(v)
		if !namePattern.MatchString(v) {
			return nil, nil, fmt.Sprintf("invalid enum value %q", v)
		}
		ident := generator.PascalCase(v)
		if reservedEnumIdents[ident] {
			return nil, nil, fmt.Sprintf("enum value %q clashes with a generated function name", v)
		}
		if prev, ok := seen[ident]; ok {
			if prev == v {
				dropped = append(dropped, v)
				continue
			}
			return nil, nil, fmt.Sprintf("enum values %q and %q collide", prev, v)
		}
		seen[ident] = v
		values = append(values, v)
	}
	return values, dropped, ""
}

// nameSet tracks the identifiers every accepted property generates, so two
// properties can never produce the same field, type, function or file name.
type nameSet map[string]string

func newNameSet() nameSet { return make(nameSet) }

func derivedNames(name string) []string {
	return []string{
		"pascal:" + generator.PascalCase(name),
		"camel:" + generator.GoIdent(name),
		"snake:" + generator.SnakeCase(name),
	}
}

// factorySuffixes covers every factory a scalar can get. Name heuristics can
// turn any scalar into a secret or a timestamp, so all of them are reserved.
var factorySuffixes = []string{"Int", "Float", "Bool", "String", "Value", "Hashed"}

// generatedIdents lists the package-level identifiers rendered for prop: its
// class, its factories and helper functions, and for enums the constants.
func generatedIdents(module string, prop Property) []string {
	class := module + generator.PascalCase(prop.Name)
	idents := []string{class}

	if prop.IsEnum() {
		idents = append(idents, class+"All", class+"FromString", class+"FromNullableString")
		for _, v := range prop.Values {
			idents = append(idents, class+generator.PascalCase(v))
		}
	} else {
		for _, suffix := range factorySuffixes {
			idents = append(idents, class+"From"+suffix, class+"FromNullable"+suffix)
		}
		idents = append(idents, "New"+class, "Hash"+class, "Generate"+class)
	}

	for i, id := range idents {
		idents[i] = "ident:" + id
	}
	return idents
}

func (s nameSet) clash(keys []string) (string, bool) {
	for _, key := range keys {
		if owner, ok := s[key]; ok {
			return owner, true
		}
	}
	return "", false
}

func (s nameSet) add(name string, idents []string) {
	for _, key := range derivedNames(name) {
		s[key] = name
	}
	for _, key := range idents {
		s[key] = name
	}
}

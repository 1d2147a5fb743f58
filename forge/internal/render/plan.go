package render

import (
	"errors"
	"fmt"
)

// ErrDuplicateArtifact is returned when two artifacts target the same path.
var ErrDuplicateArtifact = errors.New("duplicate artifact path")

// Artifact groups, matching the scaffolding steps that write them.
const (
	GroupEnums        = "enums"
	GroupValueObjects = "value-objects"
	GroupDomainFiles  = "domain-files"
)

// Artifact is one rendered file waiting to be written.
type Artifact struct {
	Path     string
	Template string
	Group    string
	Content  []byte
}

// Plan is the ordered list of artifacts for one module. Paths are unique.
type Plan struct {
	artifacts []Artifact
	paths     map[string]bool
}

func NewPlan() *Plan {
	return &Plan{paths: make(map[string]bool)}
}

// Add appends a, rejecting a path already in the plan.
func (p *Plan) Add(a Artifact) error {
	if p.paths[a.Path] {
		return fmt.Errorf("%w: %s", ErrDuplicateArtifact, a.Path)
	}
	p.paths[a.Path] = true
	p.artifacts = append(p.artifacts, a)
	return nil
}

// Artifacts returns all artifacts in insertion order.
func (p *Plan) Artifacts() []Artifact {
	out := make([]Artifact, len(p.artifacts))
	copy(out, p.artifacts)
	return out
}

// Group returns the artifacts of one group in insertion order.
func (p *Plan) Group(name string) []Artifact {
	var out []Artifact
	for _, a := range p.artifacts {
		if a.Group == name {
			out = append(out, a)
		}
	}
	return out
}

func (p *Plan) Len() int { return len(p.artifacts) }

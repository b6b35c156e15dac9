//go:build integration || unit || test

package entitybuilders //nolint:revive,staticcheck // Test package naming follows established project structure

import (
	testkit "github.com/rios0rios0/testkit/pkg/test"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
)

// ReferenceBuilder helps create test references with a fluent interface.
type ReferenceBuilder struct {
	*testkit.BaseBuilder
	owner      string
	repo       string
	path       string
	currentRef string
	annotation string
	provenance entities.Provenance
}

// NewReferenceBuilder creates a new reference builder with sensible defaults.
func NewReferenceBuilder() *ReferenceBuilder {
	return &ReferenceBuilder{
		BaseBuilder: testkit.NewBaseBuilder(),
		owner:       "actions",
		repo:        "checkout",
		currentRef:  "v4",
		provenance:  entities.Provenance{File: ".github/workflows/ci.yml", Line: 1},
	}
}

// WithOwner sets the repository owner.
func (b *ReferenceBuilder) WithOwner(owner string) *ReferenceBuilder {
	b.owner = owner
	return b
}

// WithRepo sets the repository name.
func (b *ReferenceBuilder) WithRepo(repo string) *ReferenceBuilder {
	b.repo = repo
	return b
}

// WithPath sets the sub directory of a composite action.
func (b *ReferenceBuilder) WithPath(path string) *ReferenceBuilder {
	b.path = path
	return b
}

// WithCurrentRef sets the pinned hash, tag or branch.
func (b *ReferenceBuilder) WithCurrentRef(ref string) *ReferenceBuilder {
	b.currentRef = ref
	return b
}

// WithAnnotation sets the version comment next to the pin.
func (b *ReferenceBuilder) WithAnnotation(annotation string) *ReferenceBuilder {
	b.annotation = annotation
	return b
}

// WithFile sets the file and line the reference was found at.
func (b *ReferenceBuilder) WithFile(file string, line int) *ReferenceBuilder {
	b.provenance.File = file
	b.provenance.Line = line
	return b
}

// WithName sets the display name.
func (b *ReferenceBuilder) WithName(name string) *ReferenceBuilder {
	b.provenance.Name = name
	return b
}

// Build creates the reference (satisfies testkit.Builder interface).
func (b *ReferenceBuilder) Build() interface{} {
	return b.BuildReference()
}

// BuildReference creates the reference with a concrete return type.
func (b *ReferenceBuilder) BuildReference() entities.Reference {
	return entities.Reference{
		Owner:      b.owner,
		Repo:       b.repo,
		Path:       b.path,
		CurrentRef: b.currentRef,
		Annotation: b.annotation,
		Provenance: b.provenance,
	}
}

// Reset clears the builder state, allowing it to be reused.
func (b *ReferenceBuilder) Reset() testkit.Builder {
	b.BaseBuilder.Reset()
	b.owner = "actions"
	b.repo = "checkout"
	b.path = ""
	b.currentRef = "v4"
	b.annotation = ""
	b.provenance = entities.Provenance{File: ".github/workflows/ci.yml", Line: 1}
	return b
}

// Clone creates a deep copy of the ReferenceBuilder.
func (b *ReferenceBuilder) Clone() testkit.Builder {
	return &ReferenceBuilder{
		BaseBuilder: b.BaseBuilder.Clone().(*testkit.BaseBuilder),
		owner:       b.owner,
		repo:        b.repo,
		path:        b.path,
		currentRef:  b.currentRef,
		annotation:  b.annotation,
		provenance:  b.provenance,
	}
}

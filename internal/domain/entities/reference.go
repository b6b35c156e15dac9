package entities

import (
	"fmt"
	"strings"
)

// Provenance locates a reference in the scanned sources. The core never
// interprets it; it is carried through to the records.
type Provenance struct {
	File string // workflow or action file the reference was found in
	Line int    // line number in the file
	Job  string // job or step the reference belongs to
	Name string // display name; defaults to the action path when empty
}

// Reference is one use of a pinned action.
type Reference struct {
	Owner      string
	Repo       string
	Path       string // sub directory for composite actions (e.g. "upload-sarif")
	CurrentRef string // commit hash, tag or branch
	Annotation string // version recovered from an adjacent comment, if any
	Provenance Provenance
}

// Identity returns "owner/repo".
func (r Reference) Identity() string {
	return r.Owner + "/" + r.Repo
}

// ActionPath returns "owner/repo" or "owner/repo/path".
func (r Reference) ActionPath() string {
	if r.Path == "" {
		return r.Identity()
	}
	return r.Identity() + "/" + r.Path
}

// Uses returns the reference as written in a workflow.
func (r Reference) Uses() string {
	return r.ActionPath() + "@" + r.CurrentRef
}

// DisplayName returns the provenance name, falling back to the action path.
func (r Reference) DisplayName() string {
	if r.Provenance.Name != "" {
		return r.Provenance.Name
	}
	return r.ActionPath()
}

// ResolutionKey identifies references that resolve identically.
func (r Reference) ResolutionKey() string {
	return strings.ToLower(r.Uses()) + "#" + r.Annotation
}

// ParseReference parses "owner/repo@ref" or "owner/repo/path@ref".
// For composite actions like "github/codeql-action/upload-sarif@v2", the repo
// is "codeql-action" and the path is "upload-sarif".
func ParseReference(uses string) (Reference, error) {
	uses = strings.TrimSpace(uses)
	atIdx := strings.LastIndex(uses, "@")
	if atIdx == -1 {
		return Reference{}, fmt.Errorf("%w: missing @ in %q", ErrInvalidReference, uses)
	}

	actionPath := uses[:atIdx]
	ref := uses[atIdx+1:]
	if ref == "" {
		return Reference{}, fmt.Errorf("%w: empty ref in %q", ErrInvalidReference, uses)
	}

	owner, rest, ok := strings.Cut(actionPath, "/")
	if !ok || owner == "" || rest == "" {
		return Reference{}, fmt.Errorf("%w: invalid action path %q", ErrInvalidReference, actionPath)
	}

	repo, path, _ := strings.Cut(rest, "/")
	if repo == "" {
		return Reference{}, fmt.Errorf("%w: invalid action path %q", ErrInvalidReference, actionPath)
	}

	return Reference{
		Owner:      owner,
		Repo:       repo,
		Path:       strings.Trim(path, "/"),
		CurrentRef: ref,
	}, nil
}

// ParseReferenceWithAnnotation parses "owner/repo@ref" with an optional
// "#annotation" suffix, mirroring a trailing "# v1.2.3" comment after a pin.
func ParseReferenceWithAnnotation(value string) (Reference, error) {
	uses, annotation, _ := strings.Cut(value, "#")
	ref, err := ParseReference(uses)
	if err != nil {
		return Reference{}, err
	}
	ref.Annotation = strings.TrimSpace(annotation)
	return ref, nil
}

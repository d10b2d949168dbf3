package registry

import "fmt"

// Kind selects how a definition is located in the native source.
type Kind int

const (
	KindModule Kind = iota + 1
	KindClass
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindClass:
		return "class"
	case KindFunction:
		return "function"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ExpectsPublicName reports whether definitions of this kind should resolve
// to a named Ruby constant.
func (k Kind) ExpectsPublicName() bool {
	return k == KindModule || k == KindClass
}

// Origin is where the directive for a definition was written.
type Origin struct {
	File string
	Line int // 1-based
}

func (o Origin) String() string {
	return fmt.Sprintf("%s:%d", o.File, o.Line)
}

// Link is one rendered reference for a version.
type Link struct {
	Category string // a native file path or "documentation"
	URL      string
}

// VersionLinks holds the links recorded for a single version, in insertion order.
type VersionLinks struct {
	Label string
	Links []Link
}

// Definition is one annotated binding declaration.
type Definition struct {
	ID         int // position in the registry
	Kind       Kind
	HeaderPath string // header name from the binding file map, e.g. "intern.h"
	SourcePath string // implementation file, e.g. "symbol.c"
	Signature  string
	Type       string
	Name       string
	Arguments  string // functions only
	Origin     Origin

	// Identity, modules and classes only. Owner is a registry ID.
	PublicName  string
	Owner       *int
	identitySet bool

	Links []VersionLinks
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s `%s` (`%s`)", d.Kind, d.Name, d.Signature)
}

// IdentityResolved reports whether an identity has been recorded, even an
// empty one.
func (d *Definition) IdentityResolved() bool {
	return d.identitySet
}

// SetIdentity records the identity found for the first processed version.
// Later calls must pass the same values; a mismatch is returned as an
// *IdentityMismatch describing the first differing field.
func (d *Definition) SetIdentity(publicName string, owner *int) error {
	if !d.identitySet {
		d.PublicName = publicName
		d.Owner = owner
		d.identitySet = true
		return nil
	}
	if publicName != d.PublicName {
		return &IdentityMismatch{Field: "public name", Old: d.PublicName, New: publicName}
	}
	if !sameOwner(d.Owner, owner) {
		return &IdentityMismatch{Field: "owner", Old: ownerString(d.Owner), New: ownerString(owner)}
	}
	return nil
}

// AddLink appends a link for the version label. Versions and categories
// keep insertion order; recording the same category twice is an error.
func (d *Definition) AddLink(label, category, url string) error {
	var vl *VersionLinks
	for i := range d.Links {
		if d.Links[i].Label == label {
			vl = &d.Links[i]
			break
		}
	}
	if vl == nil {
		d.Links = append(d.Links, VersionLinks{Label: label})
		vl = &d.Links[len(d.Links)-1]
	}
	for _, l := range vl.Links {
		if l.Category == category {
			return fmt.Errorf("%s: %s link for %s already recorded", d, category, label)
		}
	}
	vl.Links = append(vl.Links, Link{Category: category, URL: url})
	return nil
}

// LinksFor returns the links recorded for a version label.
func (d *Definition) LinksFor(label string) []Link {
	for _, vl := range d.Links {
		if vl.Label == label {
			return vl.Links
		}
	}
	return nil
}

// IdentityMismatch describes an identity field that changed between versions.
type IdentityMismatch struct {
	Field string
	Old   string
	New   string
}

func (e *IdentityMismatch) Error() string {
	return fmt.Sprintf("%s changed from %q to %q", e.Field, e.Old, e.New)
}

func sameOwner(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func ownerString(o *int) string {
	if o == nil {
		return "<none>"
	}
	return fmt.Sprintf("#%d", *o)
}

type signatureKey struct {
	kind      Kind
	signature string
}

// Package directory resolves problem categories to owning authorities and
// walks the escalation chain between authorities.
package directory

import (
	"fmt"

	"github.com/spec-kit/civic-issue-service/internal/config"
	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// Directory is the validated category ownership and escalation chain.
// Construction fails fast on incomplete or cyclic configuration; after that
// every lookup is total and deterministic.
type Directory struct {
	routes  map[domain.IssueCategory]domain.AuthorityType
	parents map[domain.AuthorityType]domain.AuthorityType
	def     domain.AuthorityType
}

// New validates the routing configuration and builds a directory.
func New(cfg config.RoutingConfig) (*Directory, error) {
	if !domain.ValidAuthorityType(cfg.DefaultAuthority) {
		return nil, fmt.Errorf("default authority %q is not a known authority", cfg.DefaultAuthority)
	}

	for _, category := range domain.KnownCategories() {
		authority, ok := cfg.CategoryAuthority[category]
		if !ok {
			return nil, fmt.Errorf("category %q has no authority mapping", category)
		}
		if !domain.ValidAuthorityType(authority) {
			return nil, fmt.Errorf("category %q maps to unknown authority %q", category, authority)
		}
	}

	for _, authority := range domain.KnownAuthorityTypes() {
		parent, ok := cfg.EscalationParents[authority]
		if !ok {
			return nil, fmt.Errorf("authority %q has no escalation parent", authority)
		}
		if !domain.ValidAuthorityType(parent) {
			return nil, fmt.Errorf("authority %q escalates to unknown authority %q", authority, parent)
		}
	}

	// The chain from every authority must terminate at a self-parented top
	// within len(parents) hops; anything longer is a cycle.
	for _, authority := range domain.KnownAuthorityTypes() {
		current := authority
		for hop := 0; ; hop++ {
			parent := cfg.EscalationParents[current]
			if parent == current {
				break
			}
			if hop >= len(cfg.EscalationParents) {
				return nil, fmt.Errorf("escalation chain from %q does not terminate", authority)
			}
			current = parent
		}
	}

	routes := make(map[domain.IssueCategory]domain.AuthorityType, len(cfg.CategoryAuthority))
	for category, authority := range cfg.CategoryAuthority {
		routes[category] = authority
	}
	parents := make(map[domain.AuthorityType]domain.AuthorityType, len(cfg.EscalationParents))
	for authority, parent := range cfg.EscalationParents {
		parents[authority] = parent
	}

	return &Directory{routes: routes, parents: parents, def: cfg.DefaultAuthority}, nil
}

// ResolveAuthority returns the authority owning a category. Unknown
// categories route to the default authority, never an error.
func (d *Directory) ResolveAuthority(category domain.IssueCategory) domain.AuthorityType {
	if authority, ok := d.routes[category]; ok {
		return authority
	}
	return d.def
}

// EscalationParent returns the next authority up the chain. A top-level
// authority is its own parent.
func (d *Directory) EscalationParent(authority domain.AuthorityType) domain.AuthorityType {
	if parent, ok := d.parents[authority]; ok {
		return parent
	}
	return d.def
}

// AtTop reports whether the authority has no higher authority to escalate to.
func (d *Directory) AtTop(authority domain.AuthorityType) bool {
	return d.EscalationParent(authority) == authority
}

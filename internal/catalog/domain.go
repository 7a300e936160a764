// Package catalog implements the catalog core shared by every domain:
// document storage, lookup, filtering and the review ledger.
package catalog

import (
	"fmt"
	"path/filepath"
)

// Domain describes one catalog (books, games or movies).
type Domain struct {
	// Name is the plural route segment and file stem, e.g. "books".
	Name string
	// NotFoundMessage is reported when an item id is unknown.
	NotFoundMessage string
}

// Known domains. The not-found messages are kept exactly as the existing
// front-ends expect them.
var (
	Books  = Domain{Name: "books", NotFoundMessage: "book not found"}
	Games  = Domain{Name: "games", NotFoundMessage: "Game not found"}
	Movies = Domain{Name: "movies", NotFoundMessage: "movie not found"}
)

var knownDomains = map[string]Domain{
	Books.Name:  Books,
	Games.Name:  Games,
	Movies.Name: Movies,
}

// LookupDomain returns the domain registered under name.
func LookupDomain(name string) (Domain, error) {
	d, ok := knownDomains[name]
	if !ok {
		return Domain{}, fmt.Errorf("%w: %q", ErrUnknownDomain, name)
	}
	return d, nil
}

// DocumentPath returns the JSON document path of the domain inside dataDir.
func (d Domain) DocumentPath(dataDir string) string {
	return filepath.Join(dataDir, d.Name+".json")
}

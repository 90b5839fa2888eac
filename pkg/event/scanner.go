// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package event

// Source is an ordered table of listener records contributed by one body of
// code: the host itself or one loaded mod.
type Source struct {
	Name      string
	Listeners []Listener
}

// Rejected describes a listener record that failed eligibility.
type Rejected struct {
	Source   string
	Listener string
	Err      error
}

// Catalog accumulates listener records for a Source. Host packages fill a
// catalog from init functions the way mods fill their unit declarations.
type Catalog struct {
	name      string
	listeners []Listener
}

// NewCatalog creates an empty catalog.
func NewCatalog(name string) *Catalog {
	return &Catalog{name: name}
}

// Add appends records in declaration order.
func (c *Catalog) Add(listeners ...Listener) *Catalog {
	c.listeners = append(c.listeners, listeners...)
	return c
}

// Source snapshots the catalog.
func (c *Catalog) Source() Source {
	out := make([]Listener, len(c.listeners))
	copy(out, c.listeners)
	return Source{Name: c.name, Listeners: out}
}

// Scan runs the one-time discovery pass over sources. Eligible records are
// returned in source order, then declaration order, with names qualified by
// their source so same-priority ordering is reproducible across runs.
func Scan(sources ...Source) ([]Listener, []Rejected) {
	var (
		accepted []Listener
		rejected []Rejected
	)
	for _, src := range sources {
		for _, l := range src.Listeners {
			if src.Name != "" {
				l.Name = src.Name + ":" + l.Name
			}
			if err := l.Validate(); err != nil {
				rejected = append(rejected, Rejected{
					Source:   src.Name,
					Listener: l.Name,
					Err:      err,
				})
				continue
			}
			accepted = append(accepted, l)
		}
	}
	return accepted, rejected
}

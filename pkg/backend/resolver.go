package backend

import (
	"os/exec"
)

// Resolver picks an installation backend for a recipe on the current host.
// It owns the executable-availability cache; construct one per process and
// pass it by reference (no ambient globals).
type Resolver struct {
	facts    *Facts
	lookPath func(string) (string, error)
	avail    map[Backend]bool
}

// NewResolver creates a resolver backed by exec.LookPath.
func NewResolver(facts *Facts) *Resolver {
	return NewResolverWithLookup(facts, exec.LookPath)
}

// NewResolverWithLookup allows injecting the PATH lookup, for tests.
func NewResolverWithLookup(facts *Facts, lookPath func(string) (string, error)) *Resolver {
	return &Resolver{
		facts:    facts,
		lookPath: lookPath,
		avail:    make(map[Backend]bool),
	}
}

// Available reports whether a backend can run on this host. Results are
// cached for the process lifetime.
func (r *Resolver) Available(b Backend) bool {
	if ok, cached := r.avail[b]; cached {
		return ok
	}
	ok := r.probe(b)
	r.avail[b] = ok
	return ok
}

func (r *Resolver) probe(b Backend) bool {
	if !b.supportedOn(r.facts) {
		return false
	}
	exe := b.Executable()
	if exe == "" {
		return true
	}
	_, err := r.lookPath(exe)
	return err == nil
}

// Resolve walks backends in ascending precedence order and returns the
// first one that is available on this host and has a non-empty package spec
// in methods. ok=false means the recipe is inapplicable on this platform;
// that is a reported no-op for the caller, never an error.
func (r *Resolver) Resolve(methods map[Backend]string) (Backend, string, bool) {
	for _, b := range All() {
		spec, declared := methods[b]
		if !declared || spec == "" {
			continue
		}
		if !r.Available(b) {
			continue
		}
		return b, spec, true
	}
	return "", "", false
}

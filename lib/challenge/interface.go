package challenge

import (
	"sort"
	"strings"
	"sync"
)

var (
	registry map[string]Impl = map[string]Impl{}
	regLock  sync.RWMutex
)

func Register(name string, impl Impl) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[name] = impl
}

func Get(name string) (Impl, bool) {
	regLock.RLock()
	defer regLock.RUnlock()
	result, ok := registry[name]
	return result, ok
}

// Variants returns the names of every registered challenge variant, sorted.
func Variants() []string {
	regLock.RLock()
	defer regLock.RUnlock()
	var result []string
	for variant := range registry {
		result = append(result, variant)
	}
	sort.Strings(result)
	return result
}

// Impl is one interchangeable human-verification puzzle variant. The three
// shipped variants are questionset, textcaptcha, and sliderpuzzle.
//
// Implementations hold no per-session state: everything a puzzle needs
// lives in the Puzzle so it can round-trip through the session store.
type Impl interface {
	// Generate produces a fresh puzzle. Generation must not depend on
	// earlier calls and must never consult cooldown state.
	Generate() (*Puzzle, error)

	// Check reports whether input solves the given step of the puzzle.
	// Checking mutates nothing.
	Check(p *Puzzle, step int, input string) bool
}

// Normalize canonicalizes user input for comparison: leading and trailing
// whitespace is insignificant and matching is case-insensitive.
func Normalize(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

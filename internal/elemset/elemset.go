// Package elemset builds ordered, duplicate-free sets of element symbols used
// as inclusion and exclusion lists for materials searches.
package elemset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/periodic"
)

// Set is an ordered sequence of element symbols with duplicates removed.
// Order is first occurrence across whatever inputs built it.
type Set struct {
	symbols []string
}

// New builds a Set from symbols, dropping repeats (first occurrence wins).
func New(symbols ...string) Set {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return Set{symbols: out}
}

// FromAtomicNumbers builds a Set from atomic numbers.
func FromAtomicNumbers(numbers []int) (Set, error) {
	syms, err := periodic.SymbolsForAtomicNumbers(numbers)
	if err != nil {
		return Set{}, err
	}
	return New(syms...), nil
}

// Parse builds a Set from a comma-separated symbol list ("Sn, Sb,Bi").
// Every symbol must be known to the catalog.
func Parse(s string) (Set, error) {
	if strings.TrimSpace(s) == "" {
		return Set{}, nil
	}
	return FromSymbols(strings.Split(s, ","))
}

// FromSymbols builds a Set from symbols after checking each against the
// catalog. Surrounding whitespace is trimmed and blank entries are skipped.
func FromSymbols(symbols []string) (Set, error) {
	syms := make([]string, 0, len(symbols))
	for _, p := range symbols {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := periodic.AtomicNumber(p); err != nil {
			return Set{}, err
		}
		syms = append(syms, p)
	}
	return New(syms...), nil
}

// Union merges sets left to right, keeping the first occurrence of each symbol.
func Union(sets ...Set) Set {
	var all []string
	for _, s := range sets {
		all = append(all, s.symbols...)
	}
	return New(all...)
}

// Symbols returns a copy of the set's symbols in order.
func (s Set) Symbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// Len returns the number of symbols.
func (s Set) Len() int { return len(s.symbols) }

// Contains reports whether symbol is in the set.
func (s Set) Contains(symbol string) bool {
	for _, sym := range s.symbols {
		if sym == symbol {
			return true
		}
	}
	return false
}

// String renders the set as a comma-separated list.
func (s Set) String() string {
	return strings.Join(s.symbols, ",")
}

// MarshalJSON encodes the set as a JSON array of symbols.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Symbols())
}

// UnmarshalJSON decodes a JSON array of symbols, dropping repeats.
func (s *Set) UnmarshalJSON(data []byte) error {
	var syms []string
	if err := json.Unmarshal(data, &syms); err != nil {
		return err
	}
	*s = New(syms...)
	return nil
}

// radioactiveNumbers is a domain constant, not derived from any property in the
// catalog: Tc (43), Pm (61), and every element from Po (84) through Og (118).
var radioactiveNumbers = append([]int{43, 61}, periodic.Range(84, 118)...)

// RadioactiveAndStableSplit partitions the catalog into stable and radioactive
// elements, both in atomic-number order.
func RadioactiveAndStableSplit() (stable, radioactive Set) {
	stableSyms, err := periodic.AllElements(radioactiveNumbers...)
	if err != nil {
		panic(fmt.Sprintf("elemset: radioactive constant out of range: %v", err))
	}
	return New(stableSyms...), mustFromNumbers(radioactiveNumbers)
}

// Radioactive returns Tc, Pm, and Po..Og.
func Radioactive() Set {
	_, r := RadioactiveAndStableSplit()
	return r
}

// Stable returns every element not in Radioactive.
func Stable() Set {
	s, _ := RadioactiveAndStableSplit()
	return s
}

// TransitionMetals returns the d-block: Sc..Zn, Y..Cd, Hf..Hg, Rf..Cn.
func TransitionMetals() Set {
	var z []int
	z = append(z, periodic.Range(21, 30)...)
	z = append(z, periodic.Range(39, 48)...)
	z = append(z, periodic.Range(72, 80)...)
	z = append(z, periodic.Range(104, 112)...)
	return mustFromNumbers(z)
}

// FBlock returns the lanthanides Ce..Lu and actinides Th..Lr.
func FBlock() Set {
	z := append(periodic.Range(58, 71), periodic.Range(90, 103)...)
	return mustFromNumbers(z)
}

// Toxic returns elements excluded for toxicity.
func Toxic() Set {
	return New("Pb", "Cd", "As")
}

// Group names accepted by Group.
const (
	GroupRadioactive     = "radioactive"
	GroupStable          = "stable"
	GroupTransitionMetal = "transition-metal"
	GroupFBlock          = "f-block"
	GroupToxic           = "toxic"
	GroupAll             = "all"
)

var groups = map[string]func() Set{
	GroupRadioactive:     Radioactive,
	GroupStable:          Stable,
	GroupTransitionMetal: TransitionMetals,
	GroupFBlock:          FBlock,
	GroupToxic:           Toxic,
	GroupAll: func() Set {
		all, _ := periodic.AllElements()
		return New(all...)
	},
}

// GroupNames returns the known group names, sorted.
func GroupNames() []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Group resolves a named element group.
func Group(name string) (Set, error) {
	fn, ok := groups[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Set{}, errors.NewInvalidRequest(
			fmt.Sprintf("unknown element group %q; known: %s", name, strings.Join(GroupNames(), ", ")))
	}
	return fn(), nil
}

// Groups resolves several group names and unions them in argument order.
func Groups(names ...string) (Set, error) {
	sets := make([]Set, 0, len(names))
	for _, name := range names {
		s, err := Group(name)
		if err != nil {
			return Set{}, err
		}
		sets = append(sets, s)
	}
	return Union(sets...), nil
}

func mustFromNumbers(numbers []int) Set {
	s, err := FromAtomicNumbers(numbers)
	if err != nil {
		panic(fmt.Sprintf("elemset: group constant out of range: %v", err))
	}
	return s
}

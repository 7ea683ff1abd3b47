// Package periodic is the catalog of chemical elements. It is the single source
// of truth mapping atomic numbers to canonical symbols.
package periodic

import (
	"github.com/hpungsan/matsift/internal/errors"
)

// MaxAtomicNumber is the highest atomic number in the catalog.
const MaxAtomicNumber = 118

// Element is an immutable (atomic number, symbol) pair.
type Element struct {
	Number int    `json:"number"`
	Symbol string `json:"symbol"`
}

// symbols is indexed by atomic number; index 0 is unused.
var symbols = [MaxAtomicNumber + 1]string{
	"",
	"H", "He",
	"Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar",
	"K", "Ca", "Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
	"Ga", "Ge", "As", "Se", "Br", "Kr",
	"Rb", "Sr", "Y", "Zr", "Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd",
	"In", "Sn", "Sb", "Te", "I", "Xe",
	"Cs", "Ba",
	"La", "Ce", "Pr", "Nd", "Pm", "Sm", "Eu", "Gd", "Tb", "Dy", "Ho", "Er", "Tm", "Yb", "Lu",
	"Hf", "Ta", "W", "Re", "Os", "Ir", "Pt", "Au", "Hg",
	"Tl", "Pb", "Bi", "Po", "At", "Rn",
	"Fr", "Ra",
	"Ac", "Th", "Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf", "Es", "Fm", "Md", "No", "Lr",
	"Rf", "Db", "Sg", "Bh", "Hs", "Mt", "Ds", "Rg", "Cn",
	"Nh", "Fl", "Mc", "Lv", "Ts", "Og",
}

var numbersBySymbol = func() map[string]int {
	m := make(map[string]int, MaxAtomicNumber)
	for z := 1; z <= MaxAtomicNumber; z++ {
		m[symbols[z]] = z
	}
	return m
}()

// Valid reports whether z is inside [1, MaxAtomicNumber].
func Valid(z int) bool {
	return z >= 1 && z <= MaxAtomicNumber
}

// Symbol returns the canonical symbol for atomic number z.
func Symbol(z int) (string, error) {
	if !Valid(z) {
		return "", errors.NewInvalidAtomicNumber(z, MaxAtomicNumber)
	}
	return symbols[z], nil
}

// AtomicNumber returns the atomic number for a canonical symbol.
// Lookup is case-sensitive: "Co" is cobalt, "CO" is not an element.
func AtomicNumber(symbol string) (int, error) {
	z, ok := numbersBySymbol[symbol]
	if !ok {
		return 0, errors.NewUnknownElement(symbol)
	}
	return z, nil
}

// Elements returns every element in atomic-number order.
func Elements() []Element {
	out := make([]Element, 0, MaxAtomicNumber)
	for z := 1; z <= MaxAtomicNumber; z++ {
		out = append(out, Element{Number: z, Symbol: symbols[z]})
	}
	return out
}

// AllElements returns the symbol of every element in atomic-number order,
// skipping the excluded atomic numbers. Any excluded number outside
// [1, MaxAtomicNumber] fails the whole call; nothing is clamped.
func AllElements(excluded ...int) ([]string, error) {
	skip := make(map[int]bool, len(excluded))
	for _, z := range excluded {
		if !Valid(z) {
			return nil, errors.NewInvalidAtomicNumber(z, MaxAtomicNumber)
		}
		skip[z] = true
	}

	out := make([]string, 0, MaxAtomicNumber-len(skip))
	for _, e := range Elements() {
		if skip[e.Number] {
			continue
		}
		out = append(out, e.Symbol)
	}
	return out, nil
}

// ElementsOf pairs each symbol with its atomic number, in input order.
func ElementsOf(symbols []string) ([]Element, error) {
	out := make([]Element, 0, len(symbols))
	for _, sym := range symbols {
		z, err := AtomicNumber(sym)
		if err != nil {
			return nil, err
		}
		out = append(out, Element{Number: z, Symbol: sym})
	}
	return out, nil
}

// SymbolsForAtomicNumbers converts atomic numbers to symbols in input order.
// Duplicates are kept.
func SymbolsForAtomicNumbers(numbers []int) ([]string, error) {
	out := make([]string, 0, len(numbers))
	for _, z := range numbers {
		s, err := Symbol(z)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Range returns the atomic numbers lo..hi inclusive.
func Range(lo, hi int) []int {
	if hi < lo {
		return nil
	}
	out := make([]int, 0, hi-lo+1)
	for z := lo; z <= hi; z++ {
		out = append(out, z)
	}
	return out
}

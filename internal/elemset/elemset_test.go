package elemset

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/periodic"
)

func TestNew_FirstSeenDedup(t *testing.T) {
	s := New("Fe", "O", "Fe", "Pb", "O")
	require.Equal(t, []string{"Fe", "O", "Pb"}, s.Symbols())
	require.Equal(t, 3, s.Len())
}

func TestUnion(t *testing.T) {
	tests := []struct {
		name string
		in   []Set
		want []string
	}{
		{"example", []Set{New("Fe", "O"), New("O", "Pb")}, []string{"Fe", "O", "Pb"}},
		{"single input idempotent", []Set{New("Sn", "Sb", "Bi")}, []string{"Sn", "Sb", "Bi"}},
		{"same set twice", []Set{New("Sn", "Sb"), New("Sn", "Sb")}, []string{"Sn", "Sb"}},
		{"order follows arguments", []Set{New("Pb"), New("Fe", "Pb")}, []string{"Pb", "Fe"}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Union(tt.in...)
			if diff := cmp.Diff(tt.want, got.Symbols()); diff != "" {
				t.Errorf("Union() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRadioactiveAndStableSplit(t *testing.T) {
	stable, radioactive := RadioactiveAndStableSplit()

	require.Equal(t, 37, radioactive.Len())
	require.Equal(t, 81, stable.Len())

	wantNumbers := append([]int{43, 61}, periodic.Range(84, 118)...)
	wantSymbols, err := periodic.SymbolsForAtomicNumbers(wantNumbers)
	require.NoError(t, err)
	require.Equal(t, wantSymbols, radioactive.Symbols())

	for _, sym := range radioactive.Symbols() {
		require.False(t, stable.Contains(sym), "%s in both halves", sym)
	}

	// Boundary: Bi (83) is stable, Po (84) and Og (118) are radioactive.
	require.True(t, stable.Contains("Bi"))
	require.True(t, radioactive.Contains("Po"))
	require.True(t, radioactive.Contains("Og"))
	require.True(t, radioactive.Contains("Tc"))
	require.True(t, radioactive.Contains("Pm"))
	require.Equal(t, "H", stable.Symbols()[0])
	require.Equal(t, "Bi", stable.Symbols()[stable.Len()-1])
}

func TestNamedGroups(t *testing.T) {
	tm := TransitionMetals()
	require.Equal(t, 38, tm.Len())
	require.True(t, tm.Contains("Sc"))
	require.True(t, tm.Contains("Zn"))
	require.True(t, tm.Contains("Cn"))
	require.False(t, tm.Contains("La"))

	fb := FBlock()
	require.Equal(t, 28, fb.Len())
	require.True(t, fb.Contains("Ce"))
	require.True(t, fb.Contains("Lr"))
	require.False(t, fb.Contains("La"))

	require.Equal(t, []string{"Pb", "Cd", "As"}, Toxic().Symbols())
}

func TestReducedSearchExclusion(t *testing.T) {
	excluded := Union(TransitionMetals(), Radioactive(), FBlock(), Toxic())

	// Cd overlaps transition metals; Th..Lr overlap radioactive.
	require.False(t, excluded.Contains("Sn"))
	require.False(t, excluded.Contains("Sb"))
	require.False(t, excluded.Contains("Bi"))
	require.True(t, excluded.Contains("Pb"))
	require.True(t, excluded.Contains("As"))
	require.Equal(t, "Sc", excluded.Symbols()[0])

	seen := make(map[string]bool)
	for _, s := range excluded.Symbols() {
		require.False(t, seen[s], "duplicate %s", s)
		seen[s] = true
	}
}

func TestGroup(t *testing.T) {
	s, err := Group(" Toxic ")
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	all, err := Group(GroupAll)
	require.NoError(t, err)
	require.Equal(t, periodic.MaxAtomicNumber, all.Len())

	_, err = Group("noble-gas")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	combined, err := Groups(GroupToxic, GroupTransitionMetal)
	require.NoError(t, err)
	require.Equal(t, "Pb", combined.Symbols()[0])
	require.Equal(t, 3+38-1, combined.Len())
}

func TestParse(t *testing.T) {
	s, err := Parse(" Sn, Sb ,Bi,,Sn")
	require.NoError(t, err)
	require.Equal(t, []string{"Sn", "Sb", "Bi"}, s.Symbols())
	require.Equal(t, "Sn,Sb,Bi", s.String())

	empty, err := Parse("  ")
	require.NoError(t, err)
	require.Equal(t, 0, empty.Len())

	_, err = Parse("Sn,Qq")
	require.True(t, errors.Is(err, errors.ErrUnknownElement))
}

func TestFromSymbols(t *testing.T) {
	s, err := FromSymbols([]string{"O", " Fe", "", "O"})
	require.NoError(t, err)
	require.Equal(t, []string{"O", "Fe"}, s.Symbols())

	_, err = FromSymbols([]string{"fe"})
	require.True(t, errors.Is(err, errors.ErrUnknownElement))
}

func TestSet_JSON(t *testing.T) {
	data, err := json.Marshal(New("Fe", "O"))
	require.NoError(t, err)
	require.JSONEq(t, `["Fe","O"]`, string(data))

	var s Set
	require.NoError(t, json.Unmarshal([]byte(`["O","O","Pb"]`), &s))
	require.Equal(t, []string{"O", "Pb"}, s.Symbols())
}

func TestSymbols_ReturnsCopy(t *testing.T) {
	s := New("Fe", "O")
	syms := s.Symbols()
	syms[0] = "Pb"
	require.Equal(t, []string{"Fe", "O"}, s.Symbols())
}

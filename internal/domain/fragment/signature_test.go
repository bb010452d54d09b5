package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystalytics/fragscreen/internal/domain/structure"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

func methylFragment() *structure.Molecule {
	m := structure.NewMolecule("C1_frag")
	m.AddAtom(structure.Atom{Symbol: "C"})
	for i := 0; i < 4; i++ {
		m.AddAtom(structure.Atom{Symbol: "H"})
		_ = m.AddBond(structure.Bond{A1: 0, A2: i + 1, Order: structure.BondSingle})
	}
	return m
}

func TestDescribe(t *testing.T) {
	sig, err := Describe(methylFragment())
	require.NoError(t, err)
	assert.Equal(t, Signature{Central: "C", AtomCount: 5, Formula: "C1H4"}, sig)
}

func TestDescribe_CentralIsFirstAtom(t *testing.T) {
	m := structure.NewMolecule("O1_frag")
	m.AddAtom(structure.Atom{Symbol: "O"})
	m.AddAtom(structure.Atom{Symbol: "C"})
	m.AddAtom(structure.Atom{Symbol: "C"})

	sig, err := Describe(m)
	require.NoError(t, err)
	assert.Equal(t, "O", sig.Central)
	assert.Equal(t, "C2O1", sig.Formula)
}

func TestDescribe_Empty(t *testing.T) {
	_, err := Describe(structure.NewMolecule("EMPTY"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeSignatureInvalid))

	_, err = Describe(nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSignatureInvalid))
}

func TestSignature_String(t *testing.T) {
	sig := Signature{Central: "C", AtomCount: 5, Formula: "C1H4"}
	assert.Equal(t, "('C', 5, 'C1H4')", sig.String())
}

func TestParseSignature(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Signature
		wantErr bool
	}{
		{
			name: "canonical",
			raw:  "('C', 5, 'C1H4')",
			want: Signature{Central: "C", AtomCount: 5, Formula: "C1H4"},
		},
		{
			name: "two letter element",
			raw:  "('Fe', 7, 'C5Fe1O1')",
			want: Signature{Central: "Fe", AtomCount: 7, Formula: "C5Fe1O1"},
		},
		{
			name: "extra spacing",
			raw:  "  ( 'N' , 4 , 'C2H1N1' )  ",
			want: Signature{Central: "N", AtomCount: 4, Formula: "C2H1N1"},
		},
		{
			name:    "not a tuple",
			raw:     "C,5,C1H4",
			wantErr: true,
		},
		{
			name:    "count not numeric",
			raw:     "('C', five, 'C1H4')",
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSignature(tc.raw)
			if tc.wantErr {
				assert.True(t, errors.IsCode(err, errors.ErrCodeSignatureInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSignature_RoundTrip(t *testing.T) {
	sig, err := Describe(methylFragment())
	require.NoError(t, err)

	back, err := ParseSignature(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, back)
}

func TestSignature_UsableAsMapKey(t *testing.T) {
	a := Signature{Central: "C", AtomCount: 2, Formula: "C1O1"}
	b := Signature{Central: "C", AtomCount: 2, Formula: "C1O1"}

	m := map[Signature]int{a: 1}
	m[b]++
	assert.Equal(t, 2, m[a])
}

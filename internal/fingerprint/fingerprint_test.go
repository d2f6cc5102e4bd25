package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLengthAndBinary(t *testing.T) {
	enc, err := NewEncoder(DefaultNumBits, DefaultRadius)
	require.NoError(t, err)

	for _, s := range []string{
		"CCO",
		"c1ccccc1",
		"CC(=O)Oc1ccccc1C(=O)O",
		"CN1C=NC2=C1C(=O)N(C(=O)N2C)C",
		"[NH4+].[Cl-]",
		"C[C@@H](N)C(=O)O",
	} {
		v, err := enc.Encode(s)
		require.NoError(t, err, s)
		assert.Equal(t, DefaultNumBits, v.Len(), s)
		assert.Greater(t, v.Count(), 0, s)
		for _, f := range v.Floats() {
			assert.True(t, f == 0 || f == 1)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	enc, err := NewEncoder(1024, 2)
	require.NoError(t, err)
	a, err := enc.Encode("CC(=O)Oc1ccccc1C(=O)O")
	require.NoError(t, err)
	b, err := enc.Encode("CC(=O)Oc1ccccc1C(=O)O")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.Equal(t, 1.0, Tanimoto(a, b))
}

func TestEncodeDistinguishesStructures(t *testing.T) {
	enc, err := NewEncoder(2048, 2)
	require.NoError(t, err)
	ethanol, err := enc.Encode("CCO")
	require.NoError(t, err)
	benzene, err := enc.Encode("c1ccccc1")
	require.NoError(t, err)
	assert.False(t, ethanol.Equal(benzene))
	assert.Less(t, Tanimoto(ethanol, benzene), 1.0)
}

func TestEncodeRadiusGrowsFeatures(t *testing.T) {
	r0, _ := NewEncoder(4096, 0)
	r2, _ := NewEncoder(4096, 2)
	a, err := r0.Encode("CCCCO")
	require.NoError(t, err)
	b, err := r2.Encode("CCCCO")
	require.NoError(t, err)
	assert.Greater(t, b.Count(), a.Count())
}

func TestEncodeInvalid(t *testing.T) {
	enc, _ := NewEncoder(2048, 2)
	for _, s := range []string{"", "C(C", "C1CC", "[Xx]", "CC=", "C)C", "C==C", "C=#C", "CC-=1CC1"} {
		_, err := enc.Encode(s)
		assert.Error(t, err, "%q should not parse", s)
	}
}

func TestKekuleAndAromaticSpellingsEncodeAlike(t *testing.T) {
	enc, err := NewEncoder(DefaultNumBits, DefaultRadius)
	require.NoError(t, err)
	for _, pair := range [][2]string{
		{"c1ccccc1", "C1=CC=CC=C1"},
		{"c1ccncc1", "C1=CC=NC=C1"},
		{"Cc1ccccc1", "CC1=CC=CC=C1"},
		{"c1ccc2ccccc2c1", "C1=CC=C2C=CC=CC2=C1"},
		{"c1ccccc1-c1ccccc1", "C1=CC=C(C=C1)C1=CC=CC=C1"},
		{"c1ccccc1c1ccccc1", "c1ccccc1-c1ccccc1"},
	} {
		a, err := enc.Encode(pair[0])
		require.NoError(t, err, pair[0])
		b, err := enc.Encode(pair[1])
		require.NoError(t, err, pair[1])
		assert.True(t, a.Equal(b), "%s vs %s: tanimoto %v", pair[0], pair[1], Tanimoto(a, b))
	}
}

func TestKekulePerceptionLeavesNonAromaticRings(t *testing.T) {
	for _, s := range []string{"C1=CCCCC1", "C1=CC=CCC1", "O=C1C=CC(=O)C=C1"} {
		m, err := ParseSMILES(s)
		require.NoError(t, err, s)
		for i, a := range m.Atoms {
			assert.False(t, a.Aromatic, "%s atom %d", s, i)
		}
	}

	m, err := ParseSMILES("C1=CC=C2C=CC=CC2=C1")
	require.NoError(t, err)
	for i, a := range m.Atoms {
		assert.True(t, a.Aromatic, "atom %d", i)
	}
	assert.Equal(t, 0, m.Atoms[3].TotalH)
	assert.Equal(t, 1, m.Atoms[0].TotalH)
}

func TestNewEncoderRejectsBadParams(t *testing.T) {
	_, err := NewEncoder(0, 2)
	assert.Error(t, err)
	_, err = NewEncoder(16, -1)
	assert.Error(t, err)
}

func TestEncodeAllDropsInvalid(t *testing.T) {
	enc, _ := NewEncoder(256, 2)
	encoded, dropped := enc.EncodeAll([]Record{
		{ID: "DB001", Structure: "CCO"},
		{ID: "DB002", Structure: "C(("},
		{ID: "DB003", Structure: "c1ccccc1O"},
	})
	require.Len(t, encoded, 2)
	assert.Equal(t, "DB001", encoded[0].ID)
	assert.Equal(t, "DB003", encoded[1].ID)
	assert.Equal(t, []string{"DB002"}, dropped)
	assert.Len(t, Vectors(encoded), 2)
}

func TestParseSMILESRings(t *testing.T) {
	m, err := ParseSMILES("C1CCCCC1CC")
	require.NoError(t, err)
	require.Len(t, m.Atoms, 8)
	for i := 0; i < 6; i++ {
		assert.True(t, m.Atoms[i].InRing, "atom %d", i)
	}
	assert.False(t, m.Atoms[6].InRing)
	assert.False(t, m.Atoms[7].InRing)
	assert.Equal(t, 3, m.Atoms[7].TotalH)
	assert.Equal(t, 1, m.Atoms[5].TotalH)
}

func TestParseSMILESHydrogens(t *testing.T) {
	m, err := ParseSMILES("C=O")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Atoms[0].TotalH)
	assert.Equal(t, 0, m.Atoms[1].TotalH)

	m, err = ParseSMILES("c1ccccc1")
	require.NoError(t, err)
	for _, a := range m.Atoms {
		assert.Equal(t, 1, a.TotalH)
		assert.True(t, a.Aromatic)
	}

	m, err = ParseSMILES("[NH4+]")
	require.NoError(t, err)
	assert.Equal(t, 4, m.Atoms[0].TotalH)
	assert.Equal(t, 1, m.Atoms[0].Charge)
}

func TestTanimoto(t *testing.T) {
	a, _ := NewVector(4, 0, 1)
	b, _ := NewVector(4, 1, 2)
	assert.InDelta(t, 1.0/3.0, Tanimoto(a, b), 1e-12)
	assert.Equal(t, Tanimoto(a, b), Tanimoto(b, a))

	zero, _ := NewVector(4)
	assert.Equal(t, 0.0, Tanimoto(zero, zero))
	assert.Equal(t, 0.0, Tanimoto(zero, a))
}

func TestBinarize(t *testing.T) {
	v := Binarize([]float64{0.9, 0.5, 0.51, 0.1}, 0.5)
	assert.Equal(t, []int{0, 2}, v.OnBits())
	assert.Equal(t, 4, v.Len())
}

func TestFromBinaryRejectsNonBinary(t *testing.T) {
	_, err := FromBinary([]float64{0, 1, 0.5})
	assert.Error(t, err)
	v, err := FromBinary([]float64{0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v.OnBits())
}

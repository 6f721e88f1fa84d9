package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDense_MatchesGonumReference(t *testing.T) {
	inputSize, outputSize := 3, 2
	weights := []float32{
		1, 0, 0,
		0, 1, 1,
		0.5, 0.5,
	}
	d, err := NewDense(inputSize, outputSize, weights, 0)
	require.NoError(t, err)

	input := []float32{1, 2, 3}
	got := d.Forward(input)

	// Independent float64 reference via gonum: y = Wx + b, computed with a
	// real matrix library rather than the hand-rolled scalar loop under
	// test, so the two implementations can disagree on floating-point
	// sequencing but must still agree within tolerance.
	w := mat.NewDense(outputSize, inputSize, []float64{1, 0, 0, 0, 1, 1})
	x := mat.NewVecDense(inputSize, []float64{1, 2, 3})
	var y mat.VecDense
	y.MulVec(w, x)
	b := []float64{0.5, 0.5}

	for i := 0; i < outputSize; i++ {
		want := y.AtVec(i) + b[i]
		require.InDelta(t, want, float64(got[i]), 1e-5)
	}
}

func TestDense_ParamLengthAndRebind(t *testing.T) {
	weights := make([]float32, 20)
	d, err := NewDense(3, 2, weights, 0)
	require.NoError(t, err)
	require.Equal(t, 8, d.ParamLength())

	require.NoError(t, d.Rebind(weights, 10))
	out := d.Forward([]float32{1, 1, 1})
	require.Len(t, out, 2)
}

func TestDense_RebindTooShort(t *testing.T) {
	weights := make([]float32, 20)
	d, err := NewDense(3, 2, weights, 0)
	require.NoError(t, err)
	err = d.Rebind(weights, 15)
	require.Error(t, err)
}

func TestMLP_ChainMatchesSumOfDenseLayers(t *testing.T) {
	chain := []int{4, 3, 2}
	weights := make([]float32, 4*3+3+3*2+2)
	m, err := NewMLP(chain, weights, 0)
	require.NoError(t, err)
	require.Equal(t, len(weights), m.ParamLength())

	out := m.Forward([]float32{1, 1, 1, 1})
	require.Len(t, out, 2)
}

func TestGRU_ParamLengthAndHiddenEvolves(t *testing.T) {
	inputSize, hiddenSize := 2, 3
	weights := make([]float32, 3*(inputSize*hiddenSize+hiddenSize*hiddenSize+hiddenSize))
	for i := range weights {
		weights[i] = 0.01 * float32(i%7-3)
	}
	g, err := NewGRU(inputSize, hiddenSize, weights, 0)
	require.NoError(t, err)
	require.Equal(t, len(weights), g.ParamLength())

	h1 := append([]float32(nil), g.Forward([]float32{1, -1})...)
	h2 := g.Forward([]float32{1, -1})
	require.NotEqual(t, h1, h2, "hidden state should evolve across steps")

	g.Reset()
	for _, v := range g.h {
		require.Zero(t, v)
	}
}

func TestLSTM_ParamLengthAndCellState(t *testing.T) {
	inputSize, hiddenSize := 2, 2
	weights := make([]float32, 4*(inputSize*hiddenSize+hiddenSize*hiddenSize+hiddenSize))
	l, err := NewLSTM(inputSize, hiddenSize, weights, 0)
	require.NoError(t, err)
	require.Equal(t, len(weights), l.ParamLength())

	out := l.Forward([]float32{1, 1})
	require.Len(t, out, hiddenSize)
	for _, v := range out {
		require.True(t, math.Abs(float64(v)) <= 1, "lstm hidden state is tanh-bounded")
	}
}

func TestRRU_ParamLengthMatchesTwoGates(t *testing.T) {
	inputSize, hiddenSize := 2, 3
	gateLen := inputSize*hiddenSize + hiddenSize*hiddenSize + hiddenSize
	weights := make([]float32, 2*gateLen)
	r, err := NewRRU(inputSize, hiddenSize, weights, 0)
	require.NoError(t, err)
	require.Equal(t, 2*gateLen, r.ParamLength())

	out := r.Forward([]float32{1, 0})
	require.Len(t, out, hiddenSize)
}

func TestProbe_AlwaysScalarInThisEnvironment(t *testing.T) {
	require.Equal(t, CapabilityScalar, Probe())
}

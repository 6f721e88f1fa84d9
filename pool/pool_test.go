package pool

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/neuroevo-sim/infercore/graph"
	"github.com/neuroevo-sim/infercore/worker"
)

func denseIdentitySpec() graph.Spec {
	return graph.Spec{
		Type: "feedforward",
		Nodes: []graph.Node{
			{ID: "in", Type: graph.NodeInput, OutputSize: 2},
			{ID: "d", Type: graph.NodeDense, InputSize: 2, OutputSize: 2},
		},
		Edges:      []graph.Edge{{From: "in", To: "d"}},
		Outputs:    []graph.OutputRef{{NodeID: "d"}},
		OutputSize: 2,
	}
}

// S1 - Dense identity batch.
func TestPool_S1_DenseIdentityBatch(t *testing.T) {
	spec := denseIdentitySpec()
	compiled, err := graph.Compile(spec)
	require.NoError(t, err)

	p := New()
	err = p.Init(Options{
		Spec: spec, Key: compiled.Key,
		PopulationCount: 1, ParamCount: compiled.TotalParams,
		InputStride: 2, OutputStride: 2, MaxBatch: 3,
		Weights:     []float32{1, 0, 0, 1, 0, 0},
		WorkerCount: 1,
	})
	require.NoError(t, err)
	defer p.Shutdown()
	require.Equal(t, Ready, p.Status())

	inputs := []float32{1, 2, 3, 4, 5, 6}
	indices := []int32{0, 0, 0}
	outputs := make([]float32, 6)
	require.NoError(t, p.RunBatch(inputs, outputs, indices, 3, 2, 2))
	require.Equal(t, []float32{1, 2, 3, 4, 5, 6}, outputs)
}

func TestPool_Init_RejectsUndersizedWeights(t *testing.T) {
	spec := denseIdentitySpec()
	compiled, err := graph.Compile(spec)
	require.NoError(t, err)

	p := New()
	err = p.Init(Options{
		Spec: spec, Key: compiled.Key,
		PopulationCount: 2, ParamCount: compiled.TotalParams,
		InputStride: 2, OutputStride: 2, MaxBatch: 3,
		Weights:     make([]float32, compiled.TotalParams), // only one slab, need two
		WorkerCount: 1,
	})
	require.Error(t, err)
	var mismatch *SizeMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 2*compiled.TotalParams, mismatch.Want)
	require.Equal(t, compiled.TotalParams, mismatch.Got)
	require.Equal(t, Failed, p.Status())
}

// S2 - Index-mapped selection.
func TestPool_S2_IndexMappedSelection(t *testing.T) {
	spec := denseIdentitySpec()
	compiled, err := graph.Compile(spec)
	require.NoError(t, err)

	p := New()
	err = p.Init(Options{
		Spec: spec, Key: compiled.Key,
		PopulationCount: 2, ParamCount: compiled.TotalParams,
		InputStride: 2, OutputStride: 2, MaxBatch: 2,
		Weights:     []float32{1, 0, 0, 1, 0, 0, 2, 0, 0, 2, 0, 0},
		WorkerCount: 1,
	})
	require.NoError(t, err)
	defer p.Shutdown()

	inputs := []float32{1, 1, 1, 1}
	indices := []int32{0, 1}
	outputs := make([]float32, 4)
	require.NoError(t, p.RunBatch(inputs, outputs, indices, 2, 2, 2))
	require.Equal(t, []float32{1, 1, 2, 2}, outputs)
}

// S3 - Recurrent reset.
func TestPool_S3_RecurrentReset(t *testing.T) {
	spec := graph.Spec{
		Type: "recurrent",
		Nodes: []graph.Node{
			{ID: "in", Type: graph.NodeInput, OutputSize: 1},
			{ID: "g", Type: graph.NodeGRU, InputSize: 1, HiddenSize: 1},
			{ID: "d", Type: graph.NodeDense, InputSize: 1, OutputSize: 1},
		},
		Edges: []graph.Edge{
			{From: "in", To: "g"},
			{From: "g", To: "d"},
		},
		Outputs:    []graph.OutputRef{{NodeID: "d"}},
		OutputSize: 1,
	}
	compiled, err := graph.Compile(spec)
	require.NoError(t, err)

	weights := make([]float32, compiled.TotalParams)
	for i := range weights {
		weights[i] = 0.05 * float32(i%5-2)
	}

	p := New()
	require.NoError(t, p.Init(Options{
		Spec: spec, Key: compiled.Key,
		PopulationCount: 1, ParamCount: compiled.TotalParams,
		InputStride: 1, OutputStride: 1, MaxBatch: 1,
		Weights:     weights,
		WorkerCount: 1,
	}))
	defer p.Shutdown()

	runSequence := func() float32 {
		var out [1]float32
		for step := 0; step < 3; step++ {
			require.NoError(t, p.RunBatch([]float32{1}, out[:], []int32{0}, 1, 1, 1))
		}
		return out[0]
	}

	y1 := runSequence()
	require.NoError(t, p.ResetBrains())
	y2 := runSequence()
	require.InDelta(t, y1, y2, 1e-6)
}

func TestPool_InFlightGuard(t *testing.T) {
	spec := denseIdentitySpec()
	compiled, err := graph.Compile(spec)
	require.NoError(t, err)

	p := New()
	require.NoError(t, p.Init(Options{
		Spec: spec, Key: compiled.Key,
		PopulationCount: 1, ParamCount: compiled.TotalParams,
		InputStride: 2, OutputStride: 2, MaxBatch: 1,
		Weights:     []float32{1, 0, 0, 1, 0, 0},
		WorkerCount: 1,
	}))
	defer p.Shutdown()

	p.inflight = true
	err = p.RunBatch([]float32{1, 1}, make([]float32, 2), []int32{0}, 1, 2, 2)
	require.Error(t, err)
	var inFlight *InFlightError
	require.ErrorAs(t, err, &inFlight)
}

func TestPool_ShutdownIdempotent(t *testing.T) {
	p := New()
	p.Shutdown()
	p.Shutdown()
	require.Equal(t, Disabled, p.Status())
}

func TestPool_UpdateWeightsAffectsNextBatch(t *testing.T) {
	spec := denseIdentitySpec()
	compiled, err := graph.Compile(spec)
	require.NoError(t, err)

	p := New()
	require.NoError(t, p.Init(Options{
		Spec: spec, Key: compiled.Key,
		PopulationCount: 1, ParamCount: compiled.TotalParams,
		InputStride: 2, OutputStride: 2, MaxBatch: 1,
		Weights:     []float32{1, 0, 0, 1, 0, 0},
		WorkerCount: 1,
	}))
	defer p.Shutdown()

	out := make([]float32, 2)
	require.NoError(t, p.RunBatch([]float32{3, 4}, out, []int32{0}, 1, 2, 2))
	require.Equal(t, []float32{3, 4}, out)

	require.NoError(t, p.UpdateWeights([]float32{2, 0, 0, 2, 0, 0}))
	require.NoError(t, p.RunBatch([]float32{3, 4}, out, []int32{0}, 1, 2, 2))
	require.Equal(t, []float32{6, 8}, out)
}

func TestEffectiveWorkerCount_ClampsToCeiling(t *testing.T) {
	ceiling := effectiveWorkerCount(0)
	require.GreaterOrEqual(t, ceiling, 1)
	require.Equal(t, ceiling, effectiveWorkerCount(-5))
	require.Equal(t, ceiling, effectiveWorkerCount(ceiling+1000))
	require.Equal(t, 1, effectiveWorkerCount(1))
}

// S6 - Pool failure containment. A hand-wired 2-worker pool with one
// worker's response faked to RespError exercises the same dispatch/
// completion path RunBatch uses against real workers, without depending on
// a real worker ever actually failing mid-batch (which a valid compiled
// graph never does on its own).
func TestPool_S6_FailureContainment(t *testing.T) {
	p := &Pool{
		status:      Ready,
		opts:        Options{InputStride: 2, OutputStride: 2},
		workerCount: 2,
		reqChs:      []chan worker.Request{make(chan worker.Request, 1), make(chan worker.Request, 1)},
		respCh:      make(chan worker.Response, 2),
		weights:     make([]float32, 4),
		inputs:      make([]float32, 4),
		outputs:     make([]float32, 4),
		indices:     make([]int32, 2),
		log:         logrus.WithField("component", "pool-test"),
	}

	// Worker 0 behaves: answers its infer request with Done, then answers
	// shutdown with Ready. Worker 1 answers its infer request with Error
	// (the injected mid-batch crash), then answers shutdown with Ready.
	go func() {
		req := <-p.reqChs[0]
		p.respCh <- worker.Response{Type: worker.RespDone, WorkerID: 0, BatchID: req.BatchID, Start: req.Start, Count: req.Count}
		<-p.reqChs[0]
		p.respCh <- worker.Response{Type: worker.RespReady, WorkerID: 0}
	}()
	go func() {
		<-p.reqChs[1]
		p.respCh <- worker.Response{Type: worker.RespError, WorkerID: 1, Reason: "injected crash"}
		<-p.reqChs[1]
		p.respCh <- worker.Response{Type: worker.RespReady, WorkerID: 1}
	}()

	err := p.RunBatch([]float32{1, 1, 1, 1}, make([]float32, 4), []int32{0, 0}, 2, 2, 2)
	require.Error(t, err)
	var crash *WorkerCrashError
	require.ErrorAs(t, err, &crash)
	require.Equal(t, Failed, p.Status())

	// A failed pool never auto-recovers: the next call observes NotReady.
	err = p.RunBatch([]float32{1, 1, 1, 1}, make([]float32, 4), []int32{0, 0}, 2, 2, 2)
	var notReady *NotReadyError
	require.ErrorAs(t, err, &notReady)

	p.Shutdown()
	require.Equal(t, Disabled, p.Status())

	// shutdown + init returns the pool to ready.
	spec := denseIdentitySpec()
	compiled, err := graph.Compile(spec)
	require.NoError(t, err)
	require.NoError(t, p.Init(Options{
		Spec: spec, Key: compiled.Key,
		PopulationCount: 1, ParamCount: compiled.TotalParams,
		InputStride: 2, OutputStride: 2, MaxBatch: 1,
		Weights:     []float32{1, 0, 0, 1, 0, 0},
		WorkerCount: 1,
	}))
	defer p.Shutdown()
	require.Equal(t, Ready, p.Status())
}

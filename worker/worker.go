package worker

import (
	"fmt"

	"github.com/neuroevo-sim/infercore/brain"
	"github.com/neuroevo-sim/infercore/graph"
)

// Worker is one goroutine's worth of compiled graph plus one brain.Brain
// per population slot. Construct with New and drive with Run; a Worker
// produces no unsolicited messages except RespError, matching the pool's
// strict request/reply contract.
type Worker struct {
	id    int
	cache *graph.Cache

	compiled   *graph.Compiled
	brains     []*brain.Brain
	paramCount int

	inputStride  int
	outputStride int
	inputs       []float32
	outputs      []float32
	indices      []int32
}

// New returns an uninitialized worker identified by id, compiling against
// the shared cache. Every worker in a pool is handed the same cache, so the
// common case (every worker initializing against the same spec) compiles
// once instead of once per worker; cache may be nil to always compile fresh.
// Call Run to start its event loop; the worker only becomes usable once it
// has processed a ReqInit request and replied RespReady.
func New(id int, cache *graph.Cache) *Worker {
	return &Worker{id: id, cache: cache}
}

// Run is the worker's single-threaded event loop. It returns when it
// receives (and acknowledges) ReqShutdown, or when reqCh is closed.
func (w *Worker) Run(reqCh <-chan Request, respCh chan<- Response) {
	for req := range reqCh {
		switch req.Type {
		case ReqInit:
			respCh <- w.handleInit(req)
		case ReqInfer:
			respCh <- w.handleInfer(req)
		case ReqReset:
			respCh <- w.handleReset()
		case ReqShutdown:
			respCh <- Response{Type: RespReady, WorkerID: w.id}
			return
		}
	}
}

func (w *Worker) handleInit(req Request) Response {
	compile := graph.Compile
	if w.cache != nil {
		compile = w.cache.CompileCached
	}
	compiled, err := compile(req.Spec)
	if err != nil {
		return w.errorResponse(fmt.Errorf("compile: %w", err))
	}
	if compiled.TotalParams != req.ParamCount {
		return w.errorResponse(fmt.Errorf("worker: totalParams %d does not match declared paramCount %d", compiled.TotalParams, req.ParamCount))
	}

	w.compiled = compiled
	w.paramCount = req.ParamCount
	w.inputStride = req.InputStride
	w.outputStride = req.OutputStride
	w.inputs = req.Inputs
	w.outputs = req.Outputs
	w.indices = req.Indices

	w.brains = make([]*brain.Brain, req.PopulationCount)
	for slot := 0; slot < req.PopulationCount; slot++ {
		off := slot * w.paramCount
		b, err := brain.New(compiled, req.Weights[off:off+w.paramCount])
		if err != nil {
			return w.errorResponse(fmt.Errorf("worker: brain %d: %w", slot, err))
		}
		b.Reset()
		w.brains[slot] = b
	}

	return Response{Type: RespReady, WorkerID: w.id}
}

func (w *Worker) handleInfer(req Request) Response {
	for b := req.Start; b < req.Start+req.Count; b++ {
		idx := int(w.indices[b])

		outView := w.outputs[b*w.outputStride : (b+1)*w.outputStride]
		if idx < 0 || idx >= len(w.brains) {
			for i := range outView {
				outView[i] = 0
			}
			continue
		}

		inView := w.inputs[b*w.inputStride : (b+1)*w.inputStride]
		out, err := w.brains[idx].Forward(inView)
		if err != nil {
			return w.errorResponse(fmt.Errorf("worker: brain %d forward: %w", idx, err))
		}
		n := copy(outView, out)
		for i := n; i < len(outView); i++ {
			outView[i] = 0
		}
	}
	return Response{Type: RespDone, WorkerID: w.id, BatchID: req.BatchID, Start: req.Start, Count: req.Count}
}

func (w *Worker) handleReset() Response {
	for _, b := range w.brains {
		b.Reset()
	}
	return Response{Type: RespReady, WorkerID: w.id}
}

func (w *Worker) errorResponse(err error) Response {
	return Response{Type: RespError, WorkerID: w.id, Reason: err.Error()}
}

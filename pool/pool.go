// Package pool implements the batch inference pool: a fixed worker fleet
// fanning out batches of (agent-index, input-vector) pairs over four
// shared memory regions, with at-most-one batch in flight at a time.
//
// Workers are realized as goroutines communicating over channels (the
// spec's message-passing concurrency design note explicitly allows OS
// threads, a task runtime, or channels); the shared regions are the same
// backing []float32/[]int32 slices handed to every worker, safe by
// temporal partitioning: the pool writes before dispatch, workers write
// disjoint sub-ranges during a batch, the pool reads after every worker
// acknowledges done.
package pool

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/neuroevo-sim/infercore/graph"
	"github.com/neuroevo-sim/infercore/worker"
)

// Status is the pool's lifecycle state.
type Status int

const (
	Disabled Status = iota
	Starting
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	initTimeout  = 15 * time.Second
	resetTimeout = 5 * time.Second
)

// Options configures Init.
type Options struct {
	Spec            graph.Spec
	Key             string
	PopulationCount int
	ParamCount      int
	InputStride     int
	OutputStride    int
	MaxBatch        int
	Weights         []float32 // len = PopulationCount*ParamCount
	WorkerCount     int       // r <= 0 selects max(1, cores-1); else clamped to that ceiling
}

// Pool owns a worker fleet and the four shared regions. A Pool is a
// single-producer API: exactly one caller drives runBatch/updateWeights/
// resetBrains/shutdown at a time (§5); Pool itself does not serialize
// concurrent callers beyond the InFlight guard on runBatch.
type Pool struct {
	status Status
	opts   Options

	workerCount int
	reqChs      []chan worker.Request
	respCh      chan worker.Response
	done        chan struct{}

	weights []float32
	inputs  []float32
	outputs []float32
	indices []int32

	inflight       bool
	nextBatchID    uint64
	strayResponses int // responses still owed by workers that outlive a failed batch

	log *logrus.Entry
}

// New returns a pool in the Disabled state. Call Init before use.
func New() *Pool {
	return &Pool{status: Disabled, log: logrus.WithField("component", "pool")}
}

// Status reports the current lifecycle state.
func (p *Pool) Status() Status {
	return p.status
}

// effectiveWorkerCount implements the clamp formula: r <= 0 selects
// max(1, cores-1); a positive r is clamped to that same ceiling.
func effectiveWorkerCount(r int) int {
	ceiling := runtime.NumCPU() - 1
	if ceiling < 1 {
		ceiling = 1
	}
	if r <= 0 {
		return ceiling
	}
	if r > ceiling {
		return ceiling
	}
	return r
}

// Init brings the pool up: it calls Shutdown first (idempotent), allocates
// the four shared regions, spawns workers, and awaits a ready
// acknowledgment from each within 15 seconds. On any worker timeout or
// error, all workers are shut down and Init returns an error with status
// left Failed.
func (p *Pool) Init(opts Options) error {
	p.Shutdown()

	p.status = Starting
	p.opts = opts

	count := effectiveWorkerCount(opts.WorkerCount)
	if count == 0 {
		p.fail("effective worker count is zero")
		return fmt.Errorf("pool: effective worker count is zero")
	}
	p.workerCount = count

	wantWeights := opts.PopulationCount * opts.ParamCount
	if len(opts.Weights) < wantWeights {
		p.fail(fmt.Sprintf("weights buffer too short: want %d, got %d", wantWeights, len(opts.Weights)))
		return sizeMismatch("weights buffer shorter than populationCount*paramCount", wantWeights, len(opts.Weights))
	}

	p.weights = opts.Weights
	p.inputs = make([]float32, opts.MaxBatch*opts.InputStride)
	p.outputs = make([]float32, opts.MaxBatch*opts.OutputStride)
	p.indices = make([]int32, opts.MaxBatch)

	p.reqChs = make([]chan worker.Request, count)
	p.respCh = make(chan worker.Response, count)
	p.done = make(chan struct{})

	cache := graph.NewCache()
	for i := 0; i < count; i++ {
		p.reqChs[i] = make(chan worker.Request, 1)
		w := worker.New(i, cache)
		go w.Run(p.reqChs[i], p.respCh)
		p.reqChs[i] <- worker.Request{
			Type:            worker.ReqInit,
			Spec:            opts.Spec,
			Key:             opts.Key,
			PopulationCount: opts.PopulationCount,
			ParamCount:      opts.ParamCount,
			InputStride:     opts.InputStride,
			OutputStride:    opts.OutputStride,
			Weights:         p.weights,
			Inputs:          p.inputs,
			Outputs:         p.outputs,
			Indices:         p.indices,
		}
	}

	acked := 0
	for acked < count {
		select {
		case resp := <-p.respCh:
			if resp.Type != worker.RespReady {
				reason := fmt.Sprintf("worker %d failed to init: %s", resp.WorkerID, resp.Reason)
				p.fail(reason)
				p.shutdownWorkers()
				return &WorkerCrashError{Reason: reason}
			}
			acked++
		case <-time.After(initTimeout):
			p.fail("worker init timed out")
			p.shutdownWorkers()
			return &WorkerTimeoutError{Op: "init"}
		}
	}

	p.status = Ready
	return nil
}

// RunBatch dispatches a sharded batch to every worker with a non-empty
// range and suspends until all have reported done, then copies the shared
// output region into outputsBuf.
func (p *Pool) RunBatch(inputsBuf, outputsBuf []float32, indicesBuf []int32, count, inputStride, outputStride int) error {
	if p.status != Ready {
		return &NotReadyError{}
	}
	if inputStride != p.opts.InputStride || outputStride != p.opts.OutputStride {
		return sizeMismatch("stride mismatch with init-time configuration", p.opts.InputStride, inputStride)
	}
	if count < 0 {
		return sizeMismatch("count must be >= 0", 0, count)
	}
	if len(inputsBuf) < count*inputStride || len(outputsBuf) < count*outputStride || len(indicesBuf) < count {
		return sizeMismatch("caller buffers too small for count", count, len(indicesBuf))
	}
	if count*inputStride > len(p.inputs) || count*outputStride > len(p.outputs) || count > len(p.indices) {
		return sizeMismatch("shared regions too small for count", count, len(p.indices))
	}
	if p.inflight {
		return &InFlightError{}
	}

	copy(p.inputs, inputsBuf[:count*inputStride])
	copy(p.indices, indicesBuf[:count])
	for i := 0; i < count*outputStride; i++ {
		p.outputs[i] = 0
	}

	chunk := ceilDiv(count, p.workerCount)
	p.inflight = true
	p.nextBatchID++
	batchID := p.nextBatchID

	messaged := 0
	for i := 0; i < p.workerCount; i++ {
		start := i * chunk
		if start >= count {
			break
		}
		end := start + chunk
		if end > count {
			end = count
		}
		if end <= start {
			continue
		}
		p.reqChs[i] <- worker.Request{Type: worker.ReqInfer, BatchID: batchID, Start: start, Count: end - start}
		messaged++
	}

	for messaged > 0 {
		resp := <-p.respCh
		switch resp.Type {
		case worker.RespDone:
			if resp.BatchID == batchID {
				messaged--
			}
		case worker.RespError:
			p.inflight = false
			// The other still-dispatched workers (messaged-1, excluding the
			// one that just errored) will eventually answer on p.respCh too;
			// shutdownWorkers must absorb those strays since the pool never
			// auto-recovers a failed batch.
			p.strayResponses += messaged - 1
			p.fail(fmt.Sprintf("worker %d error during batch %d: %s", resp.WorkerID, batchID, resp.Reason))
			return &WorkerCrashError{Reason: resp.Reason}
		}
	}

	p.inflight = false
	copy(outputsBuf, p.outputs[:count*outputStride])
	return nil
}

// UpdateWeights overwrites the shared weight region in place. Must not be
// called while a batch is in flight; length must match exactly. Workers
// hold views into this region, so the next batch sees the new values
// without any further signalling.
func (p *Pool) UpdateWeights(newWeights []float32) error {
	if p.status != Ready {
		return &NotReadyError{}
	}
	if p.inflight {
		return &InFlightError{}
	}
	if len(newWeights) != len(p.weights) {
		return fmt.Errorf("pool: updateWeights length %d does not match weight region length %d", len(newWeights), len(p.weights))
	}
	copy(p.weights, newWeights)
	return nil
}

// ResetBrains broadcasts a reset to every worker and awaits acknowledgment
// within 5 seconds per worker.
func (p *Pool) ResetBrains() error {
	if p.status != Ready {
		return &NotReadyError{}
	}
	for i := 0; i < p.workerCount; i++ {
		p.reqChs[i] <- worker.Request{Type: worker.ReqReset}
	}
	acked := 0
	for acked < p.workerCount {
		select {
		case resp := <-p.respCh:
			if resp.Type == worker.RespReady {
				acked++
			}
		case <-time.After(resetTimeout):
			p.fail("worker reset timed out")
			return &WorkerTimeoutError{Op: "reset"}
		}
	}
	return nil
}

// Shutdown sends shutdown to every worker, awaits termination, releases
// the shared regions, and resets status to Disabled. Always safe to call,
// including when the pool is already Disabled.
func (p *Pool) Shutdown() {
	if p.status == Disabled {
		return
	}
	p.shutdownWorkers()
	p.status = Disabled
	p.weights, p.inputs, p.outputs, p.indices = nil, nil, nil, nil
}

func (p *Pool) shutdownWorkers() {
	for _, ch := range p.reqChs {
		ch <- worker.Request{Type: worker.ReqShutdown}
	}
	total := len(p.reqChs) + p.strayResponses
	for i := 0; i < total; i++ {
		<-p.respCh // RespReady, or a straggler RespDone/RespError absorbed during shutdown
	}
	p.strayResponses = 0
	p.reqChs = nil
	p.inflight = false
}

func (p *Pool) fail(reason string) {
	p.status = Failed
	p.log.WithFields(logrus.Fields{"key": p.opts.Key, "reason": reason}).Error("pool transitioned to failed")
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

package score

import (
	"sync"
	"time"

	"github.com/chrissnell/snowrecorder/internal/types"
)

const workerQueueSize = 4096

// worker owns one engine and applies commands to it on its own goroutine, in
// the order they were sent. The mutex only guards live reads.
type worker[E any] struct {
	mu     sync.Mutex
	engine E
	cmds   chan func(E)
	done   chan struct{}
}

func startWorker[E any](engine E) *worker[E] {
	w := &worker[E]{
		engine: engine,
		cmds:   make(chan func(E), workerQueueSize),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *worker[E]) run() {
	defer close(w.done)
	for cmd := range w.cmds {
		w.mu.Lock()
		cmd(w.engine)
		w.mu.Unlock()
	}
}

func (w *worker[E]) send(cmd func(E)) {
	w.cmds <- cmd
}

func (w *worker[E]) read(fn func(E)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w.engine)
}

func (w *worker[E]) stop() {
	close(w.cmds)
	<-w.done
}

// Workers runs the Edge and Flow engines in parallel with the classifier and
// with each other. Samples are handed over without waiting; Finalize joins
// both engines and returns once every earlier sample has been applied.
type Workers struct {
	edge *worker[*Edge]
	flow *worker[*Flow]
	once sync.Once
}

// StartWorkers launches one goroutine per engine. Stop must be called to
// release them.
func StartWorkers(ep EdgeParams, fp FlowParams) *Workers {
	return &Workers{
		edge: startWorker(NewEdge(ep)),
		flow: startWorker(NewFlow(fp)),
	}
}

// Location forwards a location sample to both engines.
func (w *Workers) Location(s types.Sample, at time.Time) {
	speed := s.SafeSpeed()
	w.edge.send(func(e *Edge) { e.SetSpeed(speed) })
	w.flow.send(func(f *Flow) { f.AddSpeed(s, at) })
}

// Motion forwards an acceleration magnitude sample to both engines.
func (w *Workers) Motion(g float64, at time.Time) {
	w.edge.send(func(e *Edge) { e.AddG(g, at) })
	w.flow.send(func(f *Flow) { f.AddG(g, at) })
}

// PendingRest tells the Flow engine whether idle time should be suspended.
func (w *Workers) PendingRest(on bool) {
	w.flow.send(func(f *Flow) { f.SetPendingRest(on) })
}

// Reset clears both engines for a new run.
func (w *Workers) Reset() {
	w.edge.send(func(e *Edge) { e.Reset() })
	w.flow.send(func(f *Flow) { f.Reset() })
}

// Finalize waits for both engines to drain and returns their results.
func (w *Workers) Finalize() (types.EdgeSummary, types.FlowSummary) {
	edgeCh := make(chan types.EdgeSummary, 1)
	flowCh := make(chan types.FlowSummary, 1)
	w.edge.send(func(e *Edge) { edgeCh <- e.Result() })
	w.flow.send(func(f *Flow) { flowCh <- f.Result() })
	return <-edgeCh, <-flowCh
}

// Live returns a best-effort read of the scores in progress.
func (w *Workers) Live() (edge types.EdgeSummary, flow types.FlowSummary) {
	w.edge.read(func(e *Edge) { edge = e.Result() })
	w.flow.read(func(f *Flow) { flow = f.Result() })
	return edge, flow
}

// Stop drains and terminates both goroutines.
func (w *Workers) Stop() {
	w.once.Do(func() {
		w.edge.stop()
		w.flow.stop()
	})
}

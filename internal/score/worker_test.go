package score

import (
	"math"
	"testing"
)

func TestWorkersFinalizeSeesEverySample(t *testing.T) {
	w := StartWorkers(DefaultEdgeParams(), DefaultFlowParams())
	defer w.Stop()

	w.Location(fix(10), epoch)
	for i := 0; i < 600; i++ {
		w.Motion(1.7, at60(i))
	}
	edge, flow := w.Finalize()
	if math.Abs(edge.Raw-102) > 1e-6 {
		t.Fatalf("edge raw = %v, want 102", edge.Raw)
	}
	if flow.Score != 0 {
		t.Fatalf("flow score = %d, want 0 with a single fix", flow.Score)
	}

	w.Reset()
	edge, _ = w.Finalize()
	if edge.Raw != 0 {
		t.Fatalf("edge raw after reset = %v", edge.Raw)
	}

	live, _ := w.Live()
	if live.Score != 0 {
		t.Fatalf("live score after reset = %d", live.Score)
	}
}

func TestWorkersStopIsIdempotent(t *testing.T) {
	w := StartWorkers(DefaultEdgeParams(), DefaultFlowParams())
	w.Stop()
	w.Stop()
}

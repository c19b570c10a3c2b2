package plugin

import (
	"fmt"
	vmetrics "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"time"
)

// Transaction outcomes used as metric label
const (
	outcomeSuccess   = "success"
	outcomeException = "exception"
	outcomeTimeout   = "timeout"
	outcomeFailure   = "failure"
)

// pluginMetrics exports process wide prometheus metrics labeled with the local node id
// and keeps per remote node latency statistics for Stats
type pluginMetrics struct {
	nodeID   uint32
	registry gometrics.Registry

	framesSent     *vmetrics.Counter
	framesReceived *vmetrics.Counter
	unmatched      *vmetrics.Counter
	dispatched     *vmetrics.Counter
	dispatchFailed *vmetrics.Counter
	duration       *vmetrics.Histogram
}

// NodeStats summarizes the two-way calls issued to one remote node
type NodeStats struct {
	Calls    int64
	Failures int64
	Timeouts int64
	Mean     time.Duration
	P99      time.Duration
}

func (s NodeStats) String() string {
	return fmt.Sprintf("calls=%d failures=%d timeouts=%d mean=%s p99=%s", s.Calls, s.Failures, s.Timeouts, s.Mean, s.P99)
}

func newPluginMetrics(nodeID uint32) *pluginMetrics {
	label := func(name string) string {
		return fmt.Sprintf(`%s{node="%d"}`, name, nodeID)
	}
	return &pluginMetrics{
		nodeID:         nodeID,
		registry:       gometrics.NewRegistry(),
		framesSent:     vmetrics.GetOrCreateCounter(label("drpc_frames_sent_total")),
		framesReceived: vmetrics.GetOrCreateCounter(label("drpc_frames_received_total")),
		unmatched:      vmetrics.GetOrCreateCounter(label("drpc_unmatched_replies_total")),
		dispatched:     vmetrics.GetOrCreateCounter(label("drpc_dispatched_total")),
		dispatchFailed: vmetrics.GetOrCreateCounter(label("drpc_dispatch_failures_total")),
		duration:       vmetrics.GetOrCreateHistogram(label("drpc_transaction_duration_seconds")),
	}
}

// transactionDone records the outcome of a two-way call to remote node
func (m *pluginMetrics) transactionDone(node uint32, outcome string, start time.Time) {
	elapsed := time.Since(start)

	vmetrics.GetOrCreateCounter(fmt.Sprintf(`drpc_transactions_total{node="%d",outcome=%q}`, m.nodeID, outcome)).Inc()
	m.duration.Update(elapsed.Seconds())

	gometrics.GetOrRegisterTimer(fmt.Sprintf("node.%d.latency", node), m.registry).Update(elapsed)
	switch outcome {
	case outcomeTimeout:
		gometrics.GetOrRegisterCounter(fmt.Sprintf("node.%d.timeouts", node), m.registry).Inc(1)
	case outcomeException, outcomeFailure:
		gometrics.GetOrRegisterCounter(fmt.Sprintf("node.%d.failures", node), m.registry).Inc(1)
	}
}

// unresolvable records a call to a node without directory entry
func (m *pluginMetrics) unresolvable(node uint32) {
	vmetrics.GetOrCreateCounter(fmt.Sprintf(`drpc_transactions_total{node="%d",outcome=%q}`, m.nodeID, outcomeFailure)).Inc()
	gometrics.GetOrRegisterCounter(fmt.Sprintf("node.%d.failures", node), m.registry).Inc(1)
}

func (m *pluginMetrics) stats(node uint32) NodeStats {
	timer := gometrics.GetOrRegisterTimer(fmt.Sprintf("node.%d.latency", node), m.registry).Snapshot()
	return NodeStats{
		Calls:    timer.Count(),
		Failures: gometrics.GetOrRegisterCounter(fmt.Sprintf("node.%d.failures", node), m.registry).Count(),
		Timeouts: gometrics.GetOrRegisterCounter(fmt.Sprintf("node.%d.timeouts", node), m.registry).Count(),
		Mean:     time.Duration(timer.Mean()),
		P99:      time.Duration(timer.Percentile(0.99)),
	}
}

// nodes returns every remote node that has statistics
func (m *pluginMetrics) nodes() []uint32 {
	seen := map[uint32]struct{}{}
	m.registry.Each(func(name string, _ interface{}) {
		var node uint32
		var kind string
		if _, err := fmt.Sscanf(name, "node.%d.%s", &node, &kind); err == nil {
			seen[node] = struct{}{}
		}
	})
	nodes := make([]uint32, 0, len(seen))
	for node := range seen {
		nodes = append(nodes, node)
	}
	return nodes
}

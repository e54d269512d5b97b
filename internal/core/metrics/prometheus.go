package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-edgeproxy/pkg/types"
)

// Prometheus 基于 client_golang 的 Reporter 实现
//
// 同时更新内嵌的 BandwidthCounter，保证 Proxy.Stats 与导出指标一致。
type Prometheus struct {
	*BandwidthCounter

	connections    prometheus.Gauge
	closed         *prometheus.CounterVec
	ingressPackets prometheus.Counter
	ingressBytes   prometheus.Counter
	egressPackets  prometheus.Counter
	egressBytes    prometheus.Counter

	commands      *prometheus.CounterVec
	enqueued      *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	evicted       prometheus.Counter
	resolveMisses *prometheus.CounterVec

	rebuildSeconds  prometheus.Histogram
	rebuildFailures prometheus.Counter
	snapshotSize    prometheus.Gauge

	unknownKinds *prometheus.CounterVec
	linkBytes    *prometheus.CounterVec
}

// NewPrometheus 创建 Prometheus Reporter 并注册到 reg
//
// bw 为 nil 时内部创建新的 BandwidthCounter。
func NewPrometheus(namespace string, reg prometheus.Registerer, bw *BandwidthCounter) *Prometheus {
	if bw == nil {
		bw = NewBandwidthCounter()
	}
	counter := func(sub, name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub, Name: name, Help: help,
		})
	}
	counterVec := func(sub, name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: sub, Name: name, Help: help,
		}, labels)
	}

	p := &Prometheus{
		BandwidthCounter: bw,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "registry", Name: "connections",
			Help: "Currently registered player connections.",
		}),
		closed:         counterVec("registry", "connections_closed_total", "Player connections removed, by reason.", "reason"),
		ingressPackets: counter("ingress", "packets_total", "Player packets forwarded upstream."),
		ingressBytes:   counter("ingress", "bytes_total", "Player payload bytes forwarded upstream."),
		egressPackets:  counter("egress", "packets_total", "Packets written to player sockets."),
		egressBytes:    counter("egress", "bytes_total", "Bytes written to player sockets."),
		commands:       counterVec("dispatch", "commands_total", "Broadcast commands dispatched, by mode.", "mode"),
		enqueued:       counterVec("dispatch", "enqueued_total", "Payloads enqueued to connections, by mode.", "mode"),
		dropped:        counterVec("dispatch", "dropped_total", "Payloads dropped on full queues, by mode.", "mode"),
		evicted:        counter("dispatch", "evicted_total", "Connections evicted as slow consumers."),
		resolveMisses:  counterVec("dispatch", "resolution_misses_total", "Commands whose target set resolved empty, by mode.", "mode"),
		rebuildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "spatial", Name: "rebuild_seconds",
			Help:    "Spatial index rebuild duration.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		rebuildFailures: counter("spatial", "rebuild_failures_total", "Rebuilds that kept the previous snapshot."),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "spatial", Name: "snapshot_points",
			Help: "Points in the current spatial snapshot.",
		}),
		unknownKinds: counterVec("controllink", "unknown_envelopes_total", "Envelopes with an unknown kind, skipped.", "kind"),
		linkBytes:    counterVec("controllink", "bytes_total", "Control link traffic in bytes.", "direction"),
	}

	reg.MustRegister(
		p.connections, p.closed,
		p.ingressPackets, p.ingressBytes,
		p.egressPackets, p.egressBytes,
		p.commands, p.enqueued, p.dropped, p.evicted, p.resolveMisses,
		p.rebuildSeconds, p.rebuildFailures, p.snapshotSize,
		p.unknownKinds, p.linkBytes,
	)
	return p
}

// ConnectionOpened 实现 Reporter
func (p *Prometheus) ConnectionOpened() {
	p.BandwidthCounter.ConnectionOpened()
	p.connections.Inc()
}

// ConnectionClosed 实现 Reporter
func (p *Prometheus) ConnectionClosed(reason string) {
	p.BandwidthCounter.ConnectionClosed(reason)
	p.connections.Dec()
	p.closed.WithLabelValues(reason).Inc()
}

// IngressPacket 实现 Reporter
func (p *Prometheus) IngressPacket(size int) {
	p.BandwidthCounter.IngressPacket(size)
	p.ingressPackets.Inc()
	p.ingressBytes.Add(float64(size))
}

// EgressBatch 实现 Reporter
func (p *Prometheus) EgressBatch(packets, bytes int) {
	p.BandwidthCounter.EgressBatch(packets, bytes)
	p.egressPackets.Add(float64(packets))
	p.egressBytes.Add(float64(bytes))
}

// BroadcastDispatched 实现 Reporter
func (p *Prometheus) BroadcastDispatched(mode types.Mode, targets, enqueued, dropped, evicted int) {
	p.BandwidthCounter.BroadcastDispatched(mode, targets, enqueued, dropped, evicted)
	m := mode.String()
	p.commands.WithLabelValues(m).Inc()
	if enqueued > 0 {
		p.enqueued.WithLabelValues(m).Add(float64(enqueued))
	}
	if dropped > 0 {
		p.dropped.WithLabelValues(m).Add(float64(dropped))
	}
	if evicted > 0 {
		p.evicted.Add(float64(evicted))
	}
}

// ResolutionMiss 实现 Reporter
func (p *Prometheus) ResolutionMiss(mode types.Mode) {
	p.resolveMisses.WithLabelValues(mode.String()).Inc()
}

// SpatialRebuild 实现 Reporter
func (p *Prometheus) SpatialRebuild(d time.Duration, size int, err error) {
	p.BandwidthCounter.SpatialRebuild(d, size, err)
	p.rebuildSeconds.Observe(d.Seconds())
	if err != nil {
		p.rebuildFailures.Inc()
		return
	}
	p.snapshotSize.Set(float64(size))
}

// UnknownEnvelope 实现 Reporter
func (p *Prometheus) UnknownEnvelope(kind uint8) {
	p.unknownKinds.WithLabelValues(strconv.Itoa(int(kind))).Inc()
}

// LinkTraffic 实现 Reporter
func (p *Prometheus) LinkTraffic(sent, received int) {
	p.BandwidthCounter.LinkTraffic(sent, received)
	if sent > 0 {
		p.linkBytes.WithLabelValues("sent").Add(float64(sent))
	}
	if received > 0 {
		p.linkBytes.WithLabelValues("received").Add(float64(received))
	}
}

// Package metrics publishes protocol and channel counters in Prometheus
// exposition format. Collectors hold no state of their own, every scrape
// reads a fresh snapshot from the stats source.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	sarq "github.com/nicosta1132/sarq-go"
)

const namespace = "sarq"

// ProtocolStats supplies endpoint counters to a ProtocolCollector.
// Implementations must be safe for concurrent use.
type ProtocolStats interface {
	SenderStats() sarq.SenderStats
	ReceiverStats() sarq.ReceiverStats
}

// ChannelStats aggregates what the channel did to the traffic of a run.
type ChannelStats struct {
	Generated     int
	Accepted      int
	Refused       int
	LostData      int
	LostAcks      int
	CorruptedData int
	CorruptedAcks int
}

// HarnessStats supplies channel counters and trial progress to a
// HarnessCollector. Implementations must be safe for concurrent use.
type HarnessStats interface {
	ChannelStats() ChannelStats
	TrialsCompleted() int
	TrialsPlanned() int
	SimTime() float64
	TimerWarnings() int
}

// ProtocolCollector exports the sender and receiver counters.
type ProtocolCollector struct {
	stats ProtocolStats

	submittedDesc     *prometheus.Desc
	windowFullDesc    *prometheus.Desc
	acksReceivedDesc  *prometheus.Desc
	acksNewDesc       *prometheus.Desc
	resentDesc        *prometheus.Desc
	acksCorruptedDesc *prometheus.Desc

	receivedDesc      *prometheus.Desc
	deliveredDesc     *prometheus.Desc
	bufferedDesc      *prometheus.Desc
	duplicatesDesc    *prometheus.Desc
	dataCorruptedDesc *prometheus.Desc
	acksSentDesc      *prometheus.Desc
}

// NewProtocolCollector builds a collector reading from the given source.
func NewProtocolCollector(stats ProtocolStats) *ProtocolCollector {
	return &ProtocolCollector{
		stats: stats,

		submittedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sender", "messages_submitted_total"),
			"Messages accepted into the send window",
			nil, nil,
		),
		windowFullDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sender", "window_full_total"),
			"Messages refused because the send window was full",
			nil, nil,
		),
		acksReceivedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sender", "acks_received_total"),
			"Uncorrupted acknowledgments processed, duplicates included",
			nil, nil,
		),
		acksNewDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sender", "acks_new_total"),
			"Acknowledgments that marked a packet for the first time",
			nil, nil,
		),
		resentDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sender", "retransmissions_total"),
			"Packets retransmitted after a timeout",
			nil, nil,
		),
		acksCorruptedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sender", "acks_corrupted_total"),
			"Acknowledgments dropped by checksum",
			nil, nil,
		),

		receivedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "receiver", "packets_received_total"),
			"Uncorrupted data packets processed, duplicates included",
			nil, nil,
		),
		deliveredDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "receiver", "messages_delivered_total"),
			"Payloads handed to the application in order",
			nil, nil,
		),
		bufferedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "receiver", "packets_buffered_total"),
			"Packets held back for reordering",
			nil, nil,
		),
		duplicatesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "receiver", "packets_duplicate_total"),
			"Packets acknowledged again without delivery",
			nil, nil,
		),
		dataCorruptedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "receiver", "packets_corrupted_total"),
			"Data packets dropped by checksum",
			nil, nil,
		),
		acksSentDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "receiver", "acks_sent_total"),
			"Acknowledgments transmitted",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *ProtocolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.submittedDesc
	ch <- c.windowFullDesc
	ch <- c.acksReceivedDesc
	ch <- c.acksNewDesc
	ch <- c.resentDesc
	ch <- c.acksCorruptedDesc

	ch <- c.receivedDesc
	ch <- c.deliveredDesc
	ch <- c.bufferedDesc
	ch <- c.duplicatesDesc
	ch <- c.dataCorruptedDesc
	ch <- c.acksSentDesc
}

// Collect implements prometheus.Collector.
func (c *ProtocolCollector) Collect(ch chan<- prometheus.Metric) {
	snd := c.stats.SenderStats()
	rcv := c.stats.ReceiverStats()

	ch <- prometheus.MustNewConstMetric(c.submittedDesc, prometheus.CounterValue, float64(snd.Submitted))
	ch <- prometheus.MustNewConstMetric(c.windowFullDesc, prometheus.CounterValue, float64(snd.WindowFull))
	ch <- prometheus.MustNewConstMetric(c.acksReceivedDesc, prometheus.CounterValue, float64(snd.AcksReceived))
	ch <- prometheus.MustNewConstMetric(c.acksNewDesc, prometheus.CounterValue, float64(snd.NewAcks))
	ch <- prometheus.MustNewConstMetric(c.resentDesc, prometheus.CounterValue, float64(snd.Resent))
	ch <- prometheus.MustNewConstMetric(c.acksCorruptedDesc, prometheus.CounterValue, float64(snd.CorruptedAcks))

	ch <- prometheus.MustNewConstMetric(c.receivedDesc, prometheus.CounterValue, float64(rcv.Received))
	ch <- prometheus.MustNewConstMetric(c.deliveredDesc, prometheus.CounterValue, float64(rcv.Delivered))
	ch <- prometheus.MustNewConstMetric(c.bufferedDesc, prometheus.CounterValue, float64(rcv.Buffered))
	ch <- prometheus.MustNewConstMetric(c.duplicatesDesc, prometheus.CounterValue, float64(rcv.Duplicates))
	ch <- prometheus.MustNewConstMetric(c.dataCorruptedDesc, prometheus.CounterValue, float64(rcv.CorruptedData))
	ch <- prometheus.MustNewConstMetric(c.acksSentDesc, prometheus.CounterValue, float64(rcv.AcksSent))
}

// HarnessCollector exports channel counters and trial progress.
type HarnessCollector struct {
	stats HarnessStats

	generatedDesc *prometheus.Desc
	acceptedDesc  *prometheus.Desc
	refusedDesc   *prometheus.Desc
	lostDesc      *prometheus.Desc
	corruptedDesc *prometheus.Desc

	trialsCompletedDesc *prometheus.Desc
	trialsPlannedDesc   *prometheus.Desc
	simTimeDesc         *prometheus.Desc
	timerWarningsDesc   *prometheus.Desc
}

// NewHarnessCollector builds a collector reading from the given source.
func NewHarnessCollector(stats HarnessStats) *HarnessCollector {
	return &HarnessCollector{
		stats: stats,

		generatedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "messages_generated_total"),
			"Messages produced by the traffic generator",
			nil, nil,
		),
		acceptedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "messages_accepted_total"),
			"Generated messages the sender accepted",
			nil, nil,
		),
		refusedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "messages_refused_total"),
			"Generated messages the sender refused",
			nil, nil,
		),
		lostDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "packets_lost_total"),
			"Packets dropped in transit",
			[]string{"kind"}, nil,
		),
		corruptedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "packets_corrupted_total"),
			"Packets mangled in transit",
			[]string{"kind"}, nil,
		),

		trialsCompletedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "harness", "trials_completed"),
			"Trials finished so far",
			nil, nil,
		),
		trialsPlannedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "harness", "trials_planned"),
			"Trials the run was configured for",
			nil, nil,
		),
		simTimeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "harness", "sim_time_units_total"),
			"Simulated time units accumulated across trials",
			nil, nil,
		),
		timerWarningsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "harness", "timer_warnings_total"),
			"Timer starts that found the timer already armed",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *HarnessCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.generatedDesc
	ch <- c.acceptedDesc
	ch <- c.refusedDesc
	ch <- c.lostDesc
	ch <- c.corruptedDesc

	ch <- c.trialsCompletedDesc
	ch <- c.trialsPlannedDesc
	ch <- c.simTimeDesc
	ch <- c.timerWarningsDesc
}

// Collect implements prometheus.Collector.
func (c *HarnessCollector) Collect(ch chan<- prometheus.Metric) {
	cs := c.stats.ChannelStats()

	ch <- prometheus.MustNewConstMetric(c.generatedDesc, prometheus.CounterValue, float64(cs.Generated))
	ch <- prometheus.MustNewConstMetric(c.acceptedDesc, prometheus.CounterValue, float64(cs.Accepted))
	ch <- prometheus.MustNewConstMetric(c.refusedDesc, prometheus.CounterValue, float64(cs.Refused))
	ch <- prometheus.MustNewConstMetric(c.lostDesc, prometheus.CounterValue, float64(cs.LostData), "data")
	ch <- prometheus.MustNewConstMetric(c.lostDesc, prometheus.CounterValue, float64(cs.LostAcks), "ack")
	ch <- prometheus.MustNewConstMetric(c.corruptedDesc, prometheus.CounterValue, float64(cs.CorruptedData), "data")
	ch <- prometheus.MustNewConstMetric(c.corruptedDesc, prometheus.CounterValue, float64(cs.CorruptedAcks), "ack")

	ch <- prometheus.MustNewConstMetric(c.trialsCompletedDesc, prometheus.GaugeValue, float64(c.stats.TrialsCompleted()))
	ch <- prometheus.MustNewConstMetric(c.trialsPlannedDesc, prometheus.GaugeValue, float64(c.stats.TrialsPlanned()))
	ch <- prometheus.MustNewConstMetric(c.simTimeDesc, prometheus.CounterValue, c.stats.SimTime())
	ch <- prometheus.MustNewConstMetric(c.timerWarningsDesc, prometheus.CounterValue, float64(c.stats.TimerWarnings()))
}

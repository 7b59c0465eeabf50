package mayus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Snmp defines network and exchange statistics indicators.
type Snmp struct {
	InPkts          atomic.Uint64 // 收到的数据报
	OutPkts         atomic.Uint64 // 发出的数据报
	InBytes         atomic.Uint64
	OutBytes        atomic.Uint64
	DroppedPkts     atomic.Uint64 // 无法解析或被限速丢弃的数据报
	SessionsOpened  atomic.Uint64
	SessionsClosed  atomic.Uint64 // 收到终止数据报
	SessionsExpired atomic.Uint64 // 空闲超时
	LinesFolded     atomic.Uint64
	DecodeErrors    atomic.Uint64
	CountChanged    atomic.Uint64
	Retransmits     atomic.Uint64 // 客户端重传 / 服务端按缓存重发
	CurrSessions    atomic.Int64
}

func newSnmp() *Snmp {
	return new(Snmp)
}

// Header returns all field names
func (s *Snmp) Header() []string {
	return []string{
		"InPkts",
		"OutPkts",
		"InBytes",
		"OutBytes",
		"DroppedPkts",
		"SessionsOpened",
		"SessionsClosed",
		"SessionsExpired",
		"LinesFolded",
		"DecodeErrors",
		"CountChanged",
		"Retransmits",
		"CurrSessions",
	}
}

// ToSlice returns current snmp info as slice
func (s *Snmp) ToSlice() []string {
	snmp := s.Copy()
	return []string{
		fmt.Sprint(snmp.InPkts.Load()),
		fmt.Sprint(snmp.OutPkts.Load()),
		fmt.Sprint(snmp.InBytes.Load()),
		fmt.Sprint(snmp.OutBytes.Load()),
		fmt.Sprint(snmp.DroppedPkts.Load()),
		fmt.Sprint(snmp.SessionsOpened.Load()),
		fmt.Sprint(snmp.SessionsClosed.Load()),
		fmt.Sprint(snmp.SessionsExpired.Load()),
		fmt.Sprint(snmp.LinesFolded.Load()),
		fmt.Sprint(snmp.DecodeErrors.Load()),
		fmt.Sprint(snmp.CountChanged.Load()),
		fmt.Sprint(snmp.Retransmits.Load()),
		fmt.Sprint(snmp.CurrSessions.Load()),
	}
}

// Copy make a copy of current snmp snapshot
func (s *Snmp) Copy() *Snmp {
	d := newSnmp()
	d.InPkts.Store(s.InPkts.Load())
	d.OutPkts.Store(s.OutPkts.Load())
	d.InBytes.Store(s.InBytes.Load())
	d.OutBytes.Store(s.OutBytes.Load())
	d.DroppedPkts.Store(s.DroppedPkts.Load())
	d.SessionsOpened.Store(s.SessionsOpened.Load())
	d.SessionsClosed.Store(s.SessionsClosed.Load())
	d.SessionsExpired.Store(s.SessionsExpired.Load())
	d.LinesFolded.Store(s.LinesFolded.Load())
	d.DecodeErrors.Store(s.DecodeErrors.Load())
	d.CountChanged.Store(s.CountChanged.Load())
	d.Retransmits.Store(s.Retransmits.Load())
	d.CurrSessions.Store(s.CurrSessions.Load())
	return d
}

// Reset values to zero
func (s *Snmp) Reset() {
	s.InPkts.Store(0)
	s.OutPkts.Store(0)
	s.InBytes.Store(0)
	s.OutBytes.Store(0)
	s.DroppedPkts.Store(0)
	s.SessionsOpened.Store(0)
	s.SessionsClosed.Store(0)
	s.SessionsExpired.Store(0)
	s.LinesFolded.Store(0)
	s.DecodeErrors.Store(0)
	s.CountChanged.Store(0)
	s.Retransmits.Store(0)
	s.CurrSessions.Store(0)
}

// DefaultSnmp is the global exchange statistics.
var DefaultSnmp = newSnmp()

const metricNS = "mayus"

// snmpCollector exports a Snmp as prometheus metrics.
type snmpCollector struct {
	snmp  *Snmp
	descs []*prometheus.Desc
}

// NewSnmpCollector returns a prometheus.Collector reading s. A nil s means
// DefaultSnmp.
func NewSnmpCollector(s *Snmp) prometheus.Collector {
	if s == nil {
		s = DefaultSnmp
	}
	c := &snmpCollector{snmp: s}
	for _, name := range s.Header() {
		c.descs = append(c.descs, prometheus.NewDesc(
			prometheus.BuildFQName(metricNS, "snmp", name),
			"mayus exchange counter "+name,
			nil, nil,
		))
	}
	return c
}

func (c *snmpCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *snmpCollector) Collect(ch chan<- prometheus.Metric) {
	snmp := c.snmp.Copy()
	values := []uint64{
		snmp.InPkts.Load(),
		snmp.OutPkts.Load(),
		snmp.InBytes.Load(),
		snmp.OutBytes.Load(),
		snmp.DroppedPkts.Load(),
		snmp.SessionsOpened.Load(),
		snmp.SessionsClosed.Load(),
		snmp.SessionsExpired.Load(),
		snmp.LinesFolded.Load(),
		snmp.DecodeErrors.Load(),
		snmp.CountChanged.Load(),
		snmp.Retransmits.Load(),
	}
	for i, v := range values {
		ch <- prometheus.MustNewConstMetric(c.descs[i], prometheus.CounterValue, float64(v))
	}
	ch <- prometheus.MustNewConstMetric(c.descs[len(values)], prometheus.GaugeValue, float64(snmp.CurrSessions.Load()))
}

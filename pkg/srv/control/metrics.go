/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package control

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jinr.ru/greenlab/go-cyton/pkg/cyton"
)

const metricsNamespace = "cyton"

type Metrics struct {
	registry  *prometheus.Registry
	samples   prometheus.Counter
	dropped   prometheus.Counter
	errors    prometheus.Counter
	syncs     *prometheus.CounterVec
	offset    prometheus.Gauge
	impedance *prometheus.GaugeVec
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// NewMetrics creates the collectors of one board on a private registry
func NewMetrics(board *cyton.Board) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "samples_total",
			Help:      "Samples decoded from the board.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_packets_total",
			Help:      "Sample numbers missing from the stream.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Transport and protocol errors.",
		}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "syncs_total",
			Help:      "Clock sync rounds by result.",
		}, []string{"valid"}),
		offset: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "time_offset_master_milliseconds",
			Help:      "Current estimate of the board to host clock offset.",
		}),
		impedance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "impedance_ohms",
			Help:      "Last impedance measured per channel.",
		}, []string{"channel"}),
	}
	m.registry.MustRegister(m.samples, m.dropped, m.errors, m.syncs, m.offset, m.impedance,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "bad_packets",
			Help:      "Noise bytes skipped while looking for frames on the current connection.",
		}, func() float64 { return float64(board.BadPackets()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "daisy_missed_packets",
			Help:      "Daisy halves that could not be paired.",
		}, func() float64 { return float64(board.Info().MissedPackets) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connected",
			Help:      "Whether the board is connected.",
		}, func() float64 { return boolToFloat(board.IsConnected()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "streaming",
			Help:      "Whether the board is streaming.",
		}, func() float64 { return boolToFloat(board.IsStreaming()) }),
	)
	return m
}

// Observe updates the collectors from one notification
func (m *Metrics) Observe(n cyton.Notification) {
	switch n.Type {
	case cyton.EventSample:
		m.samples.Inc()
	case cyton.EventDroppedPacket:
		m.dropped.Add(float64(len(n.Dropped)))
	case cyton.EventSynced:
		m.syncs.WithLabelValues(strconv.FormatBool(n.Sync.Valid)).Inc()
		if n.Sync.Valid {
			m.offset.Set(float64(n.Sync.TimeOffsetMaster))
		}
	case cyton.EventImpedance:
		m.impedance.WithLabelValues(strconv.Itoa(n.Impedance.Channel)).Set(float64(n.Impedance.Ohms))
	case cyton.EventError:
		m.errors.Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

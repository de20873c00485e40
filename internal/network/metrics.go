package network

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - метрики сетевой подсистемы. Нулевой указатель допустим.
type Metrics struct {
	connections  *prometheus.GaugeVec
	accepted     *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	messagesIn   *prometheus.CounterVec
	messagesOut  *prometheus.CounterVec
	bytesOut     *prometheus.CounterVec
	droppedSends *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg (nil - глобальный регистр)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lumoria",
			Subsystem: "net",
			Name:      "connections_active",
			Help:      "Активные соединения по транспорту.",
		}, []string{"transport"}),
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumoria",
			Subsystem: "net",
			Name:      "sessions_joined_total",
			Help:      "Сессии, успешно вошедшие в комнату.",
		}, []string{"transport"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumoria",
			Subsystem: "net",
			Name:      "handshakes_rejected_total",
			Help:      "Отклонённые рукопожатия по причине.",
		}, []string{"transport", "reason"}),
		messagesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumoria",
			Subsystem: "net",
			Name:      "messages_received_total",
			Help:      "Входящие сообщения.",
		}, []string{"transport"}),
		messagesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumoria",
			Subsystem: "net",
			Name:      "messages_sent_total",
			Help:      "Отправленные сообщения.",
		}, []string{"transport"}),
		bytesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumoria",
			Subsystem: "net",
			Name:      "bytes_sent_total",
			Help:      "Отправленные байты (до кадрирования).",
		}, []string{"transport"}),
		droppedSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumoria",
			Subsystem: "net",
			Name:      "outbox_dropped_total",
			Help:      "Сообщения, отброшенные из-за переполненной очереди сессии.",
		}, []string{"transport"}),
	}
	reg.MustRegister(m.connections, m.accepted, m.rejected, m.messagesIn, m.messagesOut, m.bytesOut, m.droppedSends)
	return m
}

func (m *Metrics) Opened(t Transport) {
	if m != nil {
		m.connections.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) Closed(t Transport) {
	if m != nil {
		m.connections.WithLabelValues(string(t)).Dec()
	}
}

func (m *Metrics) Joined(t Transport) {
	if m != nil {
		m.accepted.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) Rejected(t Transport, reason string) {
	if m != nil {
		m.rejected.WithLabelValues(string(t), reason).Inc()
	}
}

func (m *Metrics) Received(t Transport) {
	if m != nil {
		m.messagesIn.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) Sent(t Transport, size int) {
	if m != nil {
		m.messagesOut.WithLabelValues(string(t)).Inc()
		m.bytesOut.WithLabelValues(string(t)).Add(float64(size))
	}
}

func (m *Metrics) Dropped(t Transport) {
	if m != nil {
		m.droppedSends.WithLabelValues(string(t)).Inc()
	}
}

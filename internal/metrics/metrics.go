package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标；nil 接收者上的方法均为空操作
type AppMetrics struct {
	TransactionsTotal   *prometheus.CounterVec   // labels: type, result=ok|invalid_response|rejected|error
	RetriesTotal        *prometheus.CounterVec   // labels: type
	TransactionDuration *prometheus.HistogramVec // labels: type
	SafetyRunsTotal     *prometheus.CounterVec   // labels: result=off|reconnected|failed|skipped
	ReconnectsTotal     prometheus.Counter
	SamplesTotal        *prometheus.CounterVec // labels: result=ok|error|breaker_open
	LoadEnabled         prometheus.Gauge
	VoltageVolts        prometheus.Gauge
	CurrentAmps         prometheus.Gauge
	TemperatureCelsius  prometheus.Gauge
	BridgeConnsTotal    *prometheus.CounterVec // labels: result=accepted|rejected
	BridgeBytesTotal    *prometheus.CounterVec // labels: direction=rx|tx
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		TransactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eload_transactions_total",
			Help: "Protocol transactions by request type and result.",
		}, []string{"type", "result"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eload_transaction_retries_total",
			Help: "Transaction retries after an invalid response.",
		}, []string{"type"}),
		TransactionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eload_transaction_duration_seconds",
			Help:    "Transaction latency including retries and pacing.",
			Buckets: []float64{.01, .025, .05, .1, .2, .5, 1, 2, 5},
		}, []string{"type"}),
		SafetyRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eload_safety_runs_total",
			Help: "Ensure-load-off procedure outcomes.",
		}, []string{"result"}),
		ReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eload_reconnects_total",
			Help: "Forced channel reconnects.",
		}),
		SamplesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eload_samples_total",
			Help: "Telemetry samples by result.",
		}, []string{"result"}),
		LoadEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eload_load_enabled",
			Help: "1 when the load input is enabled.",
		}),
		VoltageVolts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eload_voltage_volts",
			Help: "Last sampled input voltage.",
		}),
		CurrentAmps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eload_current_amps",
			Help: "Last sampled load current.",
		}),
		TemperatureCelsius: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eload_mosfet_temperature_celsius",
			Help: "Last sampled MOSFET temperature.",
		}),
		BridgeConnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eload_bridge_connections_total",
			Help: "TCP bridge client connections by result.",
		}, []string{"result"}),
		BridgeBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eload_bridge_bytes_total",
			Help: "Bytes relayed by the TCP bridge.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.TransactionsTotal, m.RetriesTotal, m.TransactionDuration, m.SafetyRunsTotal,
		m.ReconnectsTotal, m.SamplesTotal, m.LoadEnabled, m.VoltageVolts, m.CurrentAmps, m.TemperatureCelsius,
		m.BridgeConnsTotal, m.BridgeBytesTotal)
	return m
}

// ObserveTransaction 记录一次事务
func (m *AppMetrics) ObserveTransaction(typ, result string, seconds float64) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues(typ, result).Inc()
	m.TransactionDuration.WithLabelValues(typ).Observe(seconds)
}

// IncRetry 记录一次重试
func (m *AppMetrics) IncRetry(typ string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(typ).Inc()
}

// IncSafety 记录安全关断结果
func (m *AppMetrics) IncSafety(result string) {
	if m == nil {
		return
	}
	m.SafetyRunsTotal.WithLabelValues(result).Inc()
}

// IncReconnect 记录强制重连
func (m *AppMetrics) IncReconnect() {
	if m == nil {
		return
	}
	m.ReconnectsTotal.Inc()
}

// IncSample 记录采样结果
func (m *AppMetrics) IncSample(result string) {
	if m == nil {
		return
	}
	m.SamplesTotal.WithLabelValues(result).Inc()
}

// SetReadings 更新最新读数
func (m *AppMetrics) SetReadings(enabled bool, volts, amps, celsius float64) {
	if m == nil {
		return
	}
	if enabled {
		m.LoadEnabled.Set(1)
	} else {
		m.LoadEnabled.Set(0)
	}
	m.VoltageVolts.Set(volts)
	m.CurrentAmps.Set(amps)
	m.TemperatureCelsius.Set(celsius)
}

// IncBridgeConn 记录网桥连接结果
func (m *AppMetrics) IncBridgeConn(result string) {
	if m == nil {
		return
	}
	m.BridgeConnsTotal.WithLabelValues(result).Inc()
}

// AddBridgeBytes 记录网桥转发字节数
func (m *AppMetrics) AddBridgeBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BridgeBytesTotal.WithLabelValues(direction).Add(float64(n))
}

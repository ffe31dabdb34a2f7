package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAppMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.ObserveTransaction("voltage", "ok", 0.12)
	m.ObserveTransaction("voltage", "ok", 0.10)
	m.IncRetry("voltage")
	m.IncSafety("off")
	m.IncReconnect()
	m.SetReadings(true, 12.5, 1.2, 31)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("voltage", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetriesTotal.WithLabelValues("voltage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconnectsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadEnabled))
	assert.Equal(t, 12.5, testutil.ToFloat64(m.VoltageVolts))
}

func TestNilAppMetrics(t *testing.T) {
	var m *AppMetrics
	assert.NotPanics(t, func() {
		m.ObserveTransaction("x", "ok", 1)
		m.IncRetry("x")
		m.IncSafety("failed")
		m.IncReconnect()
		m.IncSample("ok")
		m.SetReadings(false, 0, 0, 0)
		m.IncBridgeConn("accepted")
		m.AddBridgeBytes("rx", 6)
	})
}

func TestBridgeMetrics(t *testing.T) {
	m := NewAppMetrics(NewRegistry())
	m.IncBridgeConn("rejected")
	m.AddBridgeBytes("tx", 7)
	m.AddBridgeBytes("tx", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgeConnsTotal.WithLabelValues("rejected")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.BridgeBytesTotal.WithLabelValues("tx")))
}

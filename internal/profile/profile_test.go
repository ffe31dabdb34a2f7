package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
name: 18650-capacity
pollInterval: 500ms
steps:
  - name: precondition
    current: 0.5
    cutoffVoltage: 3.2
    hold: 2m
  - name: discharge
    current: 1.0
    cutoffVoltage: 2.8
    timer: 3h
    hold: 4h
    resetCounters: true
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "18650-capacity", p.Name)
	assert.Equal(t, 500*time.Millisecond, p.PollInterval)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, 2*time.Minute, p.Steps[0].Hold)
	assert.Equal(t, 3*time.Hour, p.Steps[1].Timer)
	assert.True(t, p.Steps[1].ResetCounters)
}

func TestParseDefaultsPollInterval(t *testing.T) {
	p, err := Parse([]byte("name: x\nsteps:\n  - {name: a, current: 1, hold: 1s}\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Second, p.PollInterval)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"缺少名称":   "steps:\n  - {current: 1, hold: 1s}\n",
		"没有步骤":   "name: x\n",
		"电流为零":   "name: x\nsteps:\n  - {current: 0, hold: 1s}\n",
		"电流超出范围": "name: x\nsteps:\n  - {current: 300, hold: 1s}\n",
		"定时超出范围": "name: x\nsteps:\n  - {current: 1, timer: 20h, hold: 1s}\n",
		"保持时间为零": "name: x\nsteps:\n  - {current: 1}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, p.Steps, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

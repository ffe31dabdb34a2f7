package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/eload/internal/protocol/eload"
	"github.com/taoyao-code/eload/internal/transport"
)

func exchange(t *testing.T, l *Load, req eload.Request) []byte {
	t.Helper()
	frame := eload.Encode(req)
	require.NoError(t, l.Write(context.Background(), frame[:]))
	b, err := l.ReadExact(context.Background(), req.ExpectedLen)
	require.NoError(t, err)
	return b
}

func TestLoadAnswersProtocol(t *testing.T) {
	l := New()
	require.NoError(t, l.Open())

	cmd, _ := eload.NewCommand(eload.SetCurrent, eload.EncodeFixedPoint(1.5))
	assert.Equal(t, []byte{eload.AckSuccess}, exchange(t, l, cmd))

	q, _ := eload.NewQuery(eload.CurrentSetting)
	resp, err := eload.Classify(q.Type, exchange(t, l, q))
	require.NoError(t, err)
	assert.Equal(t, uint32(150), resp.Value.Integer())

	assert.Equal(t, 1, l.Commands(eload.SetCurrent))
	assert.Equal(t, 1, l.Queries(eload.CurrentSetting))
}

func TestLoadChatterIsVisibleBeforeResponse(t *testing.T) {
	l := New()
	require.NoError(t, l.Open())
	l.SetChatter([]byte{0xAA, 0xBB})

	q, _ := eload.NewQuery(eload.LoadEnabled)
	frame := eload.Encode(q)
	require.NoError(t, l.Write(context.Background(), frame[:]))

	n, err := l.BytesAvailable()
	require.NoError(t, err)
	assert.Equal(t, 2+eload.QueryReplyLen, n)
}

func TestLoadCorruptAndStuck(t *testing.T) {
	l := New()
	require.NoError(t, l.Open())
	l.CorruptNext(1)

	q, _ := eload.NewQuery(eload.LoadEnabled)
	_, err := eload.Classify(q.Type, exchange(t, l, q))
	assert.ErrorIs(t, err, eload.ErrInvalidResponse)
	_, err = eload.Classify(q.Type, exchange(t, l, q))
	assert.NoError(t, err)

	l.SetEnabled(true)
	l.SetStuck(true)
	off, _ := eload.NewCommand(eload.ToggleLoad, eload.EncodeBool(false))
	assert.Equal(t, []byte{eload.AckSuccess}, exchange(t, l, off))
	assert.True(t, l.Enabled())
}

func TestLoadTimerProtection(t *testing.T) {
	now := time.Unix(0, 0)
	l := New()
	l.SetClock(func() time.Time { return now })
	require.NoError(t, l.Open())

	timer, _ := eload.NewCommand(eload.SetTimeout, eload.EncodeDuration(10*time.Second))
	exchange(t, l, timer)
	cur, _ := eload.NewCommand(eload.SetCurrent, eload.EncodeFixedPoint(1))
	exchange(t, l, cur)
	on, _ := eload.NewCommand(eload.ToggleLoad, eload.EncodeBool(true))
	exchange(t, l, on)
	assert.True(t, l.Enabled())

	now = now.Add(11 * time.Second)
	assert.False(t, l.Enabled())
}

func TestLoadClosed(t *testing.T) {
	l := New()
	_, err := l.BytesAvailable()
	assert.ErrorIs(t, err, transport.ErrClosed)

	l.FailOpen(1)
	assert.Error(t, l.Open())
	assert.NoError(t, l.Open())
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
	assert.Equal(t, 1, l.Closes())
}

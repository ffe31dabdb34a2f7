// Package simulator 提供内存中的电子负载模拟器，实现 transport.Channel，
// 用于单元测试与无硬件时的联调（app.simulate=true）。
package simulator

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/taoyao-code/eload/internal/protocol/eload"
	"github.com/taoyao-code/eload/internal/transport"
)

// 电池模型参数
const (
	fullVoltageMV   = 12600
	mvPerMilliAmpH  = 1  // 每放出 1mAh 电压下降 1mV
	internalMilliOh = 50 // 内阻 50mΩ
	ambientTempC    = 25
)

// Load 模拟负载
type Load struct {
	mu  sync.Mutex
	now func() time.Time

	open       bool
	in         []byte // 可读字节
	pending    []byte // 设备尚未“发出”的应答，下次读取时可见
	chatter    []byte // 每次写入前注入的周期性上报
	corrupt    int    // 接下来 N 次应答破坏帧标记
	reject     byte   // 非零时下一次命令应答该错误码
	stuck      bool   // 关断命令被确认但负载保持开启
	stuckOpen  bool   // stuck 在下一次重新打开时解除
	failOpen   int
	unresponse int // 接下来 N 个请求不应答

	enabled     bool
	currentCent int // 电流设定 *100
	cutoffCent  int // 截止电压设定 *100
	timerSec    uint16
	elapsed     time.Duration
	mAh, mWh    float64
	lastTick    time.Time

	// 统计
	frames      [][]byte
	openedAt    int // 最近一次打开时 frames 的长度
	commands    map[eload.CommandType]int
	queries     map[eload.QueryType]int
	opens       int
	closes      int
	discardsIn  int
	discardsOut int
}

// New 创建关闭状态的模拟器
func New() *Load {
	return &Load{
		now:      time.Now,
		commands: make(map[eload.CommandType]int),
		queries:  make(map[eload.QueryType]int),
	}
}

// SetClock 替换时钟（测试用）
func (l *Load) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	l.lastTick = time.Time{}
}

// SetChatter 设置每次请求前设备主动上报的字节
func (l *Load) SetChatter(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chatter = append([]byte(nil), b...)
}

// CorruptNext 接下来 n 次查询应答帧头错误
func (l *Load) CorruptNext(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.corrupt = n
}

// RejectNext 下一次命令应答 code（非 0x6F）
func (l *Load) RejectNext(code byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reject = code
}

// SetStuck 关断命令无效，负载保持开启
func (l *Load) SetStuck(stuck bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stuck = stuck
}

// StickUntilReopen 关断命令无效，直到通道被关闭后重新打开
func (l *Load) StickUntilReopen() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stuck, l.stuckOpen = true, true
}

// FailOpen 接下来 n 次打开失败
func (l *Load) FailOpen(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failOpen = n
}

// DropNext 接下来 n 个请求不应答
func (l *Load) DropNext(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unresponse = n
}

// SetEnabled 直接设置负载开关（测试预置状态）
func (l *Load) SetEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.advance()
	l.enabled = on
}

// Enabled 当前负载开关
func (l *Load) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.advance()
	return l.enabled
}

// Commands 某命令累计次数
func (l *Load) Commands(c eload.CommandType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commands[c]
}

// Queries 某查询累计次数
func (l *Load) Queries(q eload.QueryType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queries[q]
}

// Frames 收到的所有下行帧
func (l *Load) Frames() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.frames))
	copy(out, l.frames)
	return out
}

// FramesSinceOpen 最近一次打开之后收到的下行帧
func (l *Load) FramesSinceOpen() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.frames)-l.openedAt)
	copy(out, l.frames[l.openedAt:])
	return out
}

// Opens 打开次数
func (l *Load) Opens() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opens
}

// Closes 关闭次数（仅统计实际关闭）
func (l *Load) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// Discards 输入/输出丢弃次数
func (l *Load) Discards() (in, out int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.discardsIn, l.discardsOut
}

func (l *Load) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failOpen > 0 {
		l.failOpen--
		return transport.ErrClosed
	}
	if !l.open {
		l.open = true
		l.opens++
		l.openedAt = len(l.frames)
		l.in, l.pending = nil, nil
		if l.stuckOpen && l.opens > 1 {
			l.stuck, l.stuckOpen = false, false
		}
	}
	return nil
}

func (l *Load) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open {
		l.open = false
		l.closes++
	}
	return nil
}

func (l *Load) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

func (l *Load) Write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return transport.ErrClosed
	}
	l.frames = append(l.frames, append([]byte(nil), p...))
	l.in = append(l.in, l.chatter...)
	if l.unresponse > 0 {
		l.unresponse--
		return nil
	}
	l.pending = append(l.pending, l.handle(p)...)
	return nil
}

func (l *Load) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.check()
}

func (l *Load) ReadExact(ctx context.Context, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return nil, transport.ErrClosed
	}
	l.deliver()
	if len(l.in) < n {
		return nil, transport.ErrReadTimeout
	}
	out := append([]byte(nil), l.in[:n]...)
	l.in = l.in[n:]
	return out, nil
}

func (l *Load) DiscardInput() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return transport.ErrClosed
	}
	l.discardsIn++
	l.in = nil
	return nil
}

func (l *Load) DiscardOutput() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return transport.ErrClosed
	}
	l.discardsOut++
	return nil
}

func (l *Load) BytesAvailable() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return 0, transport.ErrClosed
	}
	l.deliver()
	return len(l.in), nil
}

func (l *Load) check() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return transport.ErrClosed
	}
	return nil
}

// deliver 应答“到达”；调用方持有 mu
func (l *Load) deliver() {
	if len(l.pending) > 0 {
		l.in = append(l.in, l.pending...)
		l.pending = nil
	}
}

// handle 解析下行帧并生成应答；调用方持有 mu
func (l *Load) handle(p []byte) []byte {
	if len(p) != eload.FrameLen || p[0] != 0xB1 || p[1] != 0xB2 || p[5] != 0xB6 {
		return nil
	}
	l.advance()
	typ, payload := p[2], [2]byte{p[3], p[4]}

	if c := eload.CommandType(typ); c.Valid() {
		l.commands[c]++
		return []byte{l.command(c, payload)}
	}
	q := eload.QueryType(typ)
	if !q.Valid() {
		return nil
	}
	l.queries[q]++
	reply := eload.EncodeQueryReply(l.query(q))
	if l.corrupt > 0 {
		l.corrupt--
		reply[0] ^= 0xFF
	}
	return reply[:]
}

func (l *Load) command(c eload.CommandType, payload [2]byte) byte {
	if l.reject != 0 {
		code := l.reject
		l.reject = 0
		return code
	}
	switch c {
	case eload.ToggleLoad:
		on := payload[0] != 0
		if !on && l.stuck {
			break
		}
		l.enabled = on
	case eload.SetCurrent:
		l.currentCent = int(payload[0])*100 + int(payload[1])
	case eload.SetCutoffVoltage:
		l.cutoffCent = int(payload[0])*100 + int(payload[1])
	case eload.SetTimeout:
		l.timerSec = binary.BigEndian.Uint16(payload[:])
	case eload.ResetCounters:
		l.elapsed, l.mAh, l.mWh = 0, 0, 0
	}
	return eload.AckSuccess
}

func (l *Load) query(q eload.QueryType) [3]byte {
	switch q {
	case eload.LoadEnabled:
		if l.enabled {
			return [3]byte{0, 0, 1}
		}
		return [3]byte{}
	case eload.VoltageReading:
		return eload.IntegerPayload(uint32(l.voltageMV()))
	case eload.CurrentReading:
		return eload.IntegerPayload(uint32(l.currentMA()))
	case eload.ElapsedTime:
		return eload.DurationPayload(l.elapsed)
	case eload.CapacityMilliAmpHours:
		return eload.IntegerPayload(uint32(l.mAh))
	case eload.CapacityMilliWattHours:
		return eload.IntegerPayload(uint32(l.mWh))
	case eload.MosfetTemperature:
		return eload.IntegerPayload(uint32(ambientTempC + l.currentMA()/500))
	case eload.CurrentSetting:
		return eload.IntegerPayload(uint32(l.currentCent))
	case eload.CutoffVoltageSetting:
		return eload.IntegerPayload(uint32(l.cutoffCent))
	case eload.TimerSetting:
		return eload.DurationPayload(time.Duration(l.timerSec) * time.Second)
	}
	return [3]byte{}
}

func (l *Load) currentMA() int {
	if !l.enabled {
		return 0
	}
	return l.currentCent * 10
}

func (l *Load) voltageMV() int {
	v := fullVoltageMV - int(l.mAh)*mvPerMilliAmpH - l.currentMA()*internalMilliOh/1000
	if v < 0 {
		v = 0
	}
	return v
}

// advance 按真实流逝时间累计放电量，并执行定时/截止电压保护；调用方持有 mu
func (l *Load) advance() {
	now := l.now()
	if l.lastTick.IsZero() {
		l.lastTick = now
		return
	}
	dt := now.Sub(l.lastTick)
	l.lastTick = now
	if !l.enabled || dt <= 0 {
		return
	}
	l.elapsed += dt
	hours := dt.Hours()
	l.mAh += float64(l.currentMA()) * hours
	l.mWh += float64(l.currentMA()) * float64(l.voltageMV()) / 1000 * hours

	if l.timerSec > 0 && l.elapsed >= time.Duration(l.timerSec)*time.Second {
		l.enabled = false
	}
	if l.cutoffCent > 0 && l.voltageMV() < l.cutoffCent*10 {
		l.enabled = false
	}
}

var _ transport.Channel = (*Load)(nil)

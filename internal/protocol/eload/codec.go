package eload

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// fixedPointEpsilon 吸收二进制浮点误差（1.23*100 = 122.99999...）
const fixedPointEpsilon = 1e-9

// ValueKind 查询值类型
type ValueKind uint8

const (
	KindBool ValueKind = iota + 1
	KindInteger
	KindDuration
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindDuration:
		return "duration"
	default:
		return "unknown"
	}
}

// Value 查询应答中 3 字节载荷的解码结果
type Value struct {
	Kind ValueKind
	Raw  [3]byte
}

// Bool payload[2] != 0
func (v Value) Bool() bool { return v.Raw[2] != 0 }

// Integer 24 位大端无符号整数，单位换算由调用方负责
func (v Value) Integer() uint32 {
	return uint32(v.Raw[0])<<16 | uint32(v.Raw[1])<<8 | uint32(v.Raw[2])
}

// Duration 时、分、秒
func (v Value) Duration() time.Duration {
	return time.Duration(v.Raw[0])*time.Hour +
		time.Duration(v.Raw[1])*time.Minute +
		time.Duration(v.Raw[2])*time.Second
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case KindInteger:
		return fmt.Sprintf("%d", v.Integer())
	case KindDuration:
		return v.Duration().String()
	default:
		return fmt.Sprintf("% x", v.Raw[:])
	}
}

// CommandResult 命令应答
type CommandResult struct {
	OK   bool
	Code byte
}

// Encode 构造下行帧：B1 B2 type p0 p1 B6
func Encode(r Request) [FrameLen]byte {
	return [FrameLen]byte{frameHead[0], frameHead[1], r.Type, r.Payload[0], r.Payload[1], frameTail}
}

// DecodeCommand 解析 1 字节命令应答
func DecodeCommand(b []byte) (CommandResult, error) {
	if len(b) != AckLen {
		return CommandResult{}, fmt.Errorf("%w: ack length %d", ErrInvalidResponse, len(b))
	}
	return CommandResult{OK: b[0] == AckSuccess, Code: b[0]}, nil
}

// DecodeQuery 校验 CA CB .. CE CF 标记并按查询类型解析载荷
func DecodeQuery(q QueryType, b []byte) (Value, error) {
	kind, err := q.Kind()
	if err != nil {
		return Value{}, err
	}
	if len(b) != QueryReplyLen {
		return Value{}, fmt.Errorf("%w: reply length %d", ErrInvalidResponse, len(b))
	}
	if b[0] != replyHead[0] || b[1] != replyHead[1] || b[5] != replyTail[0] || b[6] != replyTail[1] {
		return Value{}, fmt.Errorf("%w: bad markers % x", ErrInvalidResponse, b)
	}
	return Value{Kind: kind, Raw: [3]byte{b[2], b[3], b[4]}}, nil
}

// EncodeFixedPoint 两位小数定点：整数部分 + 小数部分*100（截断）
func EncodeFixedPoint(v float64) [2]byte {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	cents := int64(math.Floor(v*100 + fixedPointEpsilon))
	return [2]byte{byte(cents / 100), byte(cents % 100)}
}

// DecodeFixedPoint EncodeFixedPoint 的逆运算
func DecodeFixedPoint(p [2]byte) float64 {
	return float64(int(p[0])*100+int(p[1])) / 100
}

// EncodeDuration 整秒数按 16 位大端编码，超过 65535 秒回绕
func EncodeDuration(d time.Duration) [2]byte {
	var out [2]byte
	binary.BigEndian.PutUint16(out[:], uint16(int64(d/time.Second)))
	return out
}

// EncodeBool 负载开关：{1,0} 开，{0,0} 关
func EncodeBool(on bool) [2]byte {
	if on {
		return [2]byte{0x01, 0x00}
	}
	return zeroParams
}

// EncodeQueryReply 构造上行查询应答（模拟器与测试使用）
func EncodeQueryReply(v [3]byte) [QueryReplyLen]byte {
	return [QueryReplyLen]byte{replyHead[0], replyHead[1], v[0], v[1], v[2], replyTail[0], replyTail[1]}
}

// IntegerPayload 24 位大端
func IntegerPayload(n uint32) [3]byte {
	return [3]byte{byte(n >> 16), byte(n >> 8), byte(n)}
}

// DurationPayload 时、分、秒；超过 255 小时截断
func DurationPayload(d time.Duration) [3]byte {
	s := int64(d / time.Second)
	if s < 0 {
		s = 0
	}
	h := s / 3600
	if h > 0xFF {
		h = 0xFF
	}
	return [3]byte{byte(h), byte(s % 3600 / 60), byte(s % 60)}
}

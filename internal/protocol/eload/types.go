package eload

import (
	"errors"
	"fmt"
)

// 帧常量
// 下行：B1 B2 + type(1) + payload(2) + B6
// 上行命令应答：1 字节（0x6F 成功）
// 上行查询应答：CA CB + value(3) + CE CF
const (
	FrameLen       = 6
	AckLen         = 1
	QueryReplyLen  = 7
	AckSuccess     = 0x6F
	commandTypeMax = 0x0F
	queryTypeMin   = 0x10
	queryTypeMax   = 0x1F
)

var (
	frameHead  = [2]byte{0xB1, 0xB2}
	frameTail  = byte(0xB6)
	replyHead  = [2]byte{0xCA, 0xCB}
	replyTail  = [2]byte{0xCE, 0xCF}
	zeroParams = [2]byte{0x00, 0x00}
)

var (
	// ErrInvalidCommandType 命令类型超出定义范围（编程错误，不重试）
	ErrInvalidCommandType = errors.New("invalid command type")
	// ErrInvalidQueryType 查询类型超出定义范围（编程错误，不重试）
	ErrInvalidQueryType = errors.New("invalid query type")
	// ErrInvalidRequestType 请求类型字节既不是命令也不是查询
	ErrInvalidRequestType = errors.New("invalid request type")
	// ErrInvalidResponse 应答帧标记缺失或长度不符（线路噪声，可重试）
	ErrInvalidResponse = errors.New("invalid response")
)

// CommandType 写类命令
type CommandType byte

const (
	ToggleLoad       CommandType = 0x01
	SetCurrent       CommandType = 0x02
	SetCutoffVoltage CommandType = 0x03
	SetTimeout       CommandType = 0x04
	ResetCounters    CommandType = 0x05
)

// Valid 判断是否为已定义的命令
func (c CommandType) Valid() bool {
	switch c {
	case ToggleLoad, SetCurrent, SetCutoffVoltage, SetTimeout, ResetCounters:
		return true
	}
	return false
}

func (c CommandType) String() string {
	switch c {
	case ToggleLoad:
		return "toggle_load"
	case SetCurrent:
		return "set_current"
	case SetCutoffVoltage:
		return "set_cutoff_voltage"
	case SetTimeout:
		return "set_timeout"
	case ResetCounters:
		return "reset_counters"
	default:
		return fmt.Sprintf("command_0x%02x", byte(c))
	}
}

// QueryType 读类查询
type QueryType byte

const (
	LoadEnabled            QueryType = 0x10
	VoltageReading         QueryType = 0x11
	CurrentReading         QueryType = 0x12
	ElapsedTime            QueryType = 0x13
	CapacityMilliAmpHours  QueryType = 0x14
	CapacityMilliWattHours QueryType = 0x15
	MosfetTemperature      QueryType = 0x16
	CurrentSetting         QueryType = 0x17
	CutoffVoltageSetting   QueryType = 0x18
	TimerSetting           QueryType = 0x19
)

// Kind 返回查询结果的值类型；未定义的查询返回 ErrInvalidQueryType
func (q QueryType) Kind() (ValueKind, error) {
	switch q {
	case LoadEnabled:
		return KindBool, nil
	case VoltageReading, CurrentReading, CapacityMilliAmpHours, CapacityMilliWattHours,
		MosfetTemperature, CurrentSetting, CutoffVoltageSetting:
		return KindInteger, nil
	case ElapsedTime, TimerSetting:
		return KindDuration, nil
	}
	return 0, fmt.Errorf("%w: 0x%02x", ErrInvalidQueryType, byte(q))
}

// Valid 判断是否为已定义的查询
func (q QueryType) Valid() bool {
	_, err := q.Kind()
	return err == nil
}

func (q QueryType) String() string {
	switch q {
	case LoadEnabled:
		return "load_enabled"
	case VoltageReading:
		return "voltage"
	case CurrentReading:
		return "current"
	case ElapsedTime:
		return "elapsed_time"
	case CapacityMilliAmpHours:
		return "capacity_mah"
	case CapacityMilliWattHours:
		return "capacity_mwh"
	case MosfetTemperature:
		return "mosfet_temperature"
	case CurrentSetting:
		return "current_setting"
	case CutoffVoltageSetting:
		return "cutoff_voltage_setting"
	case TimerSetting:
		return "timer_setting"
	default:
		return fmt.Sprintf("query_0x%02x", byte(q))
	}
}

// Request 单次请求，每次调用新建，不复用
type Request struct {
	Type        byte
	Payload     [2]byte
	ExpectedLen int
}

// NewCommand 构造命令请求（应答 1 字节）
func NewCommand(c CommandType, payload [2]byte) (Request, error) {
	if !c.Valid() {
		return Request{}, fmt.Errorf("%w: 0x%02x", ErrInvalidCommandType, byte(c))
	}
	return Request{Type: byte(c), Payload: payload, ExpectedLen: AckLen}, nil
}

// NewQuery 构造查询请求（零载荷，应答 7 字节）
func NewQuery(q QueryType) (Request, error) {
	if !q.Valid() {
		return Request{}, fmt.Errorf("%w: 0x%02x", ErrInvalidQueryType, byte(q))
	}
	return Request{Type: byte(q), Payload: zeroParams, ExpectedLen: QueryReplyLen}, nil
}

// IsCommand 类型字节落在命令区间
func (r Request) IsCommand() bool { return r.Type <= commandTypeMax }

// IsQuery 类型字节落在查询区间
func (r Request) IsQuery() bool { return r.Type >= queryTypeMin && r.Type <= queryTypeMax }

// Name 用于日志与指标标签
func (r Request) Name() string {
	if r.IsCommand() {
		return CommandType(r.Type).String()
	}
	return QueryType(r.Type).String()
}

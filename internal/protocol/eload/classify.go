package eload

import "fmt"

// Response 分类后的应答：命令走 Ack，查询走 Value
type Response struct {
	Type  byte
	Ack   CommandResult
	Value Value
}

// IsCommand 应答来自命令
func (r Response) IsCommand() bool { return r.Type <= commandTypeMax }

// Classify 按请求类型字节区间选择解码路径
// < 0x10 命令；0x10..0x1F 查询；其它为 ErrInvalidRequestType
func Classify(typ byte, resp []byte) (Response, error) {
	switch {
	case typ <= commandTypeMax:
		ack, err := DecodeCommand(resp)
		if err != nil {
			return Response{}, err
		}
		return Response{Type: typ, Ack: ack}, nil
	case typ >= queryTypeMin && typ <= queryTypeMax:
		v, err := DecodeQuery(QueryType(typ), resp)
		if err != nil {
			return Response{}, err
		}
		return Response{Type: typ, Value: v}, nil
	default:
		return Response{}, fmt.Errorf("%w: 0x%02x", ErrInvalidRequestType, typ)
	}
}

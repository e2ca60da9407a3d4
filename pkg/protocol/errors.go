package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 所有参数校验错误的共同根
	ErrValidation = errors.New("参数校验失败")

	ErrInvalidChannel      = errors.New("通道编号无效")
	ErrVoltageOutOfRange   = errors.New("电压超出范围")
	ErrCurrentOutOfRange   = errors.New("电流超出范围")
	ErrInvalidIterations   = errors.New("迭代次数无效")
	ErrUnsupportedDuration = errors.New("不支持的步长时间")
	ErrUnsupportedBaud     = errors.New("不支持的波特率")

	// ErrTimeout 在超时前没有收到完整的响应行
	ErrTimeout = errors.New("读取响应超时")
	// ErrWouldBlock 零超时读取时暂无数据
	ErrWouldBlock = errors.New("暂无数据")
)

// ValidationError 参数超出取值范围, 在写入任何字节之前返回
type ValidationError struct {
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%v: %s", e.Reason, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// Is 让 errors.Is(err, ErrValidation) 对所有校验错误成立
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(reason error, format string, args ...interface{}) error {
	return &ValidationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// TransportError 传输层读写失败
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("传输%s失败: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTimeout 判断错误是否为响应超时
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

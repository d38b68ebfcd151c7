package service

import (
	"errors"
	"fmt"
)

// ErrorKind 错误类别，对外稳定
type ErrorKind string

const (
	KindDecode              ErrorKind = "DecodeError"
	KindRect                ErrorKind = "RectError"
	KindSegmentation        ErrorKind = "SegmentationError"
	KindInvalidSessionState ErrorKind = "InvalidSessionState"
	KindUnknownMethod       ErrorKind = "UnknownMethod"
)

var (
	// ErrQueueFull 处理队列在等待超时前一直没有空位
	ErrQueueFull = errors.New("processing queue is full")
	// ErrSizeMismatch 图像与掩码尺寸不一致
	ErrSizeMismatch = errors.New("image and mask dimensions differ")
)

// Error 流水线各阶段返回的错误
type Error struct {
	Kind  ErrorKind
	Op    string // 出错的阶段，如 decode、set_rect
	Field string // RectError 时记录越界的字段
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf 返回错误类别，非流水线错误返回空串
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func decodeError(msg string, err error) error {
	return &Error{Kind: KindDecode, Op: "decode", Msg: msg, Err: err}
}

func rectError(field string, r Rectangle, width, height int) error {
	return &Error{
		Kind:  KindRect,
		Op:    "set_rect",
		Field: field,
		Msg:   fmt.Sprintf("rectangle %s out of bounds for %dx%d image (%s)", r, width, height, field),
	}
}

func segmentationError(msg string, err error) error {
	return &Error{Kind: KindSegmentation, Op: "segment", Msg: msg, Err: err}
}

func stateError(op, state string) error {
	return &Error{
		Kind: KindInvalidSessionState,
		Op:   op,
		Msg:  fmt.Sprintf("%s is not allowed in state %q", op, state),
	}
}

func unknownMethodError(op, name string) error {
	return &Error{Kind: KindUnknownMethod, Op: op, Msg: fmt.Sprintf("unknown method %q", name)}
}

// NewDecodeError 供传输层报告 base64 / data URL 解析失败
func NewDecodeError(msg string, err error) error {
	return decodeError(msg, err)
}

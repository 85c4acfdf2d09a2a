package model

import (
	"errors"
	"fmt"
)

// 编辑操作的错误分类。所有编辑操作在修改状态之前完成校验，失败时不产生副作用。
var (
	ErrOverlap       = errors.New("overlap")
	ErrTrackLocked   = errors.New("track locked")
	ErrInvalidRange  = errors.New("invalid range")
	ErrNotFound      = errors.New("not found")
	ErrPreviewFailed = errors.New("preview failed")
)

// EditError 带上下文的编辑错误，可用 errors.Is 匹配上面的分类
type EditError struct {
	Op     string // 操作名，例如 moveClip
	Kind   error  // 错误分类
	ID     string // 相关的轨道/片段/关键帧 ID
	Detail string
}

func (e *EditError) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.ID != "" {
		msg += fmt.Sprintf(" (%s)", e.ID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *EditError) Unwrap() error {
	return e.Kind
}

// NewEditError 创建编辑错误
func NewEditError(op string, kind error, id string, format string, args ...any) *EditError {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &EditError{Op: op, Kind: kind, ID: id, Detail: detail}
}

package domain

import (
	"errors"
	"fmt"
)

// 错误分类（见各自注释）。调用点在发现错误的位置立即归类，
// 之后不允许被静默降级成其他类别。
var (
	// ErrValidation 表示请求本身非法（调用方的问题），不应重试。
	ErrValidation = errors.New("validation error")

	// ErrOutOfStock 是正常的业务结果：请求量超过可用库存。
	// 请求依然算完成，不作为系统故障对外暴露。
	ErrOutOfStock = errors.New("out of stock")

	// ErrStoreUnavailable 表示后端不可达或行为异常，对调用方是可重试的服务故障。
	ErrStoreUnavailable = errors.New("inventory store unavailable")

	// ErrConfiguration 只在启动阶段出现，属于致命错误。
	ErrConfiguration = errors.New("configuration error")
)

// StoreError 携带后端标识与底层原因的基础设施故障。
// errors.Is(err, ErrStoreUnavailable) 对其成立。
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

func NewStoreError(backend, op string, err error) *StoreError {
	return &StoreError{Backend: backend, Op: op, Err: err}
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Backend, e.Op)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

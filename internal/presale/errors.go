package presale

import (
	"errors"
	"fmt"
)

// Kind 错误类别：所有违规都是同步拒绝，调用方操作整体中止且零状态变更
type Kind int

const (
	KindInvalidConfiguration Kind = iota + 1 // 配置/参数错误、重复初始化
	KindTemporalViolation                    // 轮次未开/已关、时间锁未到期、时间约束
	KindCapacityExceeded                     // 低于下限、超过钱包/轮次/硬顶/鲸鱼/速率上限
	KindStateConflict                        // 已终结、已启用、重复领取、请求已挂起
	KindSolvencyViolation                    // 会导致托管资产不足以覆盖未领取额度
	KindAuthorizationFailure                 // 缺少角色
	KindTransferFailure                      // 账本协作方拒绝转账
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfiguration:
		return "InvalidConfiguration"
	case KindTemporalViolation:
		return "TemporalViolation"
	case KindCapacityExceeded:
		return "CapacityExceeded"
	case KindStateConflict:
		return "StateConflict"
	case KindSolvencyViolation:
		return "SolvencyViolation"
	case KindAuthorizationFailure:
		return "AuthorizationFailure"
	case KindTransferFailure:
		return "TransferFailure"
	default:
		return "Unknown"
	}
}

// Error 带类别的领域错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError 创建领域错误
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Errorf 创建带格式化消息的领域错误
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf 提取错误类别，非领域错误返回 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

var (
	ErrNothingToClaim   = &Error{Kind: KindStateConflict, Message: "NothingToClaim"}
	ErrPresaleEnded     = &Error{Kind: KindTemporalViolation, Message: "PresaleEnded"}
	ErrNotInitialized   = &Error{Kind: KindStateConflict, Message: "RoundsNotInitialized"}
	ErrPaused           = &Error{Kind: KindStateConflict, Message: "ContributionsPaused"}
	ErrRefundNotEnabled = &Error{Kind: KindStateConflict, Message: "RefundsNotEnabled"}
)

package presale

import (
	"context"
	"math/big"

	"github.com/blues/pss/internal/model"
	"gorm.io/gorm"
)

// RequestWithdraw 发起提取募资资金的时间锁请求
// withdraw 请求带 nonce，可并存多条待执行请求
func (e *Engine) RequestWithdraw(caller, destination string, amount *big.Int) (int64, error) {
	if err := e.auth.Require(RoleTreasury, caller); err != nil {
		return 0, err
	}
	caller = normalizeAddress(caller)
	destination = normalizeAddress(destination)
	if destination == "" {
		return 0, Errorf(KindInvalidConfiguration, "empty destination address")
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, Errorf(KindInvalidConfiguration, "withdraw amount must be positive")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().Unix()
	var nonce int64
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		totalRaised, err := parseStored("state.total_raised", st.TotalRaised)
		if err != nil {
			return err
		}
		totalWithdrawn, err := parseStored("state.total_withdrawn", st.TotalWithdrawn)
		if err != nil {
			return err
		}
		available := new(big.Int).Sub(totalRaised, totalWithdrawn)
		if amount.Cmp(available) > 0 {
			return Errorf(KindSolvencyViolation, "withdraw %s exceeds available %s", amount, available)
		}

		nonce, err = nextNonce(tx, model.TimelockActionWithdraw)
		if err != nil {
			return err
		}
		req := model.TimelockRequest{
			Action:      model.TimelockActionWithdraw,
			Nonce:       nonce,
			RequestedAt: now,
			RequestedBy: caller,
			Status:      model.TimelockStatusPending,
			Destination: destination,
			Amount:      amount.String(),
		}
		if err := tx.Create(&req).Error; err != nil {
			return err
		}
		return emitEvent(tx, model.EventWithdrawRequested, caller, -1, amount.String(), map[string]interface{}{
			"nonce":       nonce,
			"destination": destination,
		})
	})
	if err != nil {
		return 0, err
	}

	e.publish(model.EventWithdrawRequested, map[string]interface{}{
		"requested_by": caller,
		"nonce":        nonce,
		"destination":  destination,
		"amount":       amount.String(),
	})
	return nonce, nil
}

// ExecuteWithdraw 执行已成熟的提取请求
// 退款窗口生效期间禁止提取（资金需留存用于退款兑付）
// 日累计提取额受熔断上限约束
func (e *Engine) ExecuteWithdraw(ctx context.Context, caller string, nonce int64) error {
	if err := e.auth.Require(RoleTreasury, caller); err != nil {
		return err
	}
	caller = normalizeAddress(caller)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().Unix()
	var destination, amountStr string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		req, err := pendingByNonce(tx, model.TimelockActionWithdraw, nonce)
		if err != nil {
			return err
		}
		if err := requireMatured(req, e.cfg.WithdrawDelay, now); err != nil {
			return err
		}
		if st.RefundEnabled && now <= st.RefundDeadline {
			return Errorf(KindSolvencyViolation, "withdrawals blocked while refund window is open")
		}
		amount, err := parseStored("request.amount", req.Amount)
		if err != nil {
			return err
		}

		// 日熔断
		dayBucket := now / 86400
		var db model.WithdrawDayBucket
		hasBucket := true
		if err := tx.Where("day_bucket = ?", dayBucket).First(&db).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			hasBucket = false
			db = model.WithdrawDayBucket{DayBucket: dayBucket, Withdrawn: "0"}
		}
		withdrawn, err := parseStored("day_bucket.withdrawn", db.Withdrawn)
		if err != nil {
			return err
		}
		dailyLimit, err := ParseAmount(e.cfg.DailyWithdrawLimit)
		if err != nil {
			return err
		}
		newWithdrawn := new(big.Int).Add(withdrawn, amount)
		if newWithdrawn.Cmp(dailyLimit) > 0 {
			return Errorf(KindCapacityExceeded, "daily withdraw total %s would exceed limit %s", newWithdrawn, dailyLimit)
		}
		db.Withdrawn = newWithdrawn.String()
		if hasBucket {
			if err := tx.Save(&db).Error; err != nil {
				return err
			}
		} else if err := tx.Create(&db).Error; err != nil {
			return err
		}

		if err := addStored(&st.TotalWithdrawn, amount); err != nil {
			return err
		}
		if err := tx.Save(st).Error; err != nil {
			return err
		}
		if err := markExecuted(tx, req); err != nil {
			return err
		}
		destination = req.Destination
		amountStr = req.Amount
		if err := emitEvent(tx, model.EventWithdrawExecuted, caller, -1, req.Amount, map[string]interface{}{
			"nonce":       nonce,
			"destination": req.Destination,
		}); err != nil {
			return err
		}

		// 资金转出放最后
		if err := e.payment.Transfer(ctx, req.Destination, amount); err != nil {
			return NewError(KindTransferFailure, "payment ledger rejected withdraw transfer", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.publish(model.EventWithdrawExecuted, map[string]interface{}{
		"executed_by": caller,
		"nonce":       nonce,
		"destination": destination,
		"amount":      amountStr,
	})
	return nil
}

// CancelWithdraw 取消指定 nonce 的待执行提取请求
func (e *Engine) CancelWithdraw(caller string, nonce int64) error {
	if err := e.auth.Require(RoleTreasury, caller); err != nil {
		return err
	}
	caller = normalizeAddress(caller)

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.db.Transaction(func(tx *gorm.DB) error {
		req, err := pendingByNonce(tx, model.TimelockActionWithdraw, nonce)
		if err != nil {
			return err
		}
		if err := markCancelled(tx, req); err != nil {
			return err
		}
		return emitEvent(tx, model.EventWithdrawCancelled, caller, -1, req.Amount, map[string]interface{}{
			"nonce": nonce,
		})
	})
	if err != nil {
		return err
	}

	e.publish(model.EventWithdrawCancelled, map[string]interface{}{
		"cancelled_by": caller,
		"nonce":        nonce,
	})
	return nil
}

// WithdrawExcessAllocation 提取托管账户中超出未领取义务的分配资产
// excess = 托管余额 - (总分配 - 总已领取)，退款窗口启用期间禁止
func (e *Engine) WithdrawExcessAllocation(ctx context.Context, caller, destination string) (*big.Int, error) {
	if err := e.auth.Require(RoleTreasury, caller); err != nil {
		return nil, err
	}
	caller = normalizeAddress(caller)
	destination = normalizeAddress(destination)
	if destination == "" {
		return nil, Errorf(KindInvalidConfiguration, "empty destination address")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var excess *big.Int
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if st.RefundEnabled {
			return Errorf(KindStateConflict, "excess withdrawal blocked while refunds are enabled")
		}
		totalAllocated, err := parseStored("state.total_allocated", st.TotalAllocated)
		if err != nil {
			return err
		}
		totalClaimed, err := parseStored("state.total_claimed", st.TotalClaimed)
		if err != nil {
			return err
		}
		outstanding := new(big.Int).Sub(totalAllocated, totalClaimed)

		balance, err := e.allocation.BalanceOf(ctx, e.custody)
		if err != nil {
			return NewError(KindTransferFailure, "failed to read custody allocation balance", err)
		}
		excess = new(big.Int).Sub(balance, outstanding)
		if excess.Sign() <= 0 {
			return Errorf(KindSolvencyViolation, "no excess allocation: balance %s, outstanding %s", balance, outstanding)
		}

		if err := emitEvent(tx, model.EventExcessWithdrawn, caller, -1, excess.String(), map[string]interface{}{
			"destination": destination,
		}); err != nil {
			return err
		}
		if err := e.allocation.Transfer(ctx, destination, excess); err != nil {
			return NewError(KindTransferFailure, "allocation ledger rejected excess transfer", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(model.EventExcessWithdrawn, map[string]interface{}{
		"withdrawn_by": caller,
		"amount":       excess.String(),
	})
	return excess, nil
}

// RequestEmergencyWithdraw 发起紧急提取分配资产的请求（延迟最长，单例）
// 目的地址在执行时提供，请求只锁定意图与时间
func (e *Engine) RequestEmergencyWithdraw(caller string) error {
	if err := e.auth.Require(RoleAdmin, caller); err != nil {
		return err
	}
	caller = normalizeAddress(caller)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().Unix()
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if st.TGEEnabled {
			return Errorf(KindStateConflict, "emergency withdrawal unavailable after token generation event")
		}
		existing, err := pendingRequest(tx, model.TimelockActionEmergencyWithdraw)
		if err != nil {
			return err
		}
		if existing != nil {
			return Errorf(KindStateConflict, "an emergency withdraw request is already pending")
		}

		req := model.TimelockRequest{
			Action:      model.TimelockActionEmergencyWithdraw,
			RequestedAt: now,
			RequestedBy: caller,
			Status:      model.TimelockStatusPending,
		}
		if err := tx.Create(&req).Error; err != nil {
			return err
		}
		return emitEvent(tx, model.EventEmergencyRequested, caller, -1, "", nil)
	})
	if err != nil {
		return err
	}

	e.publish(model.EventEmergencyRequested, map[string]interface{}{
		"requested_by": caller,
	})
	return nil
}

// ExecuteEmergencyWithdraw 执行已成熟的紧急提取：扫回托管账户全部分配资产
// TGE 启用后完全禁止；退款窗口开启且未到期时，仍有未兑付分配则禁止
// 退款截止之后允许提取（未退款者视为放弃分配）
func (e *Engine) ExecuteEmergencyWithdraw(ctx context.Context, caller, destination string) (*big.Int, error) {
	if err := e.auth.Require(RoleAdmin, caller); err != nil {
		return nil, err
	}
	caller = normalizeAddress(caller)
	destination = normalizeAddress(destination)
	if destination == "" {
		return nil, Errorf(KindInvalidConfiguration, "empty destination address")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().Unix()
	var swept *big.Int
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		req, err := pendingRequest(tx, model.TimelockActionEmergencyWithdraw)
		if err != nil {
			return err
		}
		if req == nil {
			return Errorf(KindStateConflict, "no pending emergency withdraw request")
		}
		if err := requireMatured(req, e.cfg.EmergencyDelay, now); err != nil {
			return err
		}
		if st.TGEEnabled {
			return Errorf(KindStateConflict, "emergency withdrawal unavailable after token generation event")
		}
		if st.RefundEnabled && now <= st.RefundDeadline {
			totalAllocated, err := parseStored("state.total_allocated", st.TotalAllocated)
			if err != nil {
				return err
			}
			totalClaimed, err := parseStored("state.total_claimed", st.TotalClaimed)
			if err != nil {
				return err
			}
			outstanding := new(big.Int).Sub(totalAllocated, totalClaimed)
			if outstanding.Sign() > 0 {
				return Errorf(KindSolvencyViolation, "outstanding allocations of %s remain during refund window", outstanding)
			}
		}

		balance, err := e.allocation.BalanceOf(ctx, e.custody)
		if err != nil {
			return NewError(KindTransferFailure, "failed to read custody allocation balance", err)
		}
		if balance.Sign() == 0 {
			return Errorf(KindStateConflict, "custody holds no allocation assets")
		}
		swept = balance

		if err := markExecuted(tx, req); err != nil {
			return err
		}
		if err := emitEvent(tx, model.EventEmergencyExecuted, caller, -1, balance.String(), map[string]interface{}{
			"destination": destination,
		}); err != nil {
			return err
		}
		if err := e.allocation.Transfer(ctx, destination, balance); err != nil {
			return NewError(KindTransferFailure, "allocation ledger rejected emergency transfer", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(model.EventEmergencyExecuted, map[string]interface{}{
		"executed_by": caller,
		"destination": destination,
		"amount":      swept.String(),
	})
	return swept, nil
}

// CancelEmergencyWithdraw 取消待执行的紧急提取请求
func (e *Engine) CancelEmergencyWithdraw(caller string) error {
	if err := e.auth.Require(RoleAdmin, caller); err != nil {
		return err
	}
	caller = normalizeAddress(caller)

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.db.Transaction(func(tx *gorm.DB) error {
		req, err := pendingRequest(tx, model.TimelockActionEmergencyWithdraw)
		if err != nil {
			return err
		}
		if req == nil {
			return Errorf(KindStateConflict, "no pending emergency withdraw request")
		}
		if err := markCancelled(tx, req); err != nil {
			return err
		}
		return emitEvent(tx, model.EventEmergencyCancelled, caller, -1, "", nil)
	})
	if err != nil {
		return err
	}

	e.publish(model.EventEmergencyCancelled, map[string]interface{}{
		"cancelled_by": caller,
	})
	return nil
}

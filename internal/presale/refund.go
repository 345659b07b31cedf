package presale

import (
	"context"
	"math/big"

	"github.com/blues/pss/internal/model"
	"gorm.io/gorm"
)

// EnableRefunds 开启退款窗口
// 仅当募资总额未达软顶且全部轮次已终结时允许，与 TGE 互斥
// 窗口截止时间为 now + RefundWindow
func (e *Engine) EnableRefunds(caller string) (int64, error) {
	if err := e.auth.Require(RoleAdmin, caller); err != nil {
		return 0, err
	}
	caller = normalizeAddress(caller)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().Unix()
	var deadline int64
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if st.TGEEnabled {
			return Errorf(KindStateConflict, "cannot enable refunds after token generation event")
		}
		if st.RefundEnabled {
			return Errorf(KindStateConflict, "refunds already enabled")
		}
		done, err := e.lastRoundFinalized(tx, st)
		if err != nil {
			return err
		}
		if !done {
			return Errorf(KindStateConflict, "final round not yet finalized")
		}
		totalRaised, err := parseStored("state.total_raised", st.TotalRaised)
		if err != nil {
			return err
		}
		softCap, err := ParseAmount(e.cfg.SoftCap)
		if err != nil {
			return err
		}
		if totalRaised.Cmp(softCap) >= 0 {
			return Errorf(KindStateConflict, "soft cap reached, refunds not available")
		}

		deadline = now + e.cfg.RefundWindow
		st.RefundEnabled = true
		st.RefundDeadline = deadline
		if err := tx.Save(st).Error; err != nil {
			return err
		}
		return emitEvent(tx, model.EventRefundsEnabled, caller, -1, "", map[string]interface{}{
			"deadline": deadline,
		})
	})
	if err != nil {
		return 0, err
	}

	e.publish(model.EventRefundsEnabled, map[string]interface{}{
		"enabled_by": caller,
		"deadline":   deadline,
	})
	return deadline, nil
}

// ClaimRefund 参与者领取全额退款
// 清零其账本、回退各轮 raised 与全局计数，资金返还放事务末尾
// 退款后该地址可重新贡献（若窗口条件允许），届时重新计入参与者
func (e *Engine) ClaimRefund(ctx context.Context, caller string) (*big.Int, error) {
	caller = normalizeAddress(caller)
	if caller == "" {
		return nil, Errorf(KindInvalidConfiguration, "empty caller address")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().Unix()
	var refund *big.Int
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if !st.RefundEnabled {
			return ErrRefundNotEnabled
		}
		if now > st.RefundDeadline {
			return Errorf(KindTemporalViolation, "refund window closed at %d", st.RefundDeadline)
		}

		var p model.Participant
		if err := tx.Where("address = ?", caller).First(&p).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return Errorf(KindStateConflict, "address has no contribution to refund")
			}
			return err
		}
		if p.RefundClaimed {
			return Errorf(KindStateConflict, "refund already claimed")
		}
		refund, err = parseStored("participant.total_payment", p.TotalPayment)
		if err != nil {
			return err
		}
		if refund.Sign() == 0 {
			return Errorf(KindStateConflict, "address has no contribution to refund")
		}
		allocation, err := parseStored("participant.total_allocation", p.TotalAllocation)
		if err != nil {
			return err
		}

		// 按轮次明细回退各轮 raised，随后清零明细
		var rcs []model.RoundContribution
		if err := tx.Where("address = ?", caller).Find(&rcs).Error; err != nil {
			return err
		}
		for i := range rcs {
			payment, err := parseStored("round_contribution.payment", rcs[i].Payment)
			if err != nil {
				return err
			}
			if payment.Sign() == 0 {
				continue
			}
			round, err := loadRound(tx, rcs[i].RoundIndex)
			if err != nil {
				return err
			}
			if err := subStored(&round.Raised, payment); err != nil {
				return err
			}
			if err := tx.Save(round).Error; err != nil {
				return err
			}
			rcs[i].Payment = "0"
			rcs[i].Allocation = "0"
			if err := tx.Save(&rcs[i]).Error; err != nil {
				return err
			}
		}

		p.TotalPayment = "0"
		p.TotalAllocation = "0"
		p.TotalBonus = "0"
		p.TGEUnlockAmount = "0"
		p.VestedAmount = "0"
		p.ClaimedAmount = "0"
		p.RefundClaimed = true
		if err := tx.Save(&p).Error; err != nil {
			return err
		}

		if err := subStored(&st.TotalRaised, refund); err != nil {
			return err
		}
		if err := subStored(&st.TotalAllocated, allocation); err != nil {
			return err
		}
		if st.TotalParticipants > 0 {
			st.TotalParticipants--
		}
		if err := tx.Save(st).Error; err != nil {
			return err
		}
		if err := emitEvent(tx, model.EventRefundClaimed, caller, -1, refund.String(), nil); err != nil {
			return err
		}

		// 资金返还放最后
		if err := e.payment.Transfer(ctx, caller, refund); err != nil {
			return NewError(KindTransferFailure, "payment ledger rejected refund transfer", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(model.EventRefundClaimed, map[string]interface{}{
		"participant": caller,
		"amount":      refund.String(),
	})
	return refund, nil
}

// RecoverUnclaimedRefunds 退款窗口截止后，扫回托管账户内未被领取的支付资产
// 截止时间本身即延迟，不再套时间锁
func (e *Engine) RecoverUnclaimedRefunds(ctx context.Context, caller, destination string) (*big.Int, error) {
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

	now := e.now().Unix()
	var swept *big.Int
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if !st.RefundEnabled {
			return ErrRefundNotEnabled
		}
		if now <= st.RefundDeadline {
			return Errorf(KindTemporalViolation, "refund window still open until %d", st.RefundDeadline)
		}

		balance, err := e.payment.BalanceOf(ctx, e.custody)
		if err != nil {
			return NewError(KindTransferFailure, "failed to read custody balance", err)
		}
		if balance.Sign() == 0 {
			return Errorf(KindStateConflict, "nothing to recover")
		}
		swept = balance

		// 扫回计入累计提取，保持托管余额对账口径一致
		if err := addStored(&st.TotalWithdrawn, balance); err != nil {
			return err
		}
		if err := tx.Save(st).Error; err != nil {
			return err
		}
		if err := emitEvent(tx, model.EventRefundsRecovered, caller, -1, balance.String(), map[string]interface{}{
			"destination": destination,
		}); err != nil {
			return err
		}
		if err := e.payment.Transfer(ctx, destination, balance); err != nil {
			return NewError(KindTransferFailure, "payment ledger rejected recovery transfer", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(model.EventRefundsRecovered, map[string]interface{}{
		"recovered_by": caller,
		"amount":       swept.String(),
	})
	return swept, nil
}

package presale

import (
	"context"
	"math/big"

	"github.com/blues/pss/internal/model"
	"gorm.io/gorm"
)

// Claimable 只读视图：地址当前可领取的分配数量
// TGE 未启用、未到 TGE 时间、退款窗口生效或无分配时为零
func (e *Engine) Claimable(addr string) (*big.Int, error) {
	addr = normalizeAddress(addr)

	var result *big.Int
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.readState(tx)
		if err != nil {
			return err
		}
		if !st.TGEEnabled || st.RefundEnabled {
			result = big.NewInt(0)
			return nil
		}
		now := e.now().Unix()
		if now < st.TGETime {
			result = big.NewInt(0)
			return nil
		}

		var p model.Participant
		if err := tx.Where("address = ?", addr).First(&p).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				result = big.NewInt(0)
				return nil
			}
			return err
		}
		tgeUnlock, err := parseStored("participant.tge_unlock_amount", p.TGEUnlockAmount)
		if err != nil {
			return err
		}
		vested, err := parseStored("participant.vested_amount", p.VestedAmount)
		if err != nil {
			return err
		}
		claimed, err := parseStored("participant.claimed_amount", p.ClaimedAmount)
		if err != nil {
			return err
		}
		result = ClaimableAt(tgeUnlock, vested, claimed, st.TGETime, now, e.cfg.VestingDuration)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Claim 领取当前已解锁的全部分配
// 可随时重复调用，无新解锁时返回 ErrNothingToClaim
func (e *Engine) Claim(ctx context.Context, caller string) (*big.Int, error) {
	caller = normalizeAddress(caller)
	if caller == "" {
		return nil, Errorf(KindInvalidConfiguration, "empty caller address")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var payout *big.Int
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if !st.TGEEnabled {
			return Errorf(KindStateConflict, "token generation event not enabled")
		}
		if st.RefundEnabled {
			return Errorf(KindStateConflict, "claims disabled while refunds are enabled")
		}
		now := e.now().Unix()
		if now < st.TGETime {
			return Errorf(KindTemporalViolation, "token generation event has not occurred yet")
		}

		var p model.Participant
		if err := tx.Where("address = ?", caller).First(&p).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNothingToClaim
			}
			return err
		}
		tgeUnlock, err := parseStored("participant.tge_unlock_amount", p.TGEUnlockAmount)
		if err != nil {
			return err
		}
		vested, err := parseStored("participant.vested_amount", p.VestedAmount)
		if err != nil {
			return err
		}
		claimed, err := parseStored("participant.claimed_amount", p.ClaimedAmount)
		if err != nil {
			return err
		}
		payout = ClaimableAt(tgeUnlock, vested, claimed, st.TGETime, now, e.cfg.VestingDuration)
		if payout.Sign() == 0 {
			return ErrNothingToClaim
		}

		p.ClaimedAmount = new(big.Int).Add(claimed, payout).String()
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		if err := addStored(&st.TotalClaimed, payout); err != nil {
			return err
		}
		if err := tx.Save(st).Error; err != nil {
			return err
		}
		if err := emitEvent(tx, model.EventClaim, caller, -1, payout.String(), nil); err != nil {
			return err
		}

		// 分配资产转出放最后
		if err := e.allocation.Transfer(ctx, caller, payout); err != nil {
			return NewError(KindTransferFailure, "allocation ledger rejected transfer", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(model.EventClaim, map[string]interface{}{
		"participant": caller,
		"amount":      payout.String(),
	})
	return payout, nil
}

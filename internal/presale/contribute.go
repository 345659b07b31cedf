package presale

import (
	"context"
	"math/big"

	"github.com/blues/pss/internal/model"
	"gorm.io/gorm"
)

// Contribute 贡献入口
// 守卫按固定顺序执行（错误报告确定性依赖该顺序）：
//  1. 已初始化  2. 轮次游标在范围内  3. 时间窗口内且未终结
//  4. 区块冷却  5. 单笔下限  6. 钱包累计上限  7. 轮次容量
//  8. 全局硬顶  9. 鲸鱼上限  10. 小时限额
// 任一失败整笔中止，零状态变更；冷却标记仅在全部守卫通过后更新
// 资金转入放在事务末尾：账本拒绝则内部记账整体回滚
func (e *Engine) Contribute(ctx context.Context, caller string, amount *big.Int) (*Allocation, error) {
	caller = normalizeAddress(caller)
	if caller == "" {
		return nil, Errorf(KindInvalidConfiguration, "empty caller address")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, Errorf(KindInvalidConfiguration, "contribution amount must be positive")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().Unix()

	var alloc Allocation
	var roundIndex int
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if st.Paused {
			return ErrPaused
		}

		// 守卫1：已初始化
		if !st.RoundsInitialized {
			return ErrNotInitialized
		}

		// 守卫2：游标在范围内
		if st.CurrentRound >= e.roundCount() {
			return ErrPresaleEnded
		}

		// 守卫3：时间窗口与终结状态
		round, err := loadRound(tx, st.CurrentRound)
		if err != nil {
			return err
		}
		if now < round.StartTime {
			return Errorf(KindTemporalViolation, "round %d has not started", round.Index)
		}
		if now > round.EndTime {
			return Errorf(KindTemporalViolation, "round %d has ended", round.Index)
		}
		if round.Finalized {
			return Errorf(KindStateConflict, "round %d is finalized", round.Index)
		}

		// 守卫4：区块冷却（闪电贷防护）
		blockNum, hasBlock, err := e.currentBlock(ctx)
		if err != nil {
			return NewError(KindTransferFailure, "failed to read block number", err)
		}
		var marker model.CooldownMarker
		hasMarker := false
		if hasBlock {
			switch err := tx.Where("address = ?", caller).First(&marker).Error; err {
			case nil:
				hasMarker = true
				if blockNum < marker.LastBlock+e.cfg.CooldownBlocks {
					return Errorf(KindCapacityExceeded, "cooldown: wait %d blocks between contributions", e.cfg.CooldownBlocks)
				}
			case gorm.ErrRecordNotFound:
			default:
				return err
			}
		}

		// 守卫5：单笔下限
		min, err := ParseAmount(e.cfg.MinContribution)
		if err != nil {
			return err
		}
		if amount.Cmp(min) < 0 {
			return Errorf(KindCapacityExceeded, "contribution %s below minimum %s", amount, min)
		}

		// 守卫6：钱包累计上限
		var participant model.Participant
		hasParticipant := true
		if err := tx.Where("address = ?", caller).First(&participant).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			hasParticipant = false
		}
		totalPayment := big.NewInt(0)
		if hasParticipant {
			if totalPayment, err = parseStored("participant.total_payment", participant.TotalPayment); err != nil {
				return err
			}
		}
		maxWallet, err := ParseAmount(e.cfg.MaxContribution)
		if err != nil {
			return err
		}
		newTotal := new(big.Int).Add(totalPayment, amount)
		if newTotal.Cmp(maxWallet) > 0 {
			return Errorf(KindCapacityExceeded, "wallet total %s would exceed maximum %s", newTotal, maxWallet)
		}

		// 守卫7：轮次容量
		raised, err := parseStored("round.raised", round.Raised)
		if err != nil {
			return err
		}
		target, err := parseStored("round.target", round.Target)
		if err != nil {
			return err
		}
		newRaised := new(big.Int).Add(raised, amount)
		if newRaised.Cmp(target) > 0 {
			return Errorf(KindCapacityExceeded, "round %d raised %s would exceed target %s", round.Index, newRaised, target)
		}

		// 守卫8：全局硬顶（理论上被轮次目标之和覆盖，作为纵深防御独立检查）
		totalRaised, err := parseStored("state.total_raised", st.TotalRaised)
		if err != nil {
			return err
		}
		hardCap, err := ParseAmount(e.cfg.HardCap)
		if err != nil {
			return err
		}
		if new(big.Int).Add(totalRaised, amount).Cmp(hardCap) > 0 {
			return Errorf(KindCapacityExceeded, "total raised would exceed hard cap %s", hardCap)
		}

		// 守卫9：鲸鱼上限（单笔占轮次目标百分比）
		whaleCap := percentOf(target, e.cfg.WhalePercent)
		if amount.Cmp(whaleCap) > 0 {
			return Errorf(KindCapacityExceeded, "contribution %s exceeds %d%% of round target", amount, e.cfg.WhalePercent)
		}

		// 守卫10：小时限额
		hourBucket := now / 3600
		var bucket model.HourlyBucket
		hasBucket := true
		if err := tx.Where("address = ? AND hour_bucket = ?", caller, hourBucket).First(&bucket).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			hasBucket = false
		}
		volume := big.NewInt(0)
		if hasBucket {
			if volume, err = parseStored("bucket.volume", bucket.Volume); err != nil {
				return err
			}
		}
		hourlyLimit, err := parseStored("state.hourly_limit", st.HourlyLimit)
		if err != nil {
			return err
		}
		newVolume := new(big.Int).Add(volume, amount)
		if newVolume.Cmp(hourlyLimit) > 0 {
			return Errorf(KindCapacityExceeded, "hourly volume %s would exceed limit %s", newVolume, hourlyLimit)
		}

		// 计算分配
		price, err := parseStored("round.price", round.Price)
		if err != nil {
			return err
		}
		alloc = ComputeAllocation(amount, price, round.BonusPercent, round.TGEUnlockPercent)

		// 参与者账本（退款后再次进入会重新计数，并清除退款标记）
		if totalPayment.Sign() == 0 {
			st.TotalParticipants++
			participant.RefundClaimed = false
		}
		if !hasParticipant {
			participant = model.Participant{
				Address:         caller,
				TotalPayment:    "0",
				TotalAllocation: "0",
				TotalBonus:      "0",
				TGEUnlockAmount: "0",
				VestedAmount:    "0",
				ClaimedAmount:   "0",
			}
		}
		if err := addStored(&participant.TotalPayment, amount); err != nil {
			return err
		}
		if err := addStored(&participant.TotalAllocation, alloc.Total); err != nil {
			return err
		}
		if err := addStored(&participant.TotalBonus, alloc.Bonus); err != nil {
			return err
		}
		if err := addStored(&participant.TGEUnlockAmount, alloc.EventUnlock); err != nil {
			return err
		}
		if err := addStored(&participant.VestedAmount, alloc.Vested); err != nil {
			return err
		}
		if err := tx.Save(&participant).Error; err != nil {
			return err
		}

		// 轮次明细（退款时按轮次回退 raised 的依据）
		var rc model.RoundContribution
		if err := tx.Where("address = ? AND round_index = ?", caller, round.Index).First(&rc).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			rc = model.RoundContribution{Address: caller, RoundIndex: round.Index, Payment: "0", Allocation: "0"}
		}
		if err := addStored(&rc.Payment, amount); err != nil {
			return err
		}
		if err := addStored(&rc.Allocation, alloc.Total); err != nil {
			return err
		}
		if err := tx.Save(&rc).Error; err != nil {
			return err
		}

		// 轮次与全局计数
		round.Raised = newRaised.String()
		autoFinalized := false
		if newRaised.Cmp(target) == 0 {
			round.Finalized = true
			autoFinalized = true
		}
		if err := tx.Save(round).Error; err != nil {
			return err
		}

		st.TotalRaised = new(big.Int).Add(totalRaised, amount).String()
		if err := addStored(&st.TotalAllocated, alloc.Total); err != nil {
			return err
		}
		if err := tx.Save(st).Error; err != nil {
			return err
		}

		// 冷却标记与小时桶（仅在全部守卫通过后更新）
		if hasBlock {
			marker.Address = caller
			marker.LastBlock = blockNum
			if hasMarker {
				if err := tx.Save(&marker).Error; err != nil {
					return err
				}
			} else if err := tx.Create(&marker).Error; err != nil {
				return err
			}
		}
		bucket.Address = caller
		bucket.HourBucket = hourBucket
		bucket.Volume = newVolume.String()
		if err := tx.Save(&bucket).Error; err != nil {
			return err
		}

		if err := emitEvent(tx, model.EventContribution, caller, round.Index, amount.String(), map[string]interface{}{
			"base":  alloc.Base.String(),
			"bonus": alloc.Bonus.String(),
		}); err != nil {
			return err
		}
		if autoFinalized {
			if err := emitEvent(tx, model.EventRoundFinalized, caller, round.Index, round.Raised, map[string]interface{}{
				"auto": true,
			}); err != nil {
				return err
			}
		}

		roundIndex = round.Index

		// 支付资产转入托管（外部调用放最后）
		if err := e.payment.TransferFrom(ctx, caller, e.custody, amount); err != nil {
			return NewError(KindTransferFailure, "payment ledger rejected transfer_from", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(model.EventContribution, map[string]interface{}{
		"participant": caller,
		"round":       roundIndex,
		"payment":     amount.String(),
		"base":        alloc.Base.String(),
		"bonus":       alloc.Bonus.String(),
	})
	return &alloc, nil
}

// addStored 存储字段加法：field = field + delta
func addStored(field *string, delta *big.Int) error {
	v, err := parseStored("amount", *field)
	if err != nil {
		return err
	}
	*field = v.Add(v, delta).String()
	return nil
}

// subStored 存储字段减法：field = field - delta（不允许为负）
func subStored(field *string, delta *big.Int) error {
	v, err := parseStored("amount", *field)
	if err != nil {
		return err
	}
	v.Sub(v, delta)
	if v.Sign() < 0 {
		return Errorf(KindSolvencyViolation, "stored amount would go negative")
	}
	*field = v.String()
	return nil
}

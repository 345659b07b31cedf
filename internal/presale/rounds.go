package presale

import (
	"math/big"

	"github.com/blues/pss/internal/model"
	"gorm.io/gorm"
)

// InitializeRounds 一次性创建全部轮次（时间窗口由调用方提供，价格/目标来自配置）
// 校验：仅一次；各 start > now；各 end > start；第 i 轮 start > 第 i-1 轮 end；
// 各轮次目标之和等于硬顶
func (e *Engine) InitializeRounds(caller string, startTimes, endTimes []int64) error {
	if err := e.auth.Require(RoleRoundManager, caller); err != nil {
		return err
	}

	count := e.roundCount()
	if count == 0 {
		return Errorf(KindInvalidConfiguration, "no rounds configured")
	}
	if len(startTimes) != count || len(endTimes) != count {
		return Errorf(KindInvalidConfiguration, "expected %d start/end times, got %d/%d", count, len(startTimes), len(endTimes))
	}

	hardCap, err := ParseAmount(e.cfg.HardCap)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().Unix()

	err = e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if st.RoundsInitialized {
			return Errorf(KindInvalidConfiguration, "rounds already initialized")
		}

		targetSum := big.NewInt(0)
		rounds := make([]model.Round, 0, count)
		for i, rc := range e.cfg.Rounds {
			price, err := ParseAmount(rc.Price)
			if err != nil || price.Sign() <= 0 {
				return Errorf(KindInvalidConfiguration, "round %d: invalid price %s", i, rc.Price)
			}
			target, err := ParseAmount(rc.Target)
			if err != nil || target.Sign() <= 0 {
				return Errorf(KindInvalidConfiguration, "round %d: invalid target %s", i, rc.Target)
			}
			if rc.BonusPercent < 0 || rc.BonusPercent > 100 {
				return Errorf(KindInvalidConfiguration, "round %d: bonus percent %d out of range", i, rc.BonusPercent)
			}
			if rc.TGEUnlockPercent < 0 || rc.TGEUnlockPercent > 100 {
				return Errorf(KindInvalidConfiguration, "round %d: tge unlock percent %d out of range", i, rc.TGEUnlockPercent)
			}

			if startTimes[i] <= now {
				return Errorf(KindTemporalViolation, "round %d: start time %d is not in the future", i, startTimes[i])
			}
			if endTimes[i] <= startTimes[i] {
				return Errorf(KindTemporalViolation, "round %d: end time %d is not after start time %d", i, endTimes[i], startTimes[i])
			}
			if i > 0 && startTimes[i] <= endTimes[i-1] {
				return Errorf(KindTemporalViolation, "round %d: start time %d overlaps previous round end %d", i, startTimes[i], endTimes[i-1])
			}

			targetSum.Add(targetSum, target)
			rounds = append(rounds, model.Round{
				Index:            i,
				Price:            rc.Price,
				Target:           rc.Target,
				Raised:           "0",
				StartTime:        startTimes[i],
				EndTime:          endTimes[i],
				TGEUnlockPercent: rc.TGEUnlockPercent,
				BonusPercent:     rc.BonusPercent,
			})
		}

		if targetSum.Cmp(hardCap) != 0 {
			return Errorf(KindInvalidConfiguration, "round targets sum %s does not equal hard cap %s", targetSum, hardCap)
		}

		if err := tx.Create(&rounds).Error; err != nil {
			return err
		}

		st.RoundsInitialized = true
		st.CurrentRound = 0
		if err := tx.Save(st).Error; err != nil {
			return err
		}

		return emitEvent(tx, model.EventRoundsInitialized, caller, -1, "", map[string]interface{}{
			"rounds": count,
		})
	})
	if err != nil {
		return err
	}

	e.publish(model.EventRoundsInitialized, map[string]interface{}{"rounds": count})
	return nil
}

// FinalizeRound 显式终结当前轮次：要求已过窗口或已达目标
func (e *Engine) FinalizeRound(caller string) (int, error) {
	if err := e.auth.Require(RoleRoundManager, caller); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var index int
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if !st.RoundsInitialized {
			return ErrNotInitialized
		}

		round, err := loadRound(tx, st.CurrentRound)
		if err != nil {
			return err
		}
		if round.Finalized {
			return Errorf(KindStateConflict, "round %d already finalized", round.Index)
		}

		raised, err := parseStored("round.raised", round.Raised)
		if err != nil {
			return err
		}
		target, err := parseStored("round.target", round.Target)
		if err != nil {
			return err
		}

		now := e.now().Unix()
		if now <= round.EndTime && raised.Cmp(target) < 0 {
			return Errorf(KindTemporalViolation, "round %d is still open and below target", round.Index)
		}

		round.Finalized = true
		if err := tx.Save(round).Error; err != nil {
			return err
		}

		index = round.Index
		return emitEvent(tx, model.EventRoundFinalized, caller, round.Index, round.Raised, nil)
	})
	if err != nil {
		return 0, err
	}

	e.publish(model.EventRoundFinalized, map[string]interface{}{"round": index})
	return index, nil
}

// AdvanceRound 推进轮次游标：要求当前轮次已终结且非末轮，不可逆
func (e *Engine) AdvanceRound(caller string) (int, error) {
	if err := e.auth.Require(RoleRoundManager, caller); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var next int
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if !st.RoundsInitialized {
			return ErrNotInitialized
		}

		round, err := loadRound(tx, st.CurrentRound)
		if err != nil {
			return err
		}
		if !round.Finalized {
			return Errorf(KindStateConflict, "round %d is not finalized", round.Index)
		}
		if st.CurrentRound >= e.roundCount()-1 {
			return Errorf(KindStateConflict, "round %d is the last round", round.Index)
		}

		st.CurrentRound++
		if err := tx.Save(st).Error; err != nil {
			return err
		}

		next = st.CurrentRound
		return emitEvent(tx, model.EventRoundAdvanced, caller, next, "", nil)
	})
	if err != nil {
		return 0, err
	}

	e.publish(model.EventRoundAdvanced, map[string]interface{}{"round": next})
	return next, nil
}

// lastRoundFinalized 全部轮次完成（TGE/退款启用的前置条件）
func (e *Engine) lastRoundFinalized(tx *gorm.DB, st *model.PresaleState) (bool, error) {
	if !st.RoundsInitialized || st.CurrentRound != e.roundCount()-1 {
		return false, nil
	}
	round, err := loadRound(tx, st.CurrentRound)
	if err != nil {
		return false, err
	}
	return round.Finalized, nil
}

package presale

import (
	"math/big"

	"github.com/blues/pss/internal/model"
	"gorm.io/gorm"
)

// UpdateHourlyLimit 调整每地址小时贡献限额，需落在配置的上下界内
func (e *Engine) UpdateHourlyLimit(caller string, limit *big.Int) error {
	if err := e.auth.Require(RoleAdmin, caller); err != nil {
		return err
	}
	caller = normalizeAddress(caller)
	if limit == nil || limit.Sign() <= 0 {
		return Errorf(KindInvalidConfiguration, "hourly limit must be positive")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.db.Transaction(func(tx *gorm.DB) error {
		min, err := ParseAmount(e.cfg.HourlyLimitMin)
		if err != nil {
			return err
		}
		max, err := ParseAmount(e.cfg.HourlyLimitMax)
		if err != nil {
			return err
		}
		if limit.Cmp(min) < 0 || limit.Cmp(max) > 0 {
			return Errorf(KindInvalidConfiguration, "hourly limit %s outside [%s, %s]", limit, min, max)
		}

		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		st.HourlyLimit = limit.String()
		if err := tx.Save(st).Error; err != nil {
			return err
		}
		return emitEvent(tx, model.EventRateLimitUpdated, caller, -1, limit.String(), nil)
	})
	if err != nil {
		return err
	}

	e.publish(model.EventRateLimitUpdated, map[string]interface{}{
		"updated_by": caller,
		"limit":      limit.String(),
	})
	return nil
}

// Pause 暂停贡献入口，不影响领取与退款
func (e *Engine) Pause(caller string) error {
	if err := e.auth.Require(RoleAdmin, caller); err != nil {
		return err
	}
	caller = normalizeAddress(caller)

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if st.Paused {
			return Errorf(KindStateConflict, "already paused")
		}
		st.Paused = true
		if err := tx.Save(st).Error; err != nil {
			return err
		}
		return emitEvent(tx, model.EventPaused, caller, -1, "", nil)
	})
	if err != nil {
		return err
	}

	e.publish(model.EventPaused, map[string]interface{}{"paused_by": caller})
	return nil
}

// Unpause 恢复贡献入口
func (e *Engine) Unpause(caller string) error {
	if err := e.auth.Require(RoleAdmin, caller); err != nil {
		return err
	}
	caller = normalizeAddress(caller)

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		if !st.Paused {
			return Errorf(KindStateConflict, "not paused")
		}
		st.Paused = false
		if err := tx.Save(st).Error; err != nil {
			return err
		}
		return emitEvent(tx, model.EventUnpaused, caller, -1, "", nil)
	})
	if err != nil {
		return err
	}

	e.publish(model.EventUnpaused, map[string]interface{}{"unpaused_by": caller})
	return nil
}

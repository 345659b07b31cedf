package presale

import (
	"github.com/blues/pss/internal/model"
	"gorm.io/gorm"
)

// RequestEnableTGE 发起启用 TGE 的时间锁请求
// 前置：TGE 未启用、退款未启用、末轮已终结、无同类待执行请求
// eventTime 必须落在 [now, now+TGEMaxLead] 区间内
func (e *Engine) RequestEnableTGE(caller string, eventTime int64) error {
	if err := e.auth.Require(RoleEventEnabler, caller); err != nil {
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
			return Errorf(KindStateConflict, "token generation event already enabled")
		}
		if st.RefundEnabled {
			return Errorf(KindStateConflict, "cannot enable token generation event while refunds are enabled")
		}
		done, err := e.lastRoundFinalized(tx, st)
		if err != nil {
			return err
		}
		if !done {
			return Errorf(KindStateConflict, "final round not yet finalized")
		}
		if eventTime < now {
			return Errorf(KindTemporalViolation, "event time is in the past")
		}
		if eventTime > now+e.cfg.TGEMaxLead {
			return Errorf(KindTemporalViolation, "event time exceeds maximum lead of %d seconds", e.cfg.TGEMaxLead)
		}
		existing, err := pendingRequest(tx, model.TimelockActionEnableTGE)
		if err != nil {
			return err
		}
		if existing != nil {
			return Errorf(KindStateConflict, "an enable-tge request is already pending")
		}

		req := model.TimelockRequest{
			Action:      model.TimelockActionEnableTGE,
			RequestedAt: now,
			RequestedBy: caller,
			Status:      model.TimelockStatusPending,
			EventTime:   eventTime,
		}
		if err := tx.Create(&req).Error; err != nil {
			return err
		}
		return emitEvent(tx, model.EventTGERequested, caller, -1, "", map[string]interface{}{
			"event_time": eventTime,
		})
	})
	if err != nil {
		return err
	}

	e.publish(model.EventTGERequested, map[string]interface{}{
		"requested_by": caller,
		"event_time":   eventTime,
	})
	return nil
}

// ExecuteEnableTGE 执行已成熟的启用 TGE 请求
// 执行时重新校验互斥与时间前置（请求等待期内状态可能已变化）
func (e *Engine) ExecuteEnableTGE(caller string) error {
	if err := e.auth.Require(RoleEventEnabler, caller); err != nil {
		return err
	}
	caller = normalizeAddress(caller)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().Unix()
	var eventTime int64
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.loadState(tx)
		if err != nil {
			return err
		}
		req, err := pendingRequest(tx, model.TimelockActionEnableTGE)
		if err != nil {
			return err
		}
		if req == nil {
			return Errorf(KindStateConflict, "no pending enable-tge request")
		}
		if err := requireMatured(req, e.cfg.TGEDelay, now); err != nil {
			return err
		}
		if st.TGEEnabled {
			return Errorf(KindStateConflict, "token generation event already enabled")
		}
		if st.RefundEnabled {
			return Errorf(KindStateConflict, "cannot enable token generation event while refunds are enabled")
		}
		if req.EventTime < now {
			return Errorf(KindTemporalViolation, "requested event time has passed; cancel and re-request")
		}

		st.TGEEnabled = true
		st.TGETime = req.EventTime
		if err := tx.Save(st).Error; err != nil {
			return err
		}
		if err := markExecuted(tx, req); err != nil {
			return err
		}
		eventTime = req.EventTime
		return emitEvent(tx, model.EventTGEEnabled, caller, -1, "", map[string]interface{}{
			"event_time": req.EventTime,
		})
	})
	if err != nil {
		return err
	}

	e.publish(model.EventTGEEnabled, map[string]interface{}{
		"executed_by": caller,
		"event_time":  eventTime,
	})
	return nil
}

// CancelEnableTGE 取消待执行的启用 TGE 请求
func (e *Engine) CancelEnableTGE(caller string) error {
	if err := e.auth.Require(RoleEventEnabler, caller); err != nil {
		return err
	}
	caller = normalizeAddress(caller)

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.db.Transaction(func(tx *gorm.DB) error {
		req, err := pendingRequest(tx, model.TimelockActionEnableTGE)
		if err != nil {
			return err
		}
		if req == nil {
			return Errorf(KindStateConflict, "no pending enable-tge request")
		}
		if err := markCancelled(tx, req); err != nil {
			return err
		}
		return emitEvent(tx, model.EventTGECancelled, caller, -1, "", nil)
	})
	if err != nil {
		return err
	}

	e.publish(model.EventTGECancelled, map[string]interface{}{
		"cancelled_by": caller,
	})
	return nil
}

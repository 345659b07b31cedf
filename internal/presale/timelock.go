package presale

import (
	"github.com/blues/pss/internal/model"
	"gorm.io/gorm"
)

// 时间锁辅助函数
// enable_tge / emergency_withdraw 为单例请求：同类待执行请求同一时刻至多一条
// withdraw 为多实例请求：以自增 nonce 区分，可并存多条待执行

// pendingRequest 查找某动作下待执行的单例请求
func pendingRequest(tx *gorm.DB, action string) (*model.TimelockRequest, error) {
	var req model.TimelockRequest
	err := tx.Where("action = ? AND status = ?", action, model.TimelockStatusPending).First(&req).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// pendingByNonce 按 nonce 查找待执行请求
func pendingByNonce(tx *gorm.DB, action string, nonce int64) (*model.TimelockRequest, error) {
	var req model.TimelockRequest
	err := tx.Where("action = ? AND nonce = ? AND status = ?", action, nonce, model.TimelockStatusPending).First(&req).Error
	if err == gorm.ErrRecordNotFound {
		return nil, Errorf(KindStateConflict, "no pending %s request with nonce %d", action, nonce)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// nextNonce 某动作下的下一个请求序号
func nextNonce(tx *gorm.DB, action string) (int64, error) {
	var max int64
	err := tx.Model(&model.TimelockRequest{}).
		Where("action = ?", action).
		Select("COALESCE(MAX(nonce), -1)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// requireMatured 校验请求已过其动作的时间锁延迟
func requireMatured(req *model.TimelockRequest, delay, now int64) error {
	readyAt := req.RequestedAt + delay
	if now < readyAt {
		return Errorf(KindTemporalViolation, "%s request not ready: %d seconds remaining", req.Action, readyAt-now)
	}
	return nil
}

// markExecuted 标记请求已执行
func markExecuted(tx *gorm.DB, req *model.TimelockRequest) error {
	req.Status = model.TimelockStatusExecuted
	return tx.Save(req).Error
}

// markCancelled 标记请求已取消
func markCancelled(tx *gorm.DB, req *model.TimelockRequest) error {
	req.Status = model.TimelockStatusCancelled
	return tx.Save(req).Error
}

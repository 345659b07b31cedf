package presale

import (
	"gorm.io/gorm"
)

// StalledRound 检测窗口已过却未终结的当前轮
// 轮次终结与游标推进始终由特权调用完成，调度任务只做观察告警
// 返回滞留轮次下标与是否存在滞留
func (e *Engine) StalledRound() (int, bool, error) {
	now := e.now().Unix()
	var index int
	var stalled bool
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.readState(tx)
		if err != nil {
			return err
		}
		if !st.RoundsInitialized || st.CurrentRound >= e.roundCount() {
			return nil
		}
		round, err := loadRound(tx, st.CurrentRound)
		if err != nil {
			return err
		}
		if !round.Finalized && now > round.EndTime {
			index = round.Index
			stalled = true
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return index, stalled, nil
}

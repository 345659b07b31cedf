package presale

import (
	"github.com/blues/pss/internal/model"
	"gorm.io/gorm"
)

// Stats 全局统计视图
type Stats struct {
	RoundsInitialized bool   `json:"rounds_initialized"`
	CurrentRound      int    `json:"current_round"`
	Paused            bool   `json:"paused"`
	TGEEnabled        bool   `json:"tge_enabled"`
	TGETime           int64  `json:"tge_time"`
	RefundEnabled     bool   `json:"refund_enabled"`
	RefundDeadline    int64  `json:"refund_deadline"`
	TotalParticipants int64  `json:"total_participants"`
	TotalRaised       string `json:"total_raised"`
	TotalAllocated    string `json:"total_allocated"`
	TotalClaimed      string `json:"total_claimed"`
	TotalWithdrawn    string `json:"total_withdrawn"`
	HourlyLimit       string `json:"hourly_limit"`
	SoftCap           string `json:"soft_cap"`
	HardCap           string `json:"hard_cap"`
}

// RoundView 轮次视图
type RoundView struct {
	Index            int    `json:"index"`
	Price            string `json:"price"`
	Target           string `json:"target"`
	Raised           string `json:"raised"`
	StartTime        int64  `json:"start_time"`
	EndTime          int64  `json:"end_time"`
	TGEUnlockPercent int    `json:"tge_unlock_percent"`
	BonusPercent     int    `json:"bonus_percent"`
	Finalized        bool   `json:"finalized"`
	Active           bool   `json:"active"`
}

// ContributionView 参与者贡献视图（含轮次明细与当前可领取额）
type ContributionView struct {
	Address         string                 `json:"address"`
	TotalPayment    string                 `json:"total_payment"`
	TotalAllocation string                 `json:"total_allocation"`
	TotalBonus      string                 `json:"total_bonus"`
	TGEUnlockAmount string                 `json:"tge_unlock_amount"`
	VestedAmount    string                 `json:"vested_amount"`
	ClaimedAmount   string                 `json:"claimed_amount"`
	Claimable       string                 `json:"claimable"`
	RefundClaimed   bool                   `json:"refund_claimed"`
	Rounds          []RoundContributionRow `json:"rounds"`
}

// RoundContributionRow 单轮明细行
type RoundContributionRow struct {
	RoundIndex int    `json:"round_index"`
	Payment    string `json:"payment"`
	Allocation string `json:"allocation"`
}

// GetStats 读取全局统计
func (e *Engine) GetStats() (*Stats, error) {
	var stats Stats
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.readState(tx)
		if err != nil {
			return err
		}
		stats = Stats{
			RoundsInitialized: st.RoundsInitialized,
			CurrentRound:      st.CurrentRound,
			Paused:            st.Paused,
			TGEEnabled:        st.TGEEnabled,
			TGETime:           st.TGETime,
			RefundEnabled:     st.RefundEnabled,
			RefundDeadline:    st.RefundDeadline,
			TotalParticipants: st.TotalParticipants,
			TotalRaised:       st.TotalRaised,
			TotalAllocated:    st.TotalAllocated,
			TotalClaimed:      st.TotalClaimed,
			TotalWithdrawn:    st.TotalWithdrawn,
			HourlyLimit:       st.HourlyLimit,
			SoftCap:           e.cfg.SoftCap,
			HardCap:           e.cfg.HardCap,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetRounds 读取全部轮次
func (e *Engine) GetRounds() ([]RoundView, error) {
	var views []RoundView
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.readState(tx)
		if err != nil {
			return err
		}
		var rounds []model.Round
		if err := tx.Order("round_index asc").Find(&rounds).Error; err != nil {
			return err
		}
		now := e.now().Unix()
		views = make([]RoundView, 0, len(rounds))
		for _, r := range rounds {
			views = append(views, RoundView{
				Index:            r.Index,
				Price:            r.Price,
				Target:           r.Target,
				Raised:           r.Raised,
				StartTime:        r.StartTime,
				EndTime:          r.EndTime,
				TGEUnlockPercent: r.TGEUnlockPercent,
				BonusPercent:     r.BonusPercent,
				Finalized:        r.Finalized,
				Active:           st.RoundsInitialized && r.Index == st.CurrentRound && !r.Finalized && now >= r.StartTime && now <= r.EndTime,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// GetCurrentRound 读取当前轮次视图，全部轮次结束后返回 ErrPresaleEnded
func (e *Engine) GetCurrentRound() (*RoundView, error) {
	var view *RoundView
	err := e.db.Transaction(func(tx *gorm.DB) error {
		st, err := e.readState(tx)
		if err != nil {
			return err
		}
		if !st.RoundsInitialized {
			return ErrNotInitialized
		}
		if st.CurrentRound >= e.roundCount() {
			return ErrPresaleEnded
		}
		r, err := loadRound(tx, st.CurrentRound)
		if err != nil {
			return err
		}
		now := e.now().Unix()
		view = &RoundView{
			Index:            r.Index,
			Price:            r.Price,
			Target:           r.Target,
			Raised:           r.Raised,
			StartTime:        r.StartTime,
			EndTime:          r.EndTime,
			TGEUnlockPercent: r.TGEUnlockPercent,
			BonusPercent:     r.BonusPercent,
			Finalized:        r.Finalized,
			Active:           !r.Finalized && now >= r.StartTime && now <= r.EndTime,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// GetContribution 读取地址的贡献视图，未参与的地址返回零值视图
func (e *Engine) GetContribution(addr string) (*ContributionView, error) {
	addr = normalizeAddress(addr)
	view := &ContributionView{
		Address:         addr,
		TotalPayment:    "0",
		TotalAllocation: "0",
		TotalBonus:      "0",
		TGEUnlockAmount: "0",
		VestedAmount:    "0",
		ClaimedAmount:   "0",
		Claimable:       "0",
		Rounds:          []RoundContributionRow{},
	}
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var p model.Participant
		if err := tx.Where("address = ?", addr).First(&p).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		view.TotalPayment = p.TotalPayment
		view.TotalAllocation = p.TotalAllocation
		view.TotalBonus = p.TotalBonus
		view.TGEUnlockAmount = p.TGEUnlockAmount
		view.VestedAmount = p.VestedAmount
		view.ClaimedAmount = p.ClaimedAmount
		view.RefundClaimed = p.RefundClaimed

		var rcs []model.RoundContribution
		if err := tx.Where("address = ?", addr).Order("round_index asc").Find(&rcs).Error; err != nil {
			return err
		}
		for _, rc := range rcs {
			view.Rounds = append(view.Rounds, RoundContributionRow{
				RoundIndex: rc.RoundIndex,
				Payment:    rc.Payment,
				Allocation: rc.Allocation,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	claimable, err := e.Claimable(addr)
	if err != nil {
		return nil, err
	}
	view.Claimable = claimable.String()
	return view, nil
}

// GetEvents 分页读取事件记录，type 为空时不过滤
func (e *Engine) GetEvents(eventType string, page, pageSize int) ([]model.PresaleEvent, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	q := e.db.Model(&model.PresaleEvent{})
	if eventType != "" {
		q = q.Where("type = ?", eventType)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var events []model.PresaleEvent
	if err := q.Order("id desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

package presale

import (
	"math/big"
)

// Decimals 两种资产的最小单位精度
const Decimals = 18

// scale 定点换算系数 10^18
var scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Allocation 单笔贡献的分配结果（全部为 wei）
type Allocation struct {
	Base        *big.Int // 按轮次价格折算的基础分配
	Bonus       *big.Int // 奖励部分，TGE 时全部解锁
	Total       *big.Int // Base + Bonus
	EventUnlock *big.Int // TGE 解锁量 = floor(Base*tge%) + Bonus
	Vested      *big.Int // 进入线性释放的部分 = Base - floor(Base*tge%)
}

// ComputeAllocation 纯函数：支付金额 + 轮次价格/比例 -> 分配结果
// 基础分配除法向上取整，始终偏向参与者
func ComputeAllocation(payment, price *big.Int, bonusPercent, tgeUnlockPercent int) Allocation {
	base := ceilDiv(new(big.Int).Mul(payment, scale), price)
	bonus := percentOf(base, bonusPercent)
	baseUnlock := percentOf(base, tgeUnlockPercent)

	return Allocation{
		Base:        base,
		Bonus:       bonus,
		Total:       new(big.Int).Add(base, bonus),
		EventUnlock: new(big.Int).Add(baseUnlock, bonus),
		Vested:      new(big.Int).Sub(base, baseUnlock),
	}
}

// UnlockedAt 截至 now 的累计解锁量：TGE解锁 + 线性释放部分
// 释放中的分子除法同样向上取整（偏向参与者）
func UnlockedAt(tgeUnlock, vested *big.Int, tgeTime, now, vestingDuration int64) *big.Int {
	unlocked := new(big.Int).Set(tgeUnlock)
	if now <= tgeTime || vested.Sign() <= 0 {
		return unlocked
	}

	elapsed := now - tgeTime
	if elapsed >= vestingDuration {
		return unlocked.Add(unlocked, vested)
	}

	released := ceilDiv(new(big.Int).Mul(vested, big.NewInt(elapsed)), big.NewInt(vestingDuration))
	return unlocked.Add(unlocked, released)
}

// ClaimableAt 可领取量 = 累计解锁 - 已领取，下限为0
// 减法永不报错：取整导致的理论下溢按0处理
func ClaimableAt(tgeUnlock, vested, claimed *big.Int, tgeTime, now, vestingDuration int64) *big.Int {
	claimable := UnlockedAt(tgeUnlock, vested, tgeTime, now, vestingDuration)
	claimable.Sub(claimable, claimed)
	if claimable.Sign() < 0 {
		return big.NewInt(0)
	}
	return claimable
}

package presale

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad test amount: " + s)
	}
	return v
}

func TestComputeAllocation(t *testing.T) {
	// price 0.06 payment-units per whole token, bonus 15%, unlock 50%,
	// contribute 1000 payment-units
	payment := wei("1000000000000000000000")
	price := wei("60000000000000000")

	alloc := ComputeAllocation(payment, price, 15, 50)

	// 1000 / 0.06 = 16666.66... rounds up to the next smallest unit
	assert.Equal(t, "16666666666666666666667", alloc.Base.String())
	// 15% of base, floored
	assert.Equal(t, "2500000000000000000000", alloc.Bonus.String())
	assert.Equal(t, "19166666666666666666667", alloc.Total.String())
	// 50% of base floored, plus the full bonus
	assert.Equal(t, "10833333333333333333333", alloc.EventUnlock.String())
	assert.Equal(t, "8333333333333333333334", alloc.Vested.String())

	// event unlock plus vesting covers the whole allocation
	sum := new(big.Int).Add(alloc.EventUnlock, alloc.Vested)
	assert.Equal(t, alloc.Total.String(), sum.String())
}

func TestComputeAllocationExactDivision(t *testing.T) {
	payment := wei("600000000000000000000") // 600
	price := wei("60000000000000000")       // 0.06

	alloc := ComputeAllocation(payment, price, 0, 100)

	assert.Equal(t, "10000000000000000000000", alloc.Base.String())
	assert.Equal(t, "0", alloc.Bonus.String())
	assert.Equal(t, alloc.Base.String(), alloc.EventUnlock.String())
	assert.Equal(t, "0", alloc.Vested.String())
}

func TestRoundingLaw(t *testing.T) {
	cases := []struct {
		payment string
		price   string
	}{
		{"1", "3000000000000000000"},
		{"999999999999999999", "7"},
		{"1000000000000000000", "1000000000000000000"},
		{"123456789", "987654321"},
		{"5000000000000000000000", "60000000000000000"},
	}

	for _, tc := range cases {
		payment := wei(tc.payment)
		price := wei(tc.price)
		scaled := new(big.Int).Mul(payment, scale)

		up := ceilDiv(scaled, price)
		down := new(big.Int).Div(scaled, price)
		rem := new(big.Int).Mod(scaled, price)

		assert.True(t, up.Cmp(down) >= 0, "ceil must be >= floor for %s/%s", tc.payment, tc.price)
		if rem.Sign() == 0 {
			assert.Equal(t, down.String(), up.String(), "exact division must not round up")
		} else {
			diff := new(big.Int).Sub(up, down)
			assert.Equal(t, "1", diff.String(), "inexact division rounds up by exactly one unit")
		}
	}
}

func TestUnlockedAtBeforeEvent(t *testing.T) {
	tgeUnlock := wei("100")
	vested := wei("900")

	// at or before the event, only the event unlock is available
	assert.Equal(t, "100", UnlockedAt(tgeUnlock, vested, 1000, 1000, 600).String())
	assert.Equal(t, "100", UnlockedAt(tgeUnlock, vested, 1000, 500, 600).String())
}

func TestUnlockedAtLinear(t *testing.T) {
	tgeUnlock := wei("100")
	vested := wei("900")

	// one third elapsed: 100 + ceil(900 * 200 / 600) = 400
	assert.Equal(t, "400", UnlockedAt(tgeUnlock, vested, 1000, 1200, 600).String())

	// inexact fraction rounds up in the participant's favor
	// 100 + ceil(900 * 7 / 600) = 100 + 11
	assert.Equal(t, "111", UnlockedAt(tgeUnlock, vested, 1000, 1007, 600).String())

	// fully elapsed
	assert.Equal(t, "1000", UnlockedAt(tgeUnlock, vested, 1000, 1600, 600).String())
	assert.Equal(t, "1000", UnlockedAt(tgeUnlock, vested, 1000, 99999, 600).String())
}

func TestUnlockedAtMonotonic(t *testing.T) {
	tgeUnlock := wei("123")
	vested := wei("877")

	prev := big.NewInt(0)
	for now := int64(900); now <= 2200; now += 17 {
		cur := UnlockedAt(tgeUnlock, vested, 1000, now, 1000)
		require.True(t, cur.Cmp(prev) >= 0, "unlocked amount decreased at now=%d", now)
		prev = cur
	}
}

func TestClaimableAt(t *testing.T) {
	tgeUnlock := wei("100")
	vested := wei("900")

	// nothing claimed yet, fully vested
	assert.Equal(t, "1000", ClaimableAt(tgeUnlock, vested, big.NewInt(0), 1000, 9999, 600).String())

	// partial claim deducted
	assert.Equal(t, "600", ClaimableAt(tgeUnlock, vested, wei("400"), 1000, 9999, 600).String())

	// over-claimed (theoretical rounding drift) floors at zero instead of going negative
	assert.Equal(t, "0", ClaimableAt(tgeUnlock, vested, wei("1001"), 1000, 9999, 600).String())
}

func TestClaimableFullAfterVesting(t *testing.T) {
	// after the vesting duration fully elapses the claimable amount equals
	// the entire allocation minus whatever was already claimed
	alloc := ComputeAllocation(wei("1000000000000000000000"), wei("60000000000000000"), 15, 50)

	tgeTime := int64(1_700_000_000)
	vestingDuration := int64(10 * 30 * 24 * 3600)
	after := tgeTime + vestingDuration + 1

	claimed := wei("5000000000000000000000")
	claimable := ClaimableAt(alloc.EventUnlock, alloc.Vested, claimed, tgeTime, after, vestingDuration)

	expected := new(big.Int).Sub(alloc.Total, claimed)
	assert.Equal(t, expected.String(), claimable.String())
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", v.String())

	_, err = ParseAmount("")
	assert.Error(t, err)
	assert.Equal(t, KindInvalidConfiguration, KindOf(err))

	_, err = ParseAmount("-5")
	assert.Error(t, err)

	_, err = ParseAmount("12.5")
	assert.Error(t, err)
}

package presale

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/blues/pss/internal/config"
	"github.com/blues/pss/internal/database"
	"github.com/blues/pss/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	adminAddr    = "0xaaaa000000000000000000000000000000000001"
	managerAddr  = "0xaaaa000000000000000000000000000000000002"
	enablerAddr  = "0xaaaa000000000000000000000000000000000003"
	treasuryAddr = "0xaaaa000000000000000000000000000000000004"
	custodyAddr  = "0xcccc000000000000000000000000000000000001"

	aliceAddr = "0xbbbb000000000000000000000000000000000001"
	bobAddr   = "0xbbbb000000000000000000000000000000000002"
	carolAddr = "0xbbbb000000000000000000000000000000000003"
)

// fakeLedger is an in-memory token ledger for exercising the engine without a chain.
type fakeLedger struct {
	mu       sync.Mutex
	owner    string
	balances map[string]*big.Int
	fail     bool
}

func newFakeLedger(owner string) *fakeLedger {
	return &fakeLedger{owner: owner, balances: map[string]*big.Int{}}
}

func (f *fakeLedger) balance(holder string) *big.Int {
	if b, ok := f.balances[holder]; ok {
		return b
	}
	b := big.NewInt(0)
	f.balances[holder] = b
	return b
}

func (f *fakeLedger) setBalance(holder, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, _ := new(big.Int).SetString(amount, 10)
	f.balances[holder] = v
}

func (f *fakeLedger) TransferFrom(_ context.Context, from, to string, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("ledger rejected transfer_from")
	}
	f.balance(from).Sub(f.balance(from), amount)
	f.balance(to).Add(f.balance(to), amount)
	return nil
}

func (f *fakeLedger) Transfer(_ context.Context, to string, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("ledger rejected transfer")
	}
	f.balance(f.owner).Sub(f.balance(f.owner), amount)
	f.balance(to).Add(f.balance(to), amount)
	return nil
}

func (f *fakeLedger) BalanceOf(_ context.Context, holder string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance(holder)), nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) set(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(unix, 0)
}

func testPresaleConfig() *config.PresaleConfig {
	return &config.PresaleConfig{
		Rounds: []config.RoundConfig{
			{Price: "1000000000000000000", Target: "2000", BonusPercent: 10, TGEUnlockPercent: 50},
			{Price: "2000000000000000000", Target: "1000", BonusPercent: 0, TGEUnlockPercent: 40},
		},
		MinContribution:    "100",
		MaxContribution:    "1500",
		SoftCap:            "2500",
		HardCap:            "3000",
		WhalePercent:       25,
		HourlyLimit:        "500",
		HourlyLimitMin:     "100",
		HourlyLimitMax:     "2000",
		CooldownBlocks:     2,
		VestingDuration:    1000,
		RefundWindow:       3600,
		TGEMaxLead:         86400,
		WithdrawDelay:      100,
		TGEDelay:           100,
		EmergencyDelay:     200,
		DailyWithdrawLimit: "1500",
		Treasury:           treasuryAddr,
	}
}

type testEnv struct {
	engine     *Engine
	db         *gorm.DB
	clock      *testClock
	payment    *fakeLedger
	allocation *fakeLedger
	cfg        *config.PresaleConfig
	block      *uint64
	roundEnds  []int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := testPresaleConfig()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	payment := newFakeLedger(custodyAddr)
	allocation := newFakeLedger(custodyAddr)
	block := uint64(100)

	auth := NewAuthContext(config.RolesConfig{
		Admin:        []string{adminAddr},
		RoundManager: []string{managerAddr},
		EventEnabler: []string{enablerAddr},
		Treasury:     []string{treasuryAddr},
	})

	env := &testEnv{
		db:         db,
		clock:      clock,
		payment:    payment,
		allocation: allocation,
		cfg:        cfg,
		block:      &block,
	}
	env.engine = New(db, cfg, auth, payment, allocation, custodyAddr,
		WithClock(clock.Now),
		WithBlockNumber(func(context.Context) (uint64, error) {
			return *env.block, nil
		}),
	)
	return env
}

func (env *testEnv) mineBlocks(n uint64) {
	*env.block += n
}

// initRounds runs the standard two-round setup and moves the clock into round 0.
// Windows are generous so tests can space contributions over separate hours.
func (env *testEnv) initRounds(t *testing.T) {
	t.Helper()
	now := env.clock.Now().Unix()
	starts := []int64{now + 10, now + 200000}
	ends := []int64{now + 100000, now + 300000}
	require.NoError(t, env.engine.InitializeRounds(managerAddr, starts, ends))
	env.roundEnds = ends
	env.clock.advance(20 * time.Second)
}

// contribute is a helper that mines past the cooldown first.
func (env *testEnv) contribute(addr, amount string) (*Allocation, error) {
	env.mineBlocks(env.cfg.CooldownBlocks)
	v, _ := new(big.Int).SetString(amount, 10)
	return env.engine.Contribute(context.Background(), addr, v)
}

func (env *testEnv) stateRow(t *testing.T) *model.PresaleState {
	t.Helper()
	var st model.PresaleState
	require.NoError(t, env.db.First(&st, 1).Error)
	return &st
}

func (env *testEnv) roundRow(t *testing.T, index int) *model.Round {
	t.Helper()
	var r model.Round
	require.NoError(t, env.db.Where("round_index = ?", index).First(&r).Error)
	return &r
}

// fillRound pushes the given round to its target using distinct whale-sized
// contributions spaced over separate hours.
func (env *testEnv) fillRound(t *testing.T, addrs []string, per string, times int) {
	t.Helper()
	i := 0
	for n := 0; n < times; n++ {
		addr := addrs[i%len(addrs)]
		i++
		_, err := env.contribute(addr, per)
		require.NoError(t, err)
		env.clock.advance(time.Hour)
	}
}

func TestInitializeRoundsValidation(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now().Unix()

	// wrong role
	err := env.engine.InitializeRounds(aliceAddr, []int64{now + 10, now + 2000}, []int64{now + 1000, now + 3000})
	assert.Equal(t, KindAuthorizationFailure, KindOf(err))

	// wrong count
	err = env.engine.InitializeRounds(managerAddr, []int64{now + 10}, []int64{now + 1000})
	assert.Equal(t, KindInvalidConfiguration, KindOf(err))

	// start in the past
	err = env.engine.InitializeRounds(managerAddr, []int64{now - 1, now + 2000}, []int64{now + 1000, now + 3000})
	assert.Equal(t, KindTemporalViolation, KindOf(err))

	// overlapping windows
	err = env.engine.InitializeRounds(managerAddr, []int64{now + 10, now + 500}, []int64{now + 1000, now + 3000})
	assert.Equal(t, KindTemporalViolation, KindOf(err))

	// valid
	require.NoError(t, env.engine.InitializeRounds(managerAddr, []int64{now + 10, now + 2000}, []int64{now + 1000, now + 3000}))

	// double initialization
	err = env.engine.InitializeRounds(managerAddr, []int64{now + 10, now + 2000}, []int64{now + 1000, now + 3000})
	assert.Equal(t, KindInvalidConfiguration, KindOf(err))
}

func TestInitializeRoundsTargetSumMustEqualHardCap(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.HardCap = "9999"
	now := env.clock.Now().Unix()

	err := env.engine.InitializeRounds(managerAddr, []int64{now + 10, now + 2000}, []int64{now + 1000, now + 3000})
	assert.Equal(t, KindInvalidConfiguration, KindOf(err))
}

func TestContributeBeforeInitialization(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.contribute(aliceAddr, "100")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestContributeHappyPath(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)
	env.payment.setBalance(aliceAddr, "10000")

	alloc, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)

	// price 1.0, bonus 10%, unlock 50%
	assert.Equal(t, "500", alloc.Base.String())
	assert.Equal(t, "50", alloc.Bonus.String())
	assert.Equal(t, "550", alloc.Total.String())
	assert.Equal(t, "300", alloc.EventUnlock.String())
	assert.Equal(t, "250", alloc.Vested.String())

	st := env.stateRow(t)
	assert.Equal(t, "500", st.TotalRaised)
	assert.Equal(t, "550", st.TotalAllocated)
	assert.Equal(t, int64(1), st.TotalParticipants)

	round := env.roundRow(t, 0)
	assert.Equal(t, "500", round.Raised)
	assert.False(t, round.Finalized)

	// payment moved into custody
	bal, err := env.payment.BalanceOf(context.Background(), custodyAddr)
	require.NoError(t, err)
	assert.Equal(t, "500", bal.String())
}

func TestContributeBelowMinimum(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "99")
	assert.Equal(t, KindCapacityExceeded, KindOf(err))

	// zero state change
	st := env.stateRow(t)
	assert.Equal(t, "0", st.TotalRaised)
	assert.Equal(t, int64(0), st.TotalParticipants)
	var count int64
	env.db.Model(&model.Participant{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestContributeWalletCap(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	// wallet cap is 1500; whale cap per tx is 25% of 2000 = 500
	for i := 0; i < 3; i++ {
		_, err := env.contribute(aliceAddr, "500")
		require.NoError(t, err)
		env.clock.advance(time.Hour)
	}

	_, err := env.contribute(aliceAddr, "500")
	assert.Equal(t, KindCapacityExceeded, KindOf(err))

	// the three accepted contributions stand unchanged
	st := env.stateRow(t)
	assert.Equal(t, "1500", st.TotalRaised)
}

func TestContributeWhaleCap(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	// 25% of the 2000 round target is 500
	_, err := env.contribute(aliceAddr, "501")
	assert.Equal(t, KindCapacityExceeded, KindOf(err))
}

func TestContributeHourlyLimit(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "300")
	require.NoError(t, err)

	// 300 + 300 exceeds the 500 hourly limit within the same bucket
	_, err = env.contribute(aliceAddr, "300")
	assert.Equal(t, KindCapacityExceeded, KindOf(err))

	// next hour the bucket resets
	env.clock.advance(time.Hour)
	_, err = env.contribute(aliceAddr, "300")
	require.NoError(t, err)
}

func TestContributeCooldown(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "200")
	require.NoError(t, err)
	env.clock.advance(time.Hour)

	// same block distance below the cooldown
	env.mineBlocks(1)
	v := big.NewInt(200)
	_, err = env.engine.Contribute(context.Background(), aliceAddr, v)
	assert.Equal(t, KindCapacityExceeded, KindOf(err))

	// one more block satisfies the two-block distance
	env.mineBlocks(1)
	_, err = env.engine.Contribute(context.Background(), aliceAddr, v)
	require.NoError(t, err)
}

func TestCooldownMarkerOnlyUpdatedOnSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "200")
	require.NoError(t, err)
	markerBlock := *env.block
	env.clock.advance(time.Hour)

	// a rejected contribution (below minimum) must not consume the cooldown window
	env.mineBlocks(env.cfg.CooldownBlocks)
	_, err = env.engine.Contribute(context.Background(), aliceAddr, big.NewInt(1))
	assert.Equal(t, KindCapacityExceeded, KindOf(err))

	var marker model.CooldownMarker
	require.NoError(t, env.db.Where("address = ?", aliceAddr).First(&marker).Error)
	assert.Equal(t, markerBlock, marker.LastBlock)
}

func TestContributeOutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now().Unix()
	require.NoError(t, env.engine.InitializeRounds(managerAddr,
		[]int64{now + 100, now + 2000}, []int64{now + 1000, now + 3000}))

	// before start
	_, err := env.contribute(aliceAddr, "200")
	assert.Equal(t, KindTemporalViolation, KindOf(err))

	// after end
	env.clock.advance(1100 * time.Second)
	_, err = env.contribute(aliceAddr, "200")
	assert.Equal(t, KindTemporalViolation, KindOf(err))
}

func TestRoundAutoFinalizeAtTarget(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	// four 500-unit contributions bring raised exactly to the 2000 target
	env.fillRound(t, []string{aliceAddr, bobAddr, carolAddr, treasuryAddr}, "500", 4)

	round := env.roundRow(t, 0)
	assert.True(t, round.Finalized)
	assert.Equal(t, "2000", round.Raised)

	// no further contributions even inside the time window
	_, err := env.contribute(enablerAddr, "100")
	assert.Equal(t, KindStateConflict, KindOf(err))
}

func TestRoundCapacityGuard(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	env.fillRound(t, []string{aliceAddr, bobAddr, carolAddr}, "500", 3)
	_, err := env.contribute(treasuryAddr, "300")
	require.NoError(t, err)
	env.clock.advance(time.Hour)

	// 1800 raised; 300 more would overflow the 2000 target
	_, err = env.contribute(enablerAddr, "300")
	assert.Equal(t, KindCapacityExceeded, KindOf(err))

	// the exact remainder is still accepted and closes out the round
	_, err = env.contribute(enablerAddr, "200")
	require.NoError(t, err)

	round := env.roundRow(t, 0)
	assert.True(t, round.Finalized)
	assert.Equal(t, "2000", round.Raised)
}

func TestGlobalHardCapGuard(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	// a hard cap below the round target makes the global check bite first
	env.cfg.HardCap = "400"
	_, err := env.contribute(aliceAddr, "450")
	assert.Equal(t, KindCapacityExceeded, KindOf(err))
	assert.Contains(t, err.Error(), "hard cap")

	// nothing was recorded by the rejected contribution
	st := env.stateRow(t)
	assert.Equal(t, "0", st.TotalRaised)

	// amounts that fit under the cap still pass
	_, err = env.contribute(aliceAddr, "300")
	require.NoError(t, err)
}

func TestFinalizeAndAdvanceRound(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)

	// too early: window open and below target
	_, err = env.engine.FinalizeRound(managerAddr)
	assert.Equal(t, KindTemporalViolation, KindOf(err))

	// advance requires a finalized round
	_, err = env.engine.AdvanceRound(managerAddr)
	assert.Equal(t, KindStateConflict, KindOf(err))

	// after the window closes finalize succeeds
	env.clock.set(env.roundEnds[0] + 1)
	index, err := env.engine.FinalizeRound(managerAddr)
	require.NoError(t, err)
	assert.Equal(t, 0, index)

	next, err := env.engine.AdvanceRound(managerAddr)
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	// advancing past the last round is rejected
	env.clock.set(env.roundEnds[1] + 1)
	_, err = env.engine.FinalizeRound(managerAddr)
	require.NoError(t, err)
	_, err = env.engine.AdvanceRound(managerAddr)
	assert.Equal(t, KindStateConflict, KindOf(err))
}

func TestTransferFailureRollsBackContribution(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	env.payment.fail = true
	_, err := env.contribute(aliceAddr, "500")
	assert.Equal(t, KindTransferFailure, KindOf(err))

	// the whole transaction rolled back
	st := env.stateRow(t)
	assert.Equal(t, "0", st.TotalRaised)
	var count int64
	env.db.Model(&model.Participant{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestPauseBlocksContribute(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	require.NoError(t, env.engine.Pause(adminAddr))
	_, err := env.contribute(aliceAddr, "200")
	assert.ErrorIs(t, err, ErrPaused)

	require.NoError(t, env.engine.Unpause(adminAddr))
	_, err = env.contribute(aliceAddr, "200")
	require.NoError(t, err)
}

// finalizeAll moves the clock past each round's window and closes both out.
func (env *testEnv) finalizeAll(t *testing.T) {
	t.Helper()
	env.clock.set(env.roundEnds[0] + 1)
	_, err := env.engine.FinalizeRound(managerAddr)
	require.NoError(t, err)
	_, err = env.engine.AdvanceRound(managerAddr)
	require.NoError(t, err)
	env.clock.set(env.roundEnds[1] + 1)
	_, err = env.engine.FinalizeRound(managerAddr)
	require.NoError(t, err)
}

func TestPauseDoesNotBlockClaim(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)
	env.allocation.setBalance(custodyAddr, "10000")

	alloc, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)
	env.finalizeAll(t)

	tgeTime := env.clock.Now().Unix() + 500
	require.NoError(t, env.engine.RequestEnableTGE(enablerAddr, tgeTime))
	env.clock.advance(time.Duration(env.cfg.TGEDelay+1) * time.Second)
	require.NoError(t, env.engine.ExecuteEnableTGE(enablerAddr))
	env.clock.set(tgeTime)

	// the pause gates contributions only; vested claims stay open
	require.NoError(t, env.engine.Pause(adminAddr))

	claimed, err := env.engine.Claim(context.Background(), aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, alloc.EventUnlock.String(), claimed.String())
}

func TestPauseDoesNotBlockRefund(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)
	env.finalizeAll(t)

	_, err = env.engine.EnableRefunds(adminAddr)
	require.NoError(t, err)
	require.NoError(t, env.engine.Pause(adminAddr))

	refund, err := env.engine.ClaimRefund(context.Background(), aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, "500", refund.String())
}

func TestRefundFlow(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)
	env.payment.setBalance(aliceAddr, "1000")

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)
	env.clock.advance(time.Hour)
	_, err = env.contribute(bobAddr, "300")
	require.NoError(t, err)

	// soft cap (2500) not reached; close out all rounds
	env.finalizeAll(t)

	// refunds cannot be enabled by a non-admin
	_, err = env.engine.EnableRefunds(managerAddr)
	assert.Equal(t, KindAuthorizationFailure, KindOf(err))

	deadline, err := env.engine.EnableRefunds(adminAddr)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now().Unix()+env.cfg.RefundWindow, deadline)

	// seed a stray claimed amount to check the refund zeroes every column
	require.NoError(t, env.db.Model(&model.Participant{}).
		Where("address = ?", aliceAddr).
		Update("claimed_amount", "7").Error)

	// claim returns exactly the total payment
	refund, err := env.engine.ClaimRefund(context.Background(), aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, "500", refund.String())

	bal, _ := env.payment.BalanceOf(context.Background(), aliceAddr)
	assert.Equal(t, "1000", bal.String())

	// per-round raised and the global total both decreased
	st := env.stateRow(t)
	assert.Equal(t, "300", st.TotalRaised)
	assert.Equal(t, int64(1), st.TotalParticipants)
	round := env.roundRow(t, 0)
	assert.Equal(t, "300", round.Raised)

	// ledger zeroed, flag set
	var p model.Participant
	require.NoError(t, env.db.Where("address = ?", aliceAddr).First(&p).Error)
	assert.Equal(t, "0", p.TotalPayment)
	assert.Equal(t, "0", p.TotalAllocation)
	assert.Equal(t, "0", p.ClaimedAmount)
	assert.True(t, p.RefundClaimed)

	// double refund rejected
	_, err = env.engine.ClaimRefund(context.Background(), aliceAddr)
	assert.Equal(t, KindStateConflict, KindOf(err))
}

func TestRefundRequiresBelowSoftCap(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.SoftCap = "1000"
	env.initRounds(t)

	env.fillRound(t, []string{aliceAddr, bobAddr}, "500", 2)
	env.finalizeAll(t)

	_, err := env.engine.EnableRefunds(adminAddr)
	assert.Equal(t, KindStateConflict, KindOf(err))
}

func TestRefundWindowCloses(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)
	env.finalizeAll(t)

	_, err = env.engine.EnableRefunds(adminAddr)
	require.NoError(t, err)

	env.clock.advance(time.Duration(env.cfg.RefundWindow+1) * time.Second)
	_, err = env.engine.ClaimRefund(context.Background(), aliceAddr)
	assert.Equal(t, KindTemporalViolation, KindOf(err))

	// past the deadline the treasury can sweep what remains
	swept, err := env.engine.RecoverUnclaimedRefunds(context.Background(), treasuryAddr, treasuryAddr)
	require.NoError(t, err)
	assert.Equal(t, "500", swept.String())

	// the sweep counts as a withdrawal, so custody reconciliation stays clean:
	// raised minus withdrawn matches the emptied custody balance
	st := env.stateRow(t)
	assert.Equal(t, "500", st.TotalWithdrawn)
	bal, _ := env.payment.BalanceOf(context.Background(), custodyAddr)
	assert.Equal(t, "0", bal.String())
}

func TestRaisedConsistencyInvariant(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	check := func() {
		var rounds []model.Round
		require.NoError(t, env.db.Find(&rounds).Error)
		sum := big.NewInt(0)
		for _, r := range rounds {
			v, ok := new(big.Int).SetString(r.Raised, 10)
			require.True(t, ok)
			sum.Add(sum, v)
		}
		st := env.stateRow(t)
		assert.Equal(t, st.TotalRaised, sum.String(), "sum of round raised must equal total raised")
	}

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)
	check()
	env.clock.advance(time.Hour)

	_, err = env.contribute(bobAddr, "400")
	require.NoError(t, err)
	check()

	env.finalizeAll(t)
	_, err = env.engine.EnableRefunds(adminAddr)
	require.NoError(t, err)

	_, err = env.engine.ClaimRefund(context.Background(), aliceAddr)
	require.NoError(t, err)
	check()

	_, err = env.engine.ClaimRefund(context.Background(), bobAddr)
	require.NoError(t, err)
	check()
}

func TestTGEFlowAndClaim(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)
	env.allocation.setBalance(custodyAddr, "10000")

	alloc, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)

	// premature: rounds still open
	err = env.engine.RequestEnableTGE(enablerAddr, env.clock.Now().Unix()+500)
	assert.Equal(t, KindStateConflict, KindOf(err))

	env.finalizeAll(t)

	tgeTime := env.clock.Now().Unix() + 500
	require.NoError(t, env.engine.RequestEnableTGE(enablerAddr, tgeTime))

	// a second pending request is rejected
	err = env.engine.RequestEnableTGE(enablerAddr, tgeTime)
	assert.Equal(t, KindStateConflict, KindOf(err))

	// timelock not yet matured
	err = env.engine.ExecuteEnableTGE(enablerAddr)
	assert.Equal(t, KindTemporalViolation, KindOf(err))

	env.clock.advance(time.Duration(env.cfg.TGEDelay+1) * time.Second)
	require.NoError(t, env.engine.ExecuteEnableTGE(enablerAddr))

	// nothing claimable before the event time
	claimable, err := env.engine.Claimable(aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, "0", claimable.String())

	// exactly at the event time the event unlock alone is claimable
	env.clock.set(tgeTime)
	claimed, err := env.engine.Claim(context.Background(), aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, alloc.EventUnlock.String(), claimed.String())

	bal, _ := env.allocation.BalanceOf(context.Background(), aliceAddr)
	assert.Equal(t, alloc.EventUnlock.String(), bal.String())

	// immediate second claim yields nothing
	_, err = env.engine.Claim(context.Background(), aliceAddr)
	assert.ErrorIs(t, err, ErrNothingToClaim)

	// after the vesting duration the remainder is claimable
	env.clock.advance(time.Duration(env.cfg.VestingDuration+1) * time.Second)
	claimed, err = env.engine.Claim(context.Background(), aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, alloc.Vested.String(), claimed.String())

	st := env.stateRow(t)
	assert.Equal(t, alloc.Total.String(), st.TotalClaimed)
	assert.Equal(t, st.TotalAllocated, st.TotalClaimed)

	// fully claimed
	_, err = env.engine.Claim(context.Background(), aliceAddr)
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestTGERefundMutualExclusion(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)
	env.finalizeAll(t)

	_, err = env.engine.EnableRefunds(adminAddr)
	require.NoError(t, err)

	// refunds enabled blocks the TGE request
	err = env.engine.RequestEnableTGE(enablerAddr, env.clock.Now().Unix()+500)
	assert.Equal(t, KindStateConflict, KindOf(err))

	st := env.stateRow(t)
	assert.False(t, st.TGEEnabled && st.RefundEnabled)
}

func TestEnableRefundsBlockedAfterTGE(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)
	env.finalizeAll(t)

	tgeTime := env.clock.Now().Unix() + 500
	require.NoError(t, env.engine.RequestEnableTGE(enablerAddr, tgeTime))
	env.clock.advance(time.Duration(env.cfg.TGEDelay+1) * time.Second)
	require.NoError(t, env.engine.ExecuteEnableTGE(enablerAddr))

	_, err = env.engine.EnableRefunds(adminAddr)
	assert.Equal(t, KindStateConflict, KindOf(err))

	st := env.stateRow(t)
	assert.False(t, st.TGEEnabled && st.RefundEnabled)
}

func TestCancelEnableTGE(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)
	env.finalizeAll(t)

	require.NoError(t, env.engine.RequestEnableTGE(enablerAddr, env.clock.Now().Unix()+500))
	require.NoError(t, env.engine.CancelEnableTGE(enablerAddr))

	// cancelled request cannot be executed
	env.clock.advance(time.Duration(env.cfg.TGEDelay+1) * time.Second)
	err = env.engine.ExecuteEnableTGE(enablerAddr)
	assert.Equal(t, KindStateConflict, KindOf(err))

	// a fresh request can be filed after cancellation
	require.NoError(t, env.engine.RequestEnableTGE(enablerAddr, env.clock.Now().Unix()+500))
}

func TestWithdrawTimelockFlow(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)
	env.fillRound(t, []string{aliceAddr, bobAddr, carolAddr}, "500", 3)

	// exceeding the available balance is a solvency violation
	_, err := env.engine.RequestWithdraw(treasuryAddr, treasuryAddr, big.NewInt(5000))
	assert.Equal(t, KindSolvencyViolation, KindOf(err))

	nonce, err := env.engine.RequestWithdraw(treasuryAddr, treasuryAddr, big.NewInt(600))
	require.NoError(t, err)

	// not yet matured
	err = env.engine.ExecuteWithdraw(context.Background(), treasuryAddr, nonce)
	assert.Equal(t, KindTemporalViolation, KindOf(err))

	env.clock.advance(time.Duration(env.cfg.WithdrawDelay+1) * time.Second)
	require.NoError(t, env.engine.ExecuteWithdraw(context.Background(), treasuryAddr, nonce))

	st := env.stateRow(t)
	assert.Equal(t, "600", st.TotalWithdrawn)

	// executed request cannot run twice
	err = env.engine.ExecuteWithdraw(context.Background(), treasuryAddr, nonce)
	assert.Equal(t, KindStateConflict, KindOf(err))
}

func TestWithdrawDailyCircuitBreaker(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)
	env.fillRound(t, []string{aliceAddr, bobAddr, carolAddr}, "500", 3)

	n1, err := env.engine.RequestWithdraw(treasuryAddr, treasuryAddr, big.NewInt(1000))
	require.NoError(t, err)
	n2, err := env.engine.RequestWithdraw(treasuryAddr, treasuryAddr, big.NewInt(600))
	require.NoError(t, err)
	assert.NotEqual(t, n1, n2)

	env.clock.advance(time.Duration(env.cfg.WithdrawDelay+1) * time.Second)
	require.NoError(t, env.engine.ExecuteWithdraw(context.Background(), treasuryAddr, n1))

	// 1000 + 600 exceeds the 1500 daily limit
	err = env.engine.ExecuteWithdraw(context.Background(), treasuryAddr, n2)
	assert.Equal(t, KindCapacityExceeded, KindOf(err))

	// next day the bucket resets
	env.clock.advance(24 * time.Hour)
	require.NoError(t, env.engine.ExecuteWithdraw(context.Background(), treasuryAddr, n2))
}

func TestCancelWithdraw(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)
	env.fillRound(t, []string{aliceAddr}, "500", 1)

	nonce, err := env.engine.RequestWithdraw(treasuryAddr, treasuryAddr, big.NewInt(300))
	require.NoError(t, err)
	require.NoError(t, env.engine.CancelWithdraw(treasuryAddr, nonce))

	env.clock.advance(time.Duration(env.cfg.WithdrawDelay+1) * time.Second)
	err = env.engine.ExecuteWithdraw(context.Background(), treasuryAddr, nonce)
	assert.Equal(t, KindStateConflict, KindOf(err))
}

func TestWithdrawBlockedDuringRefundWindow(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)

	nonce, err := env.engine.RequestWithdraw(treasuryAddr, treasuryAddr, big.NewInt(300))
	require.NoError(t, err)

	env.finalizeAll(t)
	_, err = env.engine.EnableRefunds(adminAddr)
	require.NoError(t, err)

	env.clock.advance(time.Duration(env.cfg.WithdrawDelay+1) * time.Second)
	err = env.engine.ExecuteWithdraw(context.Background(), treasuryAddr, nonce)
	assert.Equal(t, KindSolvencyViolation, KindOf(err))
}

func TestWithdrawExcessAllocation(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)
	env.allocation.setBalance(custodyAddr, "10000")

	alloc, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)

	// outstanding = total allocation; excess = 10000 - 550
	excess, err := env.engine.WithdrawExcessAllocation(context.Background(), treasuryAddr, treasuryAddr)
	require.NoError(t, err)
	expected := new(big.Int).Sub(big.NewInt(10000), alloc.Total)
	assert.Equal(t, expected.String(), excess.String())

	// custody still covers outstanding claims
	bal, _ := env.allocation.BalanceOf(context.Background(), custodyAddr)
	assert.Equal(t, alloc.Total.String(), bal.String())

	// nothing left beyond the reserve
	_, err = env.engine.WithdrawExcessAllocation(context.Background(), treasuryAddr, treasuryAddr)
	assert.Equal(t, KindSolvencyViolation, KindOf(err))
}

func TestEmergencyWithdrawFlow(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)
	env.allocation.setBalance(custodyAddr, "10000")

	require.NoError(t, env.engine.RequestEmergencyWithdraw(adminAddr))

	// not matured yet
	_, err := env.engine.ExecuteEmergencyWithdraw(context.Background(), adminAddr, treasuryAddr)
	assert.Equal(t, KindTemporalViolation, KindOf(err))

	env.clock.advance(time.Duration(env.cfg.EmergencyDelay+1) * time.Second)
	swept, err := env.engine.ExecuteEmergencyWithdraw(context.Background(), adminAddr, treasuryAddr)
	require.NoError(t, err)
	assert.Equal(t, "10000", swept.String())
}

func TestEmergencyWithdrawBlockedAfterTGE(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)
	env.allocation.setBalance(custodyAddr, "10000")

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)
	env.finalizeAll(t)

	tgeTime := env.clock.Now().Unix() + 500
	require.NoError(t, env.engine.RequestEnableTGE(enablerAddr, tgeTime))
	env.clock.advance(time.Duration(env.cfg.TGEDelay+1) * time.Second)
	require.NoError(t, env.engine.ExecuteEnableTGE(enablerAddr))

	err = env.engine.RequestEmergencyWithdraw(adminAddr)
	assert.Equal(t, KindStateConflict, KindOf(err))
}

func TestEmergencyWithdrawBlockedByOutstandingAllocations(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)
	env.allocation.setBalance(custodyAddr, "10000")

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)

	require.NoError(t, env.engine.RequestEmergencyWithdraw(adminAddr))

	env.finalizeAll(t)
	_, err = env.engine.EnableRefunds(adminAddr)
	require.NoError(t, err)

	// refund window open with outstanding allocations
	env.clock.advance(time.Duration(env.cfg.EmergencyDelay+1) * time.Second)
	_, err = env.engine.ExecuteEmergencyWithdraw(context.Background(), adminAddr, treasuryAddr)
	assert.Equal(t, KindSolvencyViolation, KindOf(err))

	// past the refund deadline forfeited allocations no longer block recovery
	env.clock.advance(time.Duration(env.cfg.RefundWindow) * time.Second)
	swept, err := env.engine.ExecuteEmergencyWithdraw(context.Background(), adminAddr, treasuryAddr)
	require.NoError(t, err)
	assert.Equal(t, "10000", swept.String())
}

func TestUpdateHourlyLimit(t *testing.T) {
	env := newTestEnv(t)

	err := env.engine.UpdateHourlyLimit(adminAddr, big.NewInt(50))
	assert.Equal(t, KindInvalidConfiguration, KindOf(err), "below the configured floor")

	err = env.engine.UpdateHourlyLimit(adminAddr, big.NewInt(999999))
	assert.Equal(t, KindInvalidConfiguration, KindOf(err), "above the configured ceiling")

	require.NoError(t, env.engine.UpdateHourlyLimit(adminAddr, big.NewInt(1200)))
	st := env.stateRow(t)
	assert.Equal(t, "1200", st.HourlyLimit)

	err = env.engine.UpdateHourlyLimit(aliceAddr, big.NewInt(1200))
	assert.Equal(t, KindAuthorizationFailure, KindOf(err))
}

func TestGetContributionView(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	// unknown address yields a zero view, not an error
	view, err := env.engine.GetContribution(aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, "0", view.TotalPayment)
	assert.Empty(t, view.Rounds)

	_, err = env.contribute(aliceAddr, "500")
	require.NoError(t, err)

	view, err = env.engine.GetContribution(aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, "500", view.TotalPayment)
	assert.Equal(t, "550", view.TotalAllocation)
	require.Len(t, view.Rounds, 1)
	assert.Equal(t, 0, view.Rounds[0].RoundIndex)
	assert.Equal(t, "500", view.Rounds[0].Payment)
}

func TestReadOnlyViewsDoNotCreateState(t *testing.T) {
	env := newTestEnv(t)

	stats, err := env.engine.GetStats()
	require.NoError(t, err)
	assert.False(t, stats.RoundsInitialized)
	assert.Equal(t, "0", stats.TotalRaised)

	claimable, err := env.engine.Claimable(aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, "0", claimable.String())

	_, err = env.engine.GetRounds()
	require.NoError(t, err)
	_, err = env.engine.GetCurrentRound()
	assert.ErrorIs(t, err, ErrNotInitialized)

	// the state row is only materialized by mutating entry points
	var count int64
	env.db.Model(&model.PresaleState{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestStalledRoundDetection(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)

	// nothing to report while the round is open
	_, stalled, err := env.engine.StalledRound()
	require.NoError(t, err)
	assert.False(t, stalled)

	// past the window the expired round is reported but never mutated
	env.clock.set(env.roundEnds[0] + 1)
	index, stalled, err := env.engine.StalledRound()
	require.NoError(t, err)
	assert.True(t, stalled)
	assert.Equal(t, 0, index)

	round := env.roundRow(t, 0)
	assert.False(t, round.Finalized)
	st := env.stateRow(t)
	assert.Equal(t, 0, st.CurrentRound)

	// finalize and advance stay with the round manager; the alert then clears
	_, err = env.engine.FinalizeRound(managerAddr)
	require.NoError(t, err)
	_, err = env.engine.AdvanceRound(managerAddr)
	require.NoError(t, err)
	_, stalled, err = env.engine.StalledRound()
	require.NoError(t, err)
	assert.False(t, stalled)
}

func TestEventsAreRecorded(t *testing.T) {
	env := newTestEnv(t)
	env.initRounds(t)

	_, err := env.contribute(aliceAddr, "500")
	require.NoError(t, err)

	events, total, err := env.engine.GetEvents(model.EventContribution, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, events, 1)
	assert.Equal(t, aliceAddr, events[0].Address)
	assert.Equal(t, "500", events[0].Amount)
	assert.Equal(t, 0, events[0].RoundIndex)
}

func TestErrorKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{Errorf(KindCapacityExceeded, "x"), KindCapacityExceeded},
		{NewError(KindTransferFailure, "x", errors.New("inner")), KindTransferFailure},
		{fmt.Errorf("wrapped: %w", Errorf(KindStateConflict, "x")), KindStateConflict},
		{errors.New("plain"), Kind(0)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, KindOf(tc.err))
	}
}

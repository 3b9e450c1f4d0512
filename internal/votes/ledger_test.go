package votes

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"codedrop/internal/codes"
	"codedrop/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:votes%d?mode=memory&cache=shared", testDBSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// a single connection keeps the shared in-memory database alive and
	// its writers serialized
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(
		&model.Code{},
		&model.PlatformAssociation{},
		&model.Vote{},
	))
	return gdb
}

func seedCode(t *testing.T, gdb *gorm.DB) uint64 {
	t.Helper()
	store := &codes.Store{DB: gdb}
	id, err := store.CreateCode(context.Background(), codes.CreateCodeInput{
		Code:              "WWWWW-XXXXX",
		RewardDescription: "5 Keys",
		Platforms:         []string{"PC"},
	})
	require.NoError(t, err)
	return id
}

func counters(t *testing.T, gdb *gorm.DB, codeID uint64) (up, down int64) {
	t.Helper()
	var c model.Code
	require.NoError(t, gdb.First(&c, codeID).Error)
	return c.UpvoteCount, c.DownvoteCount
}

func voteRows(t *testing.T, gdb *gorm.DB, codeID uint64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&model.Vote{}).Where("code_id = ?", codeID).Count(&n).Error)
	return n
}

func TestCastChangeRetract(t *testing.T) {
	gdb := openTestDB(t)
	l := &Ledger{DB: gdb}
	ctx := context.Background()
	id := seedCode(t, gdb)

	out, err := l.CastVote(ctx, id, model.VoteUp, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCast, out)
	up, down := counters(t, gdb, id)
	assert.Equal(t, []int64{1, 0}, []int64{up, down})

	out, err = l.CastVote(ctx, id, model.VoteDown, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, OutcomeChanged, out)
	up, down = counters(t, gdb, id)
	assert.Equal(t, []int64{0, 1}, []int64{up, down})
	assert.Equal(t, int64(1), voteRows(t, gdb, id))

	removed, err := l.RetractVote(ctx, id, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, removed)
	up, down = counters(t, gdb, id)
	assert.Equal(t, []int64{0, 0}, []int64{up, down})
	assert.Equal(t, int64(0), voteRows(t, gdb, id))
}

func TestCastVoteIdempotent(t *testing.T) {
	gdb := openTestDB(t)
	l := &Ledger{DB: gdb}
	ctx := context.Background()
	id := seedCode(t, gdb)

	out, err := l.CastVote(ctx, id, model.VoteUp, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCast, out)

	out, err = l.CastVote(ctx, id, model.VoteUp, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, out)

	up, down := counters(t, gdb, id)
	assert.Equal(t, int64(1), up)
	assert.Equal(t, int64(0), down)
	assert.Equal(t, int64(1), voteRows(t, gdb, id))
}

func TestVoteSwapLeavesOtherVotersAlone(t *testing.T) {
	gdb := openTestDB(t)
	l := &Ledger{DB: gdb}
	ctx := context.Background()
	id := seedCode(t, gdb)

	_, err := l.CastVote(ctx, id, model.VoteUp, "1.1.1.1")
	require.NoError(t, err)
	_, err = l.CastVote(ctx, id, model.VoteUp, "2.2.2.2")
	require.NoError(t, err)

	out, err := l.CastVote(ctx, id, model.VoteDown, "1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeChanged, out)

	up, down := counters(t, gdb, id)
	assert.Equal(t, int64(1), up)
	assert.Equal(t, int64(1), down)
	assert.Equal(t, int64(2), voteRows(t, gdb, id))
}

func TestRetractWithoutVote(t *testing.T) {
	gdb := openTestDB(t)
	l := &Ledger{DB: gdb}
	ctx := context.Background()
	id := seedCode(t, gdb)

	removed, err := l.RetractVote(ctx, id, "9.9.9.9")
	require.NoError(t, err)
	assert.False(t, removed)

	up, down := counters(t, gdb, id)
	assert.Zero(t, up)
	assert.Zero(t, down)
}

func TestVoteErrors(t *testing.T) {
	gdb := openTestDB(t)
	l := &Ledger{DB: gdb}
	ctx := context.Background()
	id := seedCode(t, gdb)

	_, err := l.CastVote(ctx, id, "sideways", "1.2.3.4")
	require.ErrorIs(t, err, model.ErrInvalidVoteType)

	_, err = l.CastVote(ctx, 9999, model.VoteUp, "1.2.3.4")
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = l.RetractVote(ctx, 9999, "1.2.3.4")
	require.ErrorIs(t, err, model.ErrNotFound)

	err = l.ReconcileCounts(ctx, 9999)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestReconcileCountsRepairsDrift(t *testing.T) {
	gdb := openTestDB(t)
	l := &Ledger{DB: gdb}
	ctx := context.Background()
	id := seedCode(t, gdb)

	for i, vt := range []string{model.VoteUp, model.VoteUp, model.VoteDown} {
		_, err := l.CastVote(ctx, id, vt, fmt.Sprintf("10.0.0.%d", i))
		require.NoError(t, err)
	}

	// simulate drift from a partial failure
	require.NoError(t, gdb.Model(&model.Code{}).Where("id = ?", id).
		UpdateColumns(map[string]any{"upvote_count": 7, "downvote_count": 9}).Error)

	require.NoError(t, l.ReconcileCounts(ctx, id))

	up, down := counters(t, gdb, id)
	assert.Equal(t, int64(2), up)
	assert.Equal(t, int64(1), down)
}

func TestCounterConservationUnderConcurrency(t *testing.T) {
	gdb := openTestDB(t)
	l := &Ledger{DB: gdb}
	ctx := context.Background()
	id := seedCode(t, gdb)

	const voters = 24

	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := range voters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vt := model.VoteUp
			if i%2 == 1 {
				vt = model.VoteDown
			}
			_, err := l.CastVote(ctx, id, vt, fmt.Sprintf("10.1.0.%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	up, down := counters(t, gdb, id)
	assert.Equal(t, int64(voters), up+down)
	assert.Equal(t, int64(voters), voteRows(t, gdb, id))

	// retract everything concurrently and land back at zero
	wg = sync.WaitGroup{}
	for i := range voters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = l.RetractVote(ctx, id, fmt.Sprintf("10.1.0.%d", i))
		}(i)
	}
	wg.Wait()

	up, down = counters(t, gdb, id)
	assert.Zero(t, up)
	assert.Zero(t, down)
	assert.Zero(t, voteRows(t, gdb, id))
}

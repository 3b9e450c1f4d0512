package codes

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

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
	dsn := fmt.Sprintf("file:codes%d?mode=memory&cache=shared", testDBSeq.Add(1))
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

func TestCreateCodeAndFind(t *testing.T) {
	gdb := openTestDB(t)
	s := &Store{DB: gdb}
	ctx := context.Background()

	srcURL := "https://example.com/post1"
	id, err := s.CreateCode(ctx, CreateCodeInput{
		Code:              "ABCDE-FGHIJ",
		RewardDescription: "3 Keys",
		SourceURL:         &srcURL,
		SourceType:        model.SourceScraped,
		Platforms:         []string{"PC", "Xbox", "PC", " "},
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	c, err := s.FindByCode(ctx, "ABCDE-FGHIJ")
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)
	assert.Equal(t, "3 Keys", c.RewardDescription)
	assert.Equal(t, model.StatusUnknown, c.Status)
	assert.Equal(t, model.SourceScraped, c.SourceType)
	assert.Equal(t, int64(0), c.CopyCount)
	assert.Equal(t, int64(0), c.UpvoteCount)
	assert.Equal(t, int64(0), c.DownvoteCount)
	assert.False(t, c.CreatedAt.IsZero())

	// blank entries dropped, duplicates collapsed
	require.Len(t, c.Platforms, 2)
	got := []string{c.Platforms[0].Platform, c.Platforms[1].Platform}
	assert.ElementsMatch(t, []string{"PC", "Xbox"}, got)
}

func TestCreateCodeDuplicate(t *testing.T) {
	gdb := openTestDB(t)
	s := &Store{DB: gdb}
	ctx := context.Background()

	_, err := s.CreateCode(ctx, CreateCodeInput{Code: "AAAAA-BBBBB", Platforms: []string{"PC"}})
	require.NoError(t, err)

	_, err = s.CreateCode(ctx, CreateCodeInput{Code: "AAAAA-BBBBB", Platforms: []string{"Xbox"}})
	require.ErrorIs(t, err, model.ErrDuplicateCode)

	var n int64
	require.NoError(t, gdb.Model(&model.Code{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestFindByCodeAbsent(t *testing.T) {
	gdb := openTestDB(t)
	s := &Store{DB: gdb}

	_, err := s.FindByCode(context.Background(), "NOPE")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestIncrementCopyCount(t *testing.T) {
	gdb := openTestDB(t)
	s := &Store{DB: gdb}
	ctx := context.Background()

	id, err := s.CreateCode(ctx, CreateCodeInput{Code: "CCCCC-DDDDD"})
	require.NoError(t, err)

	require.NoError(t, s.IncrementCopyCount(ctx, id))
	require.NoError(t, s.IncrementCopyCount(ctx, id))

	var c model.Code
	require.NoError(t, gdb.First(&c, id).Error)
	assert.Equal(t, int64(2), c.CopyCount)

	require.ErrorIs(t, s.IncrementCopyCount(ctx, 9999), model.ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	gdb := openTestDB(t)
	s := &Store{DB: gdb}
	ctx := context.Background()

	id, err := s.CreateCode(ctx, CreateCodeInput{Code: "EEEEE-FFFFF"})
	require.NoError(t, err)

	// any status may replace any other
	for _, st := range []string{model.StatusActive, model.StatusExpired, model.StatusActive, model.StatusUnknown} {
		require.NoError(t, s.SetStatus(ctx, id, st))
		var c model.Code
		require.NoError(t, gdb.First(&c, id).Error)
		assert.Equal(t, st, c.Status)
	}

	require.ErrorIs(t, s.SetStatus(ctx, id, "retired"), model.ErrInvalidStatus)
	require.ErrorIs(t, s.SetStatus(ctx, 9999, model.StatusActive), model.ErrNotFound)
}

func TestDeleteCodeCascade(t *testing.T) {
	gdb := openTestDB(t)
	s := &Store{DB: gdb}
	ctx := context.Background()

	id, err := s.CreateCode(ctx, CreateCodeInput{
		Code:      "GGGGG-HHHHH",
		Platforms: []string{"PC", "PlayStation"},
	})
	require.NoError(t, err)

	require.NoError(t, gdb.Create(&model.Vote{CodeID: id, VoterIdentity: "1.2.3.4", VoteType: model.VoteUp}).Error)
	require.NoError(t, gdb.Create(&model.Vote{CodeID: id, VoterIdentity: "5.6.7.8", VoteType: model.VoteDown}).Error)

	require.NoError(t, s.DeleteCode(ctx, id))

	var n int64
	require.NoError(t, gdb.Model(&model.Code{}).Where("id = ?", id).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, gdb.Model(&model.PlatformAssociation{}).Where("code_id = ?", id).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, gdb.Model(&model.Vote{}).Where("code_id = ?", id).Count(&n).Error)
	assert.Zero(t, n)

	_, err = s.FindByCode(ctx, "GGGGG-HHHHH")
	require.ErrorIs(t, err, model.ErrNotFound)

	// idempotent: deleting again is a no-op success
	require.NoError(t, s.DeleteCode(ctx, id))
}

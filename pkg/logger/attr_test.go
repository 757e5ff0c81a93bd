package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memberkit/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("member", slog.Int64("uid", 1), slog.String("plan_id", "annual"))
	require.Equal(t, "member", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "uid", g[0].Key)
	assert.Equal(t, "plan_id", g[1].Key)
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestMembershipAttrs(t *testing.T) {
	assert.Equal(t, int64(42), logger.UID(42).Value.Int64())
	assert.Equal(t, "plan_id", logger.PlanID("annual").Key)
	assert.Equal(t, "g1", logger.GUID("g1").Value.String())

	type status string
	assert.Equal(t, "arrears", logger.Status(status("arrears")).Value.String())
}

func TestDate(t *testing.T) {
	attr := logger.Date("expires", time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "expires", attr.Key)
	assert.Equal(t, "2025-01-31", attr.Value.String())

	assert.Equal(t, "", logger.Date("expires", time.Time{}).Value.String())
}

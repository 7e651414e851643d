package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.Open(t).DB()
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx.Statement)
	assert.Equal(t, ctx, withCtx.Statement.Context)

	assert.Same(t, db, base.DB(nil))
	assert.Same(t, db, base.WithTx(nil).DB(nil))
}

func TestKeysetPagesNewestFirst(t *testing.T) {
	db := newTestDB(t)
	userID := uuid.New()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		n := models.Notification{UserID: userID, Type: "order_placed", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, db.Create(&n).Error)
	}

	cursorOf := func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	}

	q, err := Keyset(db.Model(&models.Notification{}).Where("user_id = ?", userID), "notifications", pagination.Params{Limit: 3})
	require.NoError(t, err)
	var rows []models.Notification
	require.NoError(t, q.Find(&rows).Error)
	page, next := pagination.Trim(rows, 3, cursorOf)
	require.Len(t, page, 3)
	require.NotEmpty(t, next)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	q, err = Keyset(db.Model(&models.Notification{}).Where("user_id = ?", userID), "notifications", pagination.Params{Limit: 3, Cursor: next})
	require.NoError(t, err)
	rows = nil
	require.NoError(t, q.Find(&rows).Error)
	page, next = pagination.Trim(rows, 3, cursorOf)
	assert.Len(t, page, 2)
	assert.Empty(t, next)

	_, err = Keyset(db, "notifications", pagination.Params{Cursor: "not-base64!"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

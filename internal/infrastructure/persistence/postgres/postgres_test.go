package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"finsaathi-ai-api/internal/domain/repository"
)

func TestMonthWindow(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	keys, from, to := monthWindow(now, 3)

	assert.Equal(t, []string{"2025-11", "2025-12", "2026-01"}, keys)
	assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_safe\\`, escapeLike(`100%_safe\`))
	assert.Equal(t, "ppf", escapeLike("ppf"))
}

func TestGetTxFromContext(t *testing.T) {
	assert.Nil(t, getTxFromContext(context.Background()))

	tx := &gorm.DB{}
	ctx := context.WithValue(context.Background(), repository.TxKey{}, tx)
	assert.Same(t, tx, getTxFromContext(ctx))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(gorm.ErrRecordNotFound))
	assert.True(t, isNotFound(fmt.Errorf("load thread: %w", gorm.ErrRecordNotFound)))
	assert.False(t, isNotFound(errors.New("connection reset")))
	assert.False(t, isNotFound(nil))
}

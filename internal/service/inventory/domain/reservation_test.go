package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestReservation() *Reservation {
	return NewReservation("p1", "v1", 3, Holder{UserID: "u1"}, 15*time.Minute)
}

func TestNewReservation(t *testing.T) {
	r := newTestReservation()

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "p1", r.ProductID)
	assert.Equal(t, "v1", r.VariantID)
	assert.Equal(t, int64(3), r.Quantity)
	assert.Equal(t, StatusActive, r.Status)
	assert.Empty(t, r.OrderID)
	assert.False(t, r.CreatedAt.IsZero())
	assert.Equal(t, r.CreatedAt.Add(15*time.Minute), r.ExpiresAt)
}

func TestHolderValidate(t *testing.T) {
	assert.NoError(t, Holder{UserID: "u1"}.Validate())
	assert.NoError(t, Holder{SessionID: "s1"}.Validate())
	assert.NoError(t, Holder{UserID: "u1", SessionID: "s1"}.Validate())
	assert.ErrorIs(t, Holder{}.Validate(), ErrMissingHolder)
}

func TestReservationIsActive(t *testing.T) {
	r := newTestReservation()
	now := time.Now().UTC()

	assert.True(t, r.IsActive(now))
	assert.False(t, r.IsActive(r.ExpiresAt))                  // 刚好到期不再占用
	assert.False(t, r.IsActive(r.ExpiresAt.Add(time.Second))) // 已过期

	released := newTestReservation()
	assert.NoError(t, released.Release())
	assert.False(t, released.IsActive(now))
}

func TestReservationCommit(t *testing.T) {
	r := newTestReservation()

	err := r.Commit("O1")
	assert.NoError(t, err)
	assert.Equal(t, StatusCommitted, r.Status)
	assert.Equal(t, "O1", r.OrderID)

	// 重复提交必须失败，且不改变已关联的订单
	err = r.Commit("O2")
	assert.ErrorIs(t, err, ErrReservationNotActive)
	assert.Equal(t, "O1", r.OrderID)
}

func TestReservationTerminalStatesAreImmutable(t *testing.T) {
	cases := []struct {
		name      string
		terminate func(*Reservation) error
	}{
		{"committed", func(r *Reservation) error { return r.Commit("O1") }},
		{"released", func(r *Reservation) error { return r.Release() }},
		{"expired", func(r *Reservation) error { return r.Expire() }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestReservation()
			assert.NoError(t, tc.terminate(r))
			assert.True(t, r.Status.IsTerminal())

			expiresAt := r.ExpiresAt
			assert.ErrorIs(t, r.Commit("O9"), ErrReservationNotActive)
			assert.ErrorIs(t, r.Release(), ErrReservationNotActive)
			assert.ErrorIs(t, r.Expire(), ErrReservationNotActive)
			assert.ErrorIs(t, r.Extend(time.Minute), ErrReservationNotActive)
			assert.Equal(t, expiresAt, r.ExpiresAt) // 无副作用
		})
	}
}

func TestReservationExtend(t *testing.T) {
	r := newTestReservation()
	before := r.ExpiresAt

	assert.NoError(t, r.Extend(10*time.Minute))
	assert.Equal(t, before.Add(10*time.Minute), r.ExpiresAt)
}

func TestStockItemAvailable(t *testing.T) {
	item := StockItem{ProductID: "p1", PhysicalStock: 5}

	assert.Equal(t, int64(5), item.Available(0))
	assert.Equal(t, int64(2), item.Available(3))
	assert.Equal(t, int64(0), item.Available(5))
	// 外部路径把实体库存扣到低于已预占量时，可售量钳到零
	assert.Equal(t, int64(0), item.Available(7))
}

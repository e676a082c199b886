package rule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCELPolicyQuantityLimit(t *testing.T) {
	policy, err := NewCELPolicyAdapter("quantity <= 10")
	require.NoError(t, err)

	allowed, err := policy.Allow(context.Background(), "p1", 10)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = policy.Allow(context.Background(), "p1", 11)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCELPolicyPerProductRule(t *testing.T) {
	policy, err := NewCELPolicyAdapter(`product_id == "p-limited" ? quantity <= 2 : true`)
	require.NoError(t, err)

	cases := []struct {
		name      string
		productID string
		quantity  int64
		want      bool
	}{
		{"limited product within cap", "p-limited", 2, true},
		{"limited product over cap", "p-limited", 3, false},
		{"other product unaffected", "p-normal", 50, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			allowed, err := policy.Allow(context.Background(), tc.productID, tc.quantity)
			require.NoError(t, err)
			assert.Equal(t, tc.want, allowed)
		})
	}
}

func TestCELPolicyRejectsBadExpressions(t *testing.T) {
	_, err := NewCELPolicyAdapter("quantity <=")
	assert.Error(t, err)

	// 编译通过但结果不是 bool 的表达式也要在创建时拦下
	_, err = NewCELPolicyAdapter("quantity + 1")
	assert.Error(t, err)
}

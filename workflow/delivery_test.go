package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDelivery(t *testing.T) {
	items := []LineItem{
		{Name: "Cement", Quantity: 2},
		{Name: "Rebar", Quantity: 3},
	}

	t.Run("partial delivery", func(t *testing.T) {
		got, err := ApplyDelivery(items, []DeliveredLine{{Name: "Cement", Quantity: 2}})
		require.NoError(t, err)
		assert.Equal(t, 2, got[0].Delivered)
		assert.Equal(t, 0, got[1].Delivered)
		assert.Equal(t, DeliveryPartial, ClassifyDelivery(got))
		assert.Equal(t, 0, items[0].Delivered, "input must not be modified")
	})

	t.Run("full delivery across lines", func(t *testing.T) {
		got, err := ApplyDelivery(items, []DeliveredLine{{"Cement", 1}, {"Rebar", 3}, {"Cement", 1}})
		require.NoError(t, err)
		assert.Equal(t, DeliveryFull, ClassifyDelivery(got))
		action, ok := ClassifyDelivery(got).Action()
		assert.True(t, ok)
		assert.Equal(t, OrderActionDeliverFull, action)
	})

	t.Run("over-delivery is rejected", func(t *testing.T) {
		_, err := ApplyDelivery(items, []DeliveredLine{{"Rebar", 4}})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("cumulative over-delivery is rejected", func(t *testing.T) {
		partial, err := ApplyDelivery(items, []DeliveredLine{{"Rebar", 2}})
		require.NoError(t, err)
		_, err = ApplyDelivery(partial, []DeliveredLine{{"Rebar", 2}})
		assert.True(t, IsValidation(err))
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := ApplyDelivery(items, []DeliveredLine{{"Gravel", 1}})
		assert.True(t, IsValidation(err))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := ApplyDelivery(items, []DeliveredLine{{"Cement", 0}})
		assert.True(t, IsValidation(err))
	})

	t.Run("empty receipt", func(t *testing.T) {
		_, err := ApplyDelivery(items, nil)
		assert.True(t, IsValidation(err))
	})
}

func TestApplyDelivery_PrefersOutstandingItem(t *testing.T) {
	items := []LineItem{
		{Name: "Bolt", Quantity: 5, Delivered: 5},
		{Name: "Bolt", Quantity: 5},
	}
	got, err := ApplyDelivery(items, []DeliveredLine{{"Bolt", 5}})
	require.NoError(t, err)
	assert.Equal(t, 5, got[1].Delivered)
	assert.Equal(t, DeliveryFull, ClassifyDelivery(got))
}

func TestClassifyDelivery_None(t *testing.T) {
	state := ClassifyDelivery([]LineItem{{Name: "Sand", Quantity: 1}})
	assert.Equal(t, DeliveryNone, state)
	_, ok := state.Action()
	assert.False(t, ok)
}

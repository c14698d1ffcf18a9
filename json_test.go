package hydrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInstanceFromJSON(t *testing.T) {
	r := newTestRegistry(t)

	t.Run("valid document", func(t *testing.T) {
		inst, err := r.CreateInstanceFromJSON([]byte(`{
			"id": "1",
			"name": "Ada",
			"address": {"street": "1 Main St", "city": "Springfield"}
		}`), &Account{}, CreateOpts{})
		require.NoError(t, err)

		acc := inst.(*Account)
		assert.Equal(t, "Ada", acc.Name)
		assert.Equal(t, "Springfield", acc.Address.City)
	})

	t.Run("numbers arrive as float64", func(t *testing.T) {
		inst, err := r.CreateInstanceFromJSON([]byte(`{
			"id": "o1",
			"items": [{"sku": "a", "count": 2}]
		}`), &Order{}, CreateOpts{})
		require.NoError(t, err)
		assert.Equal(t, 2, inst.(*Order).Items[0].Count)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := r.CreateInstanceFromJSON([]byte(`{"id":`), &Account{}, CreateOpts{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})
}

func TestValidateJSON(t *testing.T) {
	r := newTestRegistry(t)

	t.Run("collects field errors", func(t *testing.T) {
		res := r.ValidateJSON([]byte(`{"id": "123"}`), &Account{})
		assert.False(t, res.Valid)
		assert.Len(t, res.Errors, 2)
		assert.NotNil(t, res.Instance)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		res := r.ValidateJSON([]byte(`nonsense{`), &Account{})
		assert.False(t, res.Valid)
		require.Len(t, res.Errors, 1)
		assert.ErrorIs(t, res.Errors[0], ErrTypeMismatch)
	})
}

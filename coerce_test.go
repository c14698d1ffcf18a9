package hydrate

import (
	"net/netip"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	t.Run("RFC3339", func(t *testing.T) {
		got, err := ParseTime("2024-05-01T10:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), got)
	})

	t.Run("date only", func(t *testing.T) {
		got, err := ParseTime("2024-05-01")
		require.NoError(t, err)
		assert.Equal(t, 2024, got.(time.Time).Year())
	})

	t.Run("already a time", func(t *testing.T) {
		now := time.Now()
		got, err := ParseTime(now)
		require.NoError(t, err)
		assert.Equal(t, now, got)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseTime("not a date")
		assert.Error(t, err)
		_, err = ParseTime(42)
		assert.Error(t, err)
	})
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()

	got, err := ParseUUID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = ParseUUID(id)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUID("not-a-uuid")
	assert.Error(t, err)
	_, err = ParseUUID(42)
	assert.Error(t, err)
}

func TestAssignValue(t *testing.T) {
	t.Run("nil zeroes", func(t *testing.T) {
		var target struct{ S string }
		target.S = "old"
		require.NoError(t, assignValue(reflect.ValueOf(&target).Elem().Field(0), nil))
		assert.Equal(t, "", target.S)
	})

	t.Run("pointer boxing", func(t *testing.T) {
		var target struct{ S *string }
		require.NoError(t, assignValue(reflect.ValueOf(&target).Elem().Field(0), "hi"))
		require.NotNil(t, target.S)
		assert.Equal(t, "hi", *target.S)
	})

	t.Run("whole float into int", func(t *testing.T) {
		var target struct{ N int }
		require.NoError(t, assignValue(reflect.ValueOf(&target).Elem().Field(0), float64(7)))
		assert.Equal(t, 7, target.N)
	})

	t.Run("fractional float refused", func(t *testing.T) {
		var target struct{ N int }
		err := assignValue(reflect.ValueOf(&target).Elem().Field(0), 7.5)
		assert.Error(t, err)
	})

	t.Run("overflow refused", func(t *testing.T) {
		var target struct{ N int8 }
		err := assignValue(reflect.ValueOf(&target).Elem().Field(0), float64(1000))
		assert.Error(t, err)
	})

	t.Run("negative into unsigned refused", func(t *testing.T) {
		var target struct{ N uint }
		err := assignValue(reflect.ValueOf(&target).Elem().Field(0), -1)
		assert.Error(t, err)
	})

	t.Run("string into time", func(t *testing.T) {
		var target struct{ At time.Time }
		require.NoError(t, assignValue(reflect.ValueOf(&target).Elem().Field(0), "2024-05-01T10:00:00Z"))
		assert.Equal(t, 2024, target.At.Year())
	})

	t.Run("string into uuid", func(t *testing.T) {
		id := uuid.New()
		var target struct{ ID uuid.UUID }
		require.NoError(t, assignValue(reflect.ValueOf(&target).Elem().Field(0), id.String()))
		assert.Equal(t, id, target.ID)
	})

	t.Run("text unmarshaler", func(t *testing.T) {
		var target struct{ Addr netip.Addr }
		require.NoError(t, assignValue(reflect.ValueOf(&target).Elem().Field(0), "10.0.0.1"))
		assert.Equal(t, "10.0.0.1", target.Addr.String())
	})

	t.Run("incompatible types", func(t *testing.T) {
		var target struct{ N int }
		err := assignValue(reflect.ValueOf(&target).Elem().Field(0), "seven")
		assert.Error(t, err)
	})
}

func TestDeepClone(t *testing.T) {
	src := map[string]any{
		"a": 1,
		"b": map[string]any{"nested": "x"},
		"c": []any{1, map[string]any{"deep": true}},
	}

	got := deepClone(src).(map[string]any)
	require.Equal(t, src, got)

	got["b"].(map[string]any)["nested"] = "changed"
	got["c"].([]any)[1].(map[string]any)["deep"] = false

	assert.Equal(t, "x", src["b"].(map[string]any)["nested"])
	assert.Equal(t, true, src["c"].([]any)[1].(map[string]any)["deep"])
}

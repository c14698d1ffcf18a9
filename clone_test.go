package hydrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuplicateInstance(t *testing.T) {
	r := newTestRegistry(t)

	t.Run("deep copy", func(t *testing.T) {
		orig := &Account{ID: "1", Name: "Ada", Address: &Address{Street: "x"}}

		dup, err := r.DuplicateInstance(orig)
		require.NoError(t, err)

		copied := dup.(*Account)
		assert.Equal(t, orig.ID, copied.ID)
		assert.Equal(t, orig.Address.Street, copied.Address.Street)
		assert.NotSame(t, orig, copied)
		assert.NotSame(t, orig.Address, copied.Address)
	})

	t.Run("nil passes through", func(t *testing.T) {
		dup, err := r.DuplicateInstance(nil)
		require.NoError(t, err)
		assert.Nil(t, dup)
	})

	t.Run("expando is independent", func(t *testing.T) {
		orig := &Profile{ID: "x", Extra: map[string]any{"foo": 1}}
		dup, err := r.DuplicateInstance(orig)
		require.NoError(t, err)

		dup.(*Profile).Extra["foo"] = 999
		assert.Equal(t, 1, orig.Extra["foo"])
	})
}

func TestCloneWithBasic(t *testing.T) {
	r := newTestRegistry(t)
	orig := &Account{ID: "1", Name: "Ada", Address: &Address{Street: "x"}}

	clone, err := r.CloneWith(orig, map[string]any{"name": "Grace"}, CloneOpts{})
	require.NoError(t, err)

	updated := clone.(*Account)
	assert.Equal(t, "Grace", updated.Name)
	assert.Equal(t, "1", updated.ID)
	assert.Equal(t, "x", updated.Address.Street)

	// The original is never touched.
	assert.Equal(t, "Ada", orig.Name)
	assert.NotSame(t, orig, updated)
}

func TestCloneWithRejectsUnknownKeys(t *testing.T) {
	r := newTestRegistry(t)
	orig := &Account{ID: "1", Name: "Ada", Address: &Address{Street: "x"}}

	_, err := r.CloneWith(orig, map[string]any{"nope": 1}, CloneOpts{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMutationRejected)
}

func TestCloneWithRejectsComputedKeys(t *testing.T) {
	r := NewSchemaRegistry()
	require.NoError(t, r.Register(&Report{}, reportSpec()))
	orig := &Report{A: 1, B: 2}

	// Computed keys are never writable, regardless of schema shape.
	_, err := r.CloneWith(orig, map[string]any{"total": 10}, CloneOpts{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMutationRejected)
}

func TestCloneWithNullingRequiredFails(t *testing.T) {
	r := newTestRegistry(t)
	orig := &Account{ID: "1", Name: "Ada", Address: &Address{Street: "x"}}

	_, err := r.CloneWith(orig, map[string]any{"name": nil}, CloneOpts{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNullRequiredProperty)

	assert.Equal(t, "Ada", orig.Name)
}

func TestCloneWithExpandoMerge(t *testing.T) {
	r := newTestRegistry(t)

	base := func() *Profile {
		return &Profile{ID: "x", Extra: map[string]any{"keep": 1, "drop": 2, "replace": 3}}
	}

	t.Run("merge not replace", func(t *testing.T) {
		orig := base()
		clone, err := r.CloneWith(orig, map[string]any{
			"extra": map[string]any{"replace": 30, "added": 4},
		}, CloneOpts{})
		require.NoError(t, err)

		assert.Equal(t, map[string]any{
			"keep": 1, "drop": 2, "replace": 30, "added": 4,
		}, clone.(*Profile).Extra)
	})

	t.Run("null deletes by default", func(t *testing.T) {
		orig := base()
		clone, err := r.CloneWith(orig, map[string]any{
			"extra": map[string]any{"drop": nil},
		}, CloneOpts{})
		require.NoError(t, err)

		got := clone.(*Profile).Extra
		_, present := got["drop"]
		assert.False(t, present)
		assert.Equal(t, 1, got["keep"])
	})

	t.Run("null preserved on request", func(t *testing.T) {
		orig := base()
		clone, err := r.CloneWith(orig, map[string]any{
			"extra": map[string]any{"drop": nil},
		}, CloneOpts{PreserveNullKeys: true})
		require.NoError(t, err)

		got := clone.(*Profile).Extra
		val, present := got["drop"]
		assert.True(t, present)
		assert.Nil(t, val)
	})

	t.Run("non-map expando value is rejected", func(t *testing.T) {
		orig := base()
		_, err := r.CloneWith(orig, map[string]any{"extra": "nope"}, CloneOpts{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMutationRejected)

		_, err = r.CloneWith(orig, map[string]any{"extra": nil}, CloneOpts{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMutationRejected)
	})

	t.Run("original expando is never mutated", func(t *testing.T) {
		orig := base()
		before := map[string]any{"keep": 1, "drop": 2, "replace": 3}

		_, err := r.CloneWith(orig, map[string]any{
			"extra": map[string]any{"drop": nil, "added": 4},
		}, CloneOpts{})
		require.NoError(t, err)
		assert.Equal(t, before, orig.Extra)
	})
}

func TestCloneWithEmptyChangesEqualsDuplicate(t *testing.T) {
	r := newTestRegistry(t)
	orig := &Profile{ID: "x", Extra: map[string]any{"foo": 1}}

	clone, err := r.CloneWith(orig, map[string]any{}, CloneOpts{})
	require.NoError(t, err)
	dup, err := r.DuplicateInstance(orig)
	require.NoError(t, err)

	assert.Equal(t, dup, clone)
	assert.NotSame(t, orig, clone)
}

func TestRepeatedCloneDoesNotReapplyChanges(t *testing.T) {
	r := newTestRegistry(t)
	orig := &Account{ID: "1", Name: "Ada", Address: &Address{Street: "x"}}

	first, err := r.CloneWith(orig, map[string]any{"name": "Grace"}, CloneOpts{})
	require.NoError(t, err)
	second, err := r.CloneWith(first, map[string]any{"id": "2"}, CloneOpts{})
	require.NoError(t, err)

	updated := second.(*Account)
	assert.Equal(t, "2", updated.ID)
	assert.Equal(t, "Grace", updated.Name)
	assert.Equal(t, "Ada", orig.Name)
	assert.Equal(t, "1", orig.ID)
}

///////////////////////////////////////////////////////////////////////////////
// Custom-hook mutation path
///////////////////////////////////////////////////////////////////////////////

// Ticket counts hook invocations so tests can pin down how many
// round trips a mutation performs.
type Ticket struct {
	Code string

	serialiseCalls *int
	hydrateCalls   *int
}

func (tk *Ticket) SerialiseCustom() (map[string]any, error) {
	if tk.serialiseCalls != nil {
		*tk.serialiseCalls++
	}
	return map[string]any{"code": tk.Code, "v": 1}, nil
}

func (tk *Ticket) HydrateCustom(data any) error {
	if tk.hydrateCalls != nil {
		*tk.hydrateCalls++
	}
	m := data.(map[string]any)
	tk.Code, _ = m["code"].(string)
	return nil
}

func ticketRegistry(t *testing.T) *SchemaRegistry {
	t.Helper()
	r := NewSchemaRegistry()
	require.NoError(t, r.Register(&Ticket{}, TypeSpec{Fields: []FieldSpec{
		{Name: "Code", Key: "code", Kind: ValueKind, Required: true},
	}}))
	return r
}

func TestCloneWithCustomHook(t *testing.T) {
	r := ticketRegistry(t)

	t.Run("changes resolve before the hook reshapes", func(t *testing.T) {
		orig := &Ticket{Code: "old"}
		clone, err := r.CloneWith(orig, map[string]any{"code": "new"}, CloneOpts{})
		require.NoError(t, err)

		assert.Equal(t, "new", clone.(*Ticket).Code)
		assert.Equal(t, "old", orig.Code)
	})

	t.Run("empty changes is exactly one round trip", func(t *testing.T) {
		var ser, hyd int
		orig := &Ticket{Code: "x", serialiseCalls: &ser, hydrateCalls: &hyd}

		clone, err := r.CloneWith(orig, map[string]any{}, CloneOpts{})
		require.NoError(t, err)
		assert.Equal(t, "x", clone.(*Ticket).Code)
		assert.Equal(t, 1, ser, "repeated empty clones must not accumulate hook passes")
	})
}

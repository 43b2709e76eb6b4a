package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateFilterMapEmptyIsNoop(t *testing.T) {
	out, err := translateFilterMap(nil)
	require.NoError(t, err)
	assert.Empty(t, out.Must)
	assert.Empty(t, out.Should)
	assert.Empty(t, out.MustNot)
}

func TestTranslateFilterMapScalarFieldBecomesMatchMust(t *testing.T) {
	out, err := translateFilterMap(map[string]any{"tenant_id": "abc"})
	require.NoError(t, err)
	require.Len(t, out.Must, 1)
	assert.Equal(t, qdrantMatchCondition("tenant_id", "abc"), out.Must[0])
}

func TestTranslateFilterMapEqAndNeOperators(t *testing.T) {
	out, err := translateFilterMap(map[string]any{
		"status": map[string]any{"$eq": "ready"},
	})
	require.NoError(t, err)
	require.Len(t, out.Must, 1)

	out, err = translateFilterMap(map[string]any{
		"status": map[string]any{"$ne": "failed"},
	})
	require.NoError(t, err)
	require.Len(t, out.MustNot, 1)
}

func TestTranslateFilterMapInOperator(t *testing.T) {
	out, err := translateFilterMap(map[string]any{
		"video_id": map[string]any{"$in": []any{"a", "b", "c"}},
	})
	require.NoError(t, err)
	require.Len(t, out.Must, 1)
	m := out.Must[0].(map[string]any)
	assert.Equal(t, "video_id", m["key"])
}

func TestTranslateFilterMapInOperatorRejectsEmpty(t *testing.T) {
	_, err := translateFilterMap(map[string]any{
		"video_id": map[string]any{"$in": []any{}},
	})
	assert.Error(t, err)
}

func TestTranslateFilterMapAndOperatorNestsIntoMust(t *testing.T) {
	out, err := translateFilterMap(map[string]any{
		"$and": []any{
			map[string]any{"tenant_id": "t1"},
			map[string]any{"status": "ready"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, out.Must, 2)
}

func TestTranslateFilterMapOrOperatorNestsIntoShould(t *testing.T) {
	out, err := translateFilterMap(map[string]any{
		"$or": []any{
			map[string]any{"tenant_id": "t1"},
			map[string]any{"tenant_id": "t2"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, out.Should, 2)
}

func TestTranslateFilterMapNotOperatorNestsIntoMustNot(t *testing.T) {
	out, err := translateFilterMap(map[string]any{
		"$not": map[string]any{"status": "failed"},
	})
	require.NoError(t, err)
	assert.Len(t, out.MustNot, 1)
}

func TestTranslateFilterMapUnsupportedTopLevelOperatorErrors(t *testing.T) {
	_, err := translateFilterMap(map[string]any{"$xor": []any{}})
	assert.Error(t, err)
}

func TestTranslateFilterMapUnsupportedFieldOperatorErrors(t *testing.T) {
	_, err := translateFilterMap(map[string]any{
		"field": map[string]any{"$gt": 5},
	})
	assert.Error(t, err)
}

func TestTranslateFilterMapEmptyOperatorMapErrors(t *testing.T) {
	_, err := translateFilterMap(map[string]any{
		"field": map[string]any{},
	})
	assert.Error(t, err)
}

func TestToScalarValueAcceptsSupportedTypes(t *testing.T) {
	_, ok := toScalarValue("s")
	assert.True(t, ok)
	_, ok = toScalarValue(true)
	assert.True(t, ok)
	_, ok = toScalarValue(1)
	assert.True(t, ok)
	_, ok = toScalarValue(1.5)
	assert.True(t, ok)
	_, ok = toScalarValue([]int{1})
	assert.False(t, ok)
}

func TestMergeTranslatedFiltersAppendsAllBuckets(t *testing.T) {
	dst := translatedFilter{Must: []any{"m1"}}
	mergeTranslatedFilters(&dst, translatedFilter{Must: []any{"m2"}, Should: []any{"s1"}, MustNot: []any{"n1"}})
	assert.Equal(t, []any{"m1", "m2"}, dst.Must)
	assert.Equal(t, []any{"s1"}, dst.Should)
	assert.Equal(t, []any{"n1"}, dst.MustNot)
}

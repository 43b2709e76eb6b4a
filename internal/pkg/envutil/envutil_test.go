package envutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntFallsBackToDefaultWhenUnsetOrInvalid(t *testing.T) {
	assert.Equal(t, 5, Int("ENVUTIL_INT_UNSET", 5))
	t.Setenv("ENVUTIL_INT_BAD", "not-a-number")
	assert.Equal(t, 5, Int("ENVUTIL_INT_BAD", 5))
	t.Setenv("ENVUTIL_INT_OK", "42")
	assert.Equal(t, 42, Int("ENVUTIL_INT_OK", 5))
}

func TestFloatFallsBackToDefaultWhenUnsetOrInvalid(t *testing.T) {
	assert.Equal(t, 0.5, Float("ENVUTIL_FLOAT_UNSET", 0.5))
	t.Setenv("ENVUTIL_FLOAT_OK", "0.125")
	assert.Equal(t, 0.125, Float("ENVUTIL_FLOAT_OK", 0.5))
}

func TestBoolParsesStandardFormsAndFallsBack(t *testing.T) {
	assert.True(t, Bool("ENVUTIL_BOOL_UNSET", true))
	t.Setenv("ENVUTIL_BOOL_FALSE", "false")
	assert.False(t, Bool("ENVUTIL_BOOL_FALSE", true))
	t.Setenv("ENVUTIL_BOOL_BAD", "maybe")
	assert.True(t, Bool("ENVUTIL_BOOL_BAD", true))
}

func TestDurationParsesGoDurationStrings(t *testing.T) {
	t.Setenv("ENVUTIL_DUR_OK", "250ms")
	assert.Equal(t, 250*time.Millisecond, Duration("ENVUTIL_DUR_OK", time.Second))
	assert.Equal(t, time.Second, Duration("ENVUTIL_DUR_UNSET", time.Second))
}

func TestStringTrimsWhitespace(t *testing.T) {
	t.Setenv("ENVUTIL_STR_OK", "  hello  ")
	assert.Equal(t, "hello", String("ENVUTIL_STR_OK", "default"))
	assert.Equal(t, "default", String("ENVUTIL_STR_UNSET", "default"))
}

func TestStringSliceSplitsAndTrimsEntries(t *testing.T) {
	t.Setenv("ENVUTIL_SLICE_OK", "a, b ,,c")
	assert.Equal(t, []string{"a", "b", "c"}, StringSlice("ENVUTIL_SLICE_OK", []string{"x"}))
	assert.Equal(t, []string{"x"}, StringSlice("ENVUTIL_SLICE_UNSET", []string{"x"}))
}

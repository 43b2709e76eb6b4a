package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heimdex/videosearch/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	require.NoError(t, err)
	return log
}

func TestLoadAppliesDefaultsWhenEnvUnset(t *testing.T) {
	cfg, err := Load(testLogger(t))
	require.NoError(t, err)
	require.Equal(t, "adaptive", cfg.Scene.Strategy)
	require.Equal(t, "rrf", cfg.Fusion.Method)
	require.Equal(t, 60, cfg.Fusion.RRFK)
	require.Equal(t, "auto", cfg.Query.VisualMode)
	require.False(t, cfg.Gating.EnableDisplayScoreCalibration)
	require.Equal(t, "qdrant", cfg.VectorProvider)
}

func TestLoadRespectsEnvOverrides(t *testing.T) {
	t.Setenv("FUSION_METHOD", "minmax_mean")
	t.Setenv("RRF_K", "30")
	t.Setenv("MULTI_DENSE_TIMEOUT", "500ms")
	t.Setenv("VECTOR_PROVIDER", "local")

	cfg, err := Load(testLogger(t))
	require.NoError(t, err)
	require.Equal(t, "minmax_mean", cfg.Fusion.Method)
	require.Equal(t, 30, cfg.Fusion.RRFK)
	require.Equal(t, 500*time.Millisecond, cfg.Fusion.MultiDenseTimeout)
	require.Equal(t, "local", cfg.VectorProvider)
}

func TestLoadWeightsSumCloseToOneByDefault(t *testing.T) {
	cfg, err := Load(testLogger(t))
	require.NoError(t, err)
	sum := cfg.Fusion.WeightTranscript + cfg.Fusion.WeightVisual + cfg.Fusion.WeightSummary + cfg.Fusion.WeightLexical
	require.InDelta(t, 1.0, sum, 1e-9)
}

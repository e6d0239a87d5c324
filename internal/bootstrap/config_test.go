package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess_analysis/internal/repository/tablebase"
)

func TestSetupDefaultsWithoutFile(t *testing.T) {
	cfg, err := Setup(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerPort)
	assert.Equal(t, "stockfish", cfg.EnginePath)
	assert.Equal(t, 5*time.Second, cfg.EngineInitTimeout)
	assert.Equal(t, 3, cfg.EngineMaxInitAttempts)
	assert.Equal(t, 18, cfg.EngineEvalDepth)
	assert.Equal(t, tablebase.DefaultURL, cfg.TablebaseUrl)
	assert.Equal(t, 7, cfg.TablebaseMaxPieces)
	assert.Equal(t, 30*time.Second, cfg.TablebaseFailureTTL)
	assert.Equal(t, 400, cfg.ThresholdBlunder)
	assert.Empty(t, cfg.RedisUrl)
}

func TestSetupReadsFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "ENGINE_PATH=/usr/games/stockfish\n" +
		"ENGINE_ARGS=--nnue  off\n" +
		"ENGINE_REQUEST_TIMEOUT=45s\n" +
		"THRESHOLD_MISTAKE=150\n" +
		"LOCAL_CORS=true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ENGINE_EVAL_DEPTH", "22")
	t.Setenv("THRESHOLD_MISTAKE", "175")

	cfg, err := Setup(path)
	require.NoError(t, err)

	bin, args := cfg.EngineCommand()
	assert.Equal(t, "/usr/games/stockfish", bin)
	assert.Equal(t, []string{"--nnue", "off"}, args)
	assert.True(t, cfg.IsLocalCors)

	ec := cfg.Engine()
	assert.Equal(t, 45*time.Second, ec.RequestTimeout)
	assert.Equal(t, 22, ec.EvalDepth)

	th := cfg.Thresholds()
	assert.Equal(t, 175, th.Mistake)
	assert.Equal(t, 50, th.Inaccuracy)

	tc := cfg.Tablebase()
	assert.Equal(t, 24*time.Hour, tc.TTL)
	assert.Equal(t, 4096, tc.CacheSize)
}

func TestSetupRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Setup(path)
	assert.Error(t, err)
}

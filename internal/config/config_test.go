package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigValuePrecedence(t *testing.T) {
	t.Setenv("NARRATOR_TEST_KEY", "from-env")

	// Flag wins over env.
	assert.Equal(t, "from-flag", getConfigValue("from-flag", "NARRATOR_TEST_KEY", "default"))

	// Env wins over default.
	assert.Equal(t, "from-env", getConfigValue("", "NARRATOR_TEST_KEY", "default"))

	// Default when nothing else is set.
	assert.Equal(t, "default", getConfigValue("", "NARRATOR_TEST_MISSING", "default"))
}

func TestGetIntConfigValue(t *testing.T) {
	t.Setenv("NARRATOR_TEST_INT", "49152")

	assert.Equal(t, 49152, getIntConfigValue("", "NARRATOR_TEST_INT", 7))
	assert.Equal(t, 7, getIntConfigValue("", "NARRATOR_TEST_INT_MISSING", 7))

	// Garbage falls back to the default.
	t.Setenv("NARRATOR_TEST_INT_BAD", "not-a-number")
	assert.Equal(t, 7, getIntConfigValue("", "NARRATOR_TEST_INT_BAD", 7))
}

func TestGetDurationConfigValue(t *testing.T) {
	t.Setenv("NARRATOR_TEST_DUR", "45s")

	d, err := getDurationConfigValue("", "NARRATOR_TEST_DUR", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, d)

	d, err = getDurationConfigValue("", "NARRATOR_TEST_DUR_MISSING", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	t.Setenv("NARRATOR_TEST_DUR_BAD", "eleven")
	_, err = getDurationConfigValue("", "NARRATOR_TEST_DUR_BAD", time.Minute)
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	content := "# narrator settings\n" +
		"NARRATOR_ENVFILE_A=hello\n" +
		"NARRATOR_ENVFILE_B=\"quoted value\"\n" +
		"\n" +
		"NARRATOR_ENVFILE_C='single'\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("NARRATOR_ENVFILE_A", "")
	t.Setenv("NARRATOR_ENVFILE_B", "")
	t.Setenv("NARRATOR_ENVFILE_C", "")
	t.Setenv("NARRATOR_ENVFILE_EXISTING", "keep-me")

	require.NoError(t, loadEnvFile(path))

	assert.Equal(t, "hello", os.Getenv("NARRATOR_ENVFILE_A"))
	assert.Equal(t, "quoted value", os.Getenv("NARRATOR_ENVFILE_B"))
	assert.Equal(t, "single", os.Getenv("NARRATOR_ENVFILE_C"))
	assert.Equal(t, "keep-me", os.Getenv("NARRATOR_ENVFILE_EXISTING"))
}

func TestLoadEnvFileInvalidLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("NOT A VALID LINE\n"), 0o644))

	assert.Error(t, loadEnvFile(path))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := expandPath("~/narrator", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "narrator"), expanded)

	expanded, err = expandPath("", "/default/path")
	require.NoError(t, err)
	assert.Equal(t, "/default/path", expanded)

	expanded, err = expandPath("/absolute/path", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/absolute/path", expanded)
}

func validTestConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Server: ServerConfig{Name: "Test", Port: "8080"},
		Data:   DataConfig{BasePath: "/tmp/narrator"},
		Engine: EngineConfig{MaxRequestBytes: 48 * 1024, SaveDelay: 2 * time.Second},
		TTS: TTSConfig{
			BaseURL:         "http://localhost:5002",
			AuditionTimeout: 30 * time.Second,
		},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validTestConfig().Validate())

	cfg := validTestConfig()
	cfg.App.Environment = "sandbox"
	assert.Error(t, cfg.Validate())

	cfg = validTestConfig()
	cfg.Logger.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = validTestConfig()
	cfg.Data.BasePath = ""
	assert.Error(t, cfg.Validate())

	cfg = validTestConfig()
	cfg.Engine.MaxRequestBytes = 0
	assert.Error(t, cfg.Validate())

	cfg = validTestConfig()
	cfg.TTS.BaseURL = ""
	assert.Error(t, cfg.Validate())
}

func TestDBPath(t *testing.T) {
	cfg := validTestConfig()
	assert.Equal(t, filepath.Join("/tmp/narrator", "plans"), cfg.DBPath())
}

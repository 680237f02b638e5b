package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func validTestConfig() Config {
	return Config{
		DatabasePath:  ":memory:",
		AutoSaveDelay: time.Second,
		CanvasWidth:   800,
		CanvasHeight:  600,
		NoS3:          true,
	}
}

func clearNoteflowEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NOTEFLOW_DB", "NOTEFLOW_MASTER_KEY", "NOTEFLOW_AUTOSAVE_DELAY",
		"NOTEFLOW_CANVAS_WIDTH", "NOTEFLOW_CANVAS_HEIGHT", "NOTEFLOW_CANVAS_MAX_HISTORY",
		"NOTEFLOW_LOG_LEVEL", "AWS_ENDPOINT_URL_S3", "AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY", "BUCKET_NAME", "S3_PUBLIC_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestValidate_MinimalConfigPasses(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_RequiresS3SecretsWhenEndpointSet(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.NoS3 = false
	cfg.AWSEndpointS3 = "https://fly.storage.tigris.dev"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when S3 endpoint is set without credentials")
	}
	msg := err.Error()
	for _, expected := range []string{"BUCKET_NAME", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"} {
		if !strings.Contains(msg, expected) {
			t.Fatalf("expected validation error to mention %q, got: %v", expected, err)
		}
	}
}

func testValidate_RejectsShortMasterKey(t *rapid.T) {
	cfg := validTestConfig()
	cfg.MasterKey = strings.Repeat("a", rapid.IntRange(1, 63).Draw(t, "master_key_len"))

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for short master key")
	}
	if !strings.Contains(err.Error(), "NOTEFLOW_MASTER_KEY") {
		t.Fatalf("expected error mentioning NOTEFLOW_MASTER_KEY, got: %v", err)
	}
}

func TestValidate_RejectsShortMasterKey(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_RejectsShortMasterKey)
}

func TestLoadConfig_DefaultsAndFlagOverrides(t *testing.T) {
	clearNoteflowEnv(t)
	t.Setenv("NOTEFLOW_DB", "/tmp/from-env.db")

	cfg, err := LoadConfig(Flags{DatabasePath: "/tmp/from-flag.db", LogLevel: "debug"})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DatabasePath != "/tmp/from-flag.db" {
		t.Fatalf("flag should override env, got %q", cfg.DatabasePath)
	}
	if cfg.AutoSaveDelay != time.Second {
		t.Fatalf("default autosave delay = %v", cfg.AutoSaveDelay)
	}
	if cfg.CanvasWidth != 800 || cfg.CanvasHeight != 600 {
		t.Fatalf("default canvas size = %dx%d", cfg.CanvasWidth, cfg.CanvasHeight)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.Encrypted() {
		t.Fatal("no master key should mean unencrypted")
	}
}

func TestLoadConfig_ReadsEnvFile(t *testing.T) {
	clearNoteflowEnv(t)
	os.Unsetenv("NOTEFLOW_AUTOSAVE_DELAY")
	t.Cleanup(func() { os.Unsetenv("NOTEFLOW_AUTOSAVE_DELAY") })

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("NOTEFLOW_AUTOSAVE_DELAY=250ms\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := LoadConfig(Flags{EnvFile: path})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AutoSaveDelay != 250*time.Millisecond {
		t.Fatalf("autosave delay from env file = %v", cfg.AutoSaveDelay)
	}
}

func TestLoadConfig_MissingEnvFileIsIgnored(t *testing.T) {
	clearNoteflowEnv(t)
	if _, err := LoadConfig(Flags{EnvFile: filepath.Join(t.TempDir(), "absent.env")}); err != nil {
		t.Fatalf("missing env file should be ignored, got %v", err)
	}
}

func TestHelperParsers_DefaultOnBadInput(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "not-an-int")
	t.Setenv("CFG_TEST_DUR", "not-a-duration")
	if got := parseIntOrDefault("CFG_TEST_INT", 7); got != 7 {
		t.Fatalf("parseIntOrDefault fallback mismatch: got=%d want=7", got)
	}
	if got := parseDurationOrDefault("CFG_TEST_DUR", 2*time.Minute); got != 2*time.Minute {
		t.Fatalf("parseDurationOrDefault fallback mismatch: got=%v want=%v", got, 2*time.Minute)
	}
}

func TestGetEnvOrDefault_TrimsWhitespace(t *testing.T) {
	key := "CFG_TEST_STR_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Setenv(key, "   value   ")

	if got := getEnvOrDefault(key, "fallback"); got != "value" {
		t.Fatalf("getEnvOrDefault trim mismatch: got=%q want=%q", got, "value")
	}
}

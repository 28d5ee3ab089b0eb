package cli

import (
	"os"
	"slices"
	"strings"
	"testing"
	"time"
)

// clearEnv 環境変数の影響を受けないようにする
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"HEADLESS", "TIMEOUT", "LOG_LEVEL", "TRACKPLAY_BACKEND", "TRACKPLAY_SOUNDFONT", "TRACKPLAY_PATH"} {
		t.Setenv(key, "")
	}
}

func TestParseArgs_ValidArgs(t *testing.T) {
	defaults := Config{
		LogLevel:  "info",
		Backend:   BackendEbiten,
		Loop:      true,
		Gain:      1,
		BlockSize: DefaultBlockSize,
	}
	with := func(f func(c *Config)) Config {
		c := defaults
		f(&c)
		return c
	}

	tests := []struct {
		name     string
		args     []string
		expected Config
	}{
		{
			name:     "デフォルト設定",
			args:     []string{},
			expected: defaults,
		},
		{
			name:     "モジュールパス指定",
			args:     []string{"music/title.mid"},
			expected: with(func(c *Config) { c.ModulePath = "music/title.mid" }),
		},
		{
			name:     "タイムアウト指定（短縮形）",
			args:     []string{"-t", "5"},
			expected: with(func(c *Config) { c.Timeout = 5 * time.Second }),
		},
		{
			name:     "ログレベル指定",
			args:     []string{"--log-level", "debug"},
			expected: with(func(c *Config) { c.LogLevel = "debug" }),
		},
		{
			name: "ヘッドレスモードはnullバックエンド",
			args: []string{"--headless"},
			expected: with(func(c *Config) {
				c.Headless = true
				c.Backend = BackendNull
			}),
		},
		{
			name: "WAV出力",
			args: []string{"-o", "out.wav", "--no-loop", "song.mid"},
			expected: with(func(c *Config) {
				c.OutPath = "out.wav"
				c.Backend = BackendWAV
				c.ModulePath = "song.mid"
				c.Loop = false
			}),
		},
		{
			name:     "otoバックエンド",
			args:     []string{"--backend", "oto"},
			expected: with(func(c *Config) { c.Backend = BackendOto }),
		},
		{
			name: "ループなしと音量",
			args: []string{"song.mid", "--no-loop", "-g", "0.5"},
			expected: with(func(c *Config) {
				c.ModulePath = "song.mid"
				c.Loop = false
				c.Gain = 0.5
			}),
		},
		{
			name:     "範囲外の音量はそのまま渡す",
			args:     []string{"--gain", "-0.5"},
			expected: with(func(c *Config) { c.Gain = -0.5 }),
		},
		{
			name: "検索パス（繰り返しとカンマ区切り）",
			args: []string{"--search-path", "a,b", "--search-path=c", "song.mid"},
			expected: with(func(c *Config) {
				c.SearchPaths = []string{"a", "b", "c"}
				c.ModulePath = "song.mid"
			}),
		},
		{
			name: "複数オプション",
			args: []string{"-i", "song.mid", "--soundfont", "gm.sf2", "--block-size", "512", "--timeout", "30"},
			expected: with(func(c *Config) {
				c.Interactive = true
				c.ModulePath = "song.mid"
				c.SoundFont = "gm.sf2"
				c.BlockSize = 512
				c.Timeout = 30 * time.Second
			}),
		},
		{
			name: "ブロックサイズ上限",
			args: []string{"--block-size", "44100", "song.mid"},
			expected: with(func(c *Config) {
				c.ModulePath = "song.mid"
				c.BlockSize = MaxBlockSize
			}),
		},
		{
			name:     "ヘルプ表示（短縮形）",
			args:     []string{"-h"},
			expected: with(func(c *Config) { c.ShowHelp = true }),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)

			config, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertConfig(t, config, &tt.expected)
		})
	}
}

func TestParseArgs_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("HEADLESS", "true")
	t.Setenv("TIMEOUT", "7")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("TRACKPLAY_SOUNDFONT", "/sf/gm.sf2")
	t.Setenv("TRACKPLAY_PATH", strings.Join([]string{"/music", "/more"}, string(os.PathListSeparator)))

	config, err := ParseArgs([]string{"--search-path", "local", "song.mid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := Config{
		ModulePath:  "song.mid",
		Timeout:     7 * time.Second,
		LogLevel:    "warn",
		Headless:    true,
		Backend:     BackendNull,
		SoundFont:   "/sf/gm.sf2",
		Loop:        true,
		Gain:        1,
		BlockSize:   DefaultBlockSize,
		SearchPaths: []string{"local", "/music", "/more"},
	}
	assertConfig(t, config, &expected)
}

func TestParseArgs_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRACKPLAY_BACKEND", "oto")
	t.Setenv("TRACKPLAY_SOUNDFONT", "/env.sf2")
	t.Setenv("LOG_LEVEL", "debug")

	config, err := ParseArgs([]string{"--backend", "null", "--soundfont", "flag.sf2", "-l", "error"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Backend != BackendNull || config.SoundFont != "flag.sf2" || config.LogLevel != "error" {
		t.Errorf("flags did not win over environment: %+v", config)
	}
}

func TestParseArgs_InvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "負のタイムアウト",
			args: []string{"--timeout", "-10"},
		},
		{
			name: "無効なログレベル（短縮形）",
			args: []string{"-l", "trace"},
		},
		{
			name: "無効なバックエンド",
			args: []string{"--backend", "alsa"},
		},
		{
			name: "出力先のないwavバックエンド",
			args: []string{"--backend", "wav"},
		},
		{
			name: "終了条件のないWAV出力",
			args: []string{"-o", "out.wav", "song.mid"},
		},
		{
			name: "ヘッドレスでデバイスバックエンド",
			args: []string{"--headless", "--backend", "ebiten"},
		},
		{
			name: "ブロックサイズ0",
			args: []string{"--block-size", "0"},
		},
		{
			name: "ブロックサイズが上限超過",
			args: []string{"--block-size", "44101", "song.mid"},
		},
		{
			name: "数値でない音量",
			args: []string{"--gain", "loud"},
		},
		{
			name: "未知のフラグ",
			args: []string{"--shuffle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := ParseArgs(tt.args)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{
			args: []string{"song.mid", "-t", "5", "--headless"},
			want: []string{"-t", "5", "--headless", "--", "song.mid"},
		},
		{
			args: []string{"--no-loop", "song.mid", "--gain=0.3"},
			want: []string{"--no-loop", "--gain=0.3", "--", "song.mid"},
		},
		{
			args: []string{"-i", "--", "-odd-name.mid"},
			want: []string{"-i", "--", "-odd-name.mid"},
		},
	}
	for _, tt := range tests {
		if got := reorderArgs(tt.args); !slices.Equal(got, tt.want) {
			t.Errorf("reorderArgs(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func assertConfig(t *testing.T, got, want *Config) {
	t.Helper()

	if got.ModulePath != want.ModulePath {
		t.Errorf("ModulePath = %q, want %q", got.ModulePath, want.ModulePath)
	}
	if got.Timeout != want.Timeout {
		t.Errorf("Timeout = %v, want %v", got.Timeout, want.Timeout)
	}
	if got.LogLevel != want.LogLevel {
		t.Errorf("LogLevel = %q, want %q", got.LogLevel, want.LogLevel)
	}
	if got.Headless != want.Headless {
		t.Errorf("Headless = %v, want %v", got.Headless, want.Headless)
	}
	if got.Backend != want.Backend {
		t.Errorf("Backend = %q, want %q", got.Backend, want.Backend)
	}
	if got.OutPath != want.OutPath {
		t.Errorf("OutPath = %q, want %q", got.OutPath, want.OutPath)
	}
	if got.SoundFont != want.SoundFont {
		t.Errorf("SoundFont = %q, want %q", got.SoundFont, want.SoundFont)
	}
	if got.Loop != want.Loop {
		t.Errorf("Loop = %v, want %v", got.Loop, want.Loop)
	}
	if got.Gain != want.Gain {
		t.Errorf("Gain = %v, want %v", got.Gain, want.Gain)
	}
	if got.BlockSize != want.BlockSize {
		t.Errorf("BlockSize = %d, want %d", got.BlockSize, want.BlockSize)
	}
	if !slices.Equal(got.SearchPaths, want.SearchPaths) {
		t.Errorf("SearchPaths = %v, want %v", got.SearchPaths, want.SearchPaths)
	}
	if got.Interactive != want.Interactive {
		t.Errorf("Interactive = %v, want %v", got.Interactive, want.Interactive)
	}
	if got.ShowHelp != want.ShowHelp {
		t.Errorf("ShowHelp = %v, want %v", got.ShowHelp, want.ShowHelp)
	}
}

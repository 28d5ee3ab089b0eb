package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// 出力バックエンド
const (
	BackendEbiten = "ebiten"
	BackendOto    = "oto"
	BackendWAV    = "wav"
	BackendNull   = "null"
)

const (
	// DefaultBlockSize は1回の書き込みで描画するフレーム数のデフォルト値
	DefaultBlockSize = 1024
	// MaxBlockSize はブロックサイズの上限（44.1kHzで1秒分）
	MaxBlockSize = 44100
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	ModulePath  string        // 再生するモジュールのパス
	Timeout     time.Duration // タイムアウト時間（0は無制限）
	LogLevel    string        // ログレベル（debug, info, warn, error）
	Headless    bool          // ヘッドレスモード（オーディオデバイスを使わない）
	Backend     string        // 出力バックエンド（ebiten, oto, wav, null）
	OutPath     string        // WAV出力先（wavバックエンド）
	SoundFont   string        // MIDI再生用SoundFont
	Loop        bool          // ループ再生
	Gain        float64       // 音量（0〜1、範囲外はコントローラー側でクランプ）
	BlockSize   int           // 1ブロックのフレーム数
	SearchPaths []string      // モジュール検索パス
	Interactive bool          // キーボード操作モード
	ShowHelp    bool          // ヘルプ表示フラグ
}

// listFlag は繰り返し指定およびカンマ区切りを受け付けるフラグ
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*l = append(*l, v)
		}
	}
	return nil
}

// boolFlags は値を取らないフラグ（引数の並べ替えで次の引数を消費しない）
var boolFlags = map[string]bool{
	"-h": true, "--help": true, "-help": true,
	"--headless": true, "-headless": true,
	"--no-loop": true, "-no-loop": true,
	"-i": true, "--interactive": true, "-interactive": true,
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("trackplay", flag.ContinueOnError)

	config := &Config{}

	var timeoutSec int
	var noLoop bool
	var searchPaths listFlag
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.StringVar(&config.Backend, "backend", "", "出力バックエンド（ebiten, oto, wav, null）")
	fs.StringVar(&config.OutPath, "out", "", "WAV出力先")
	fs.StringVar(&config.OutPath, "o", "", "WAV出力先（短縮形）")
	fs.StringVar(&config.SoundFont, "soundfont", "", "SoundFontファイル")
	fs.BoolVar(&noLoop, "no-loop", false, "ループ再生しない")
	fs.Float64Var(&config.Gain, "gain", 1, "音量（0〜1）")
	fs.Float64Var(&config.Gain, "g", 1, "音量（短縮形）")
	fs.IntVar(&config.BlockSize, "block-size", DefaultBlockSize, "1ブロックのフレーム数")
	fs.Var(&searchPaths, "search-path", "モジュール検索パス（複数指定可）")
	fs.BoolVar(&config.Interactive, "interactive", false, "キーボード操作モード")
	fs.BoolVar(&config.Interactive, "i", false, "キーボード操作モード（短縮形）")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}
	config.Loop = !noLoop

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	if config.Backend == "" {
		config.Backend = strings.ToLower(os.Getenv("TRACKPLAY_BACKEND"))
	}

	if config.SoundFont == "" {
		config.SoundFont = os.Getenv("TRACKPLAY_SOUNDFONT")
	}

	config.SearchPaths = searchPaths
	if pathEnv := os.Getenv("TRACKPLAY_PATH"); pathEnv != "" {
		for _, p := range filepath.SplitList(pathEnv) {
			if p != "" {
				config.SearchPaths = append(config.SearchPaths, p)
			}
		}
	}

	// バックエンドの決定：--out は wav、ヘッドレスは null を既定にする
	switch {
	case config.OutPath != "" && config.Backend == "":
		config.Backend = BackendWAV
	case config.Headless && config.Backend == "":
		config.Backend = BackendNull
	case config.Backend == "":
		config.Backend = BackendEbiten
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	// バックエンドの検証
	switch config.Backend {
	case BackendEbiten, BackendOto, BackendNull:
	case BackendWAV:
		if config.OutPath == "" {
			return nil, fmt.Errorf("backend %s requires --out", BackendWAV)
		}
		// ファイル出力はデバイスの速度制限がないため、ループ再生には終了条件が必要
		if config.Loop && timeoutSec == 0 {
			return nil, fmt.Errorf("backend %s with looping requires --timeout or --no-loop", BackendWAV)
		}
	default:
		return nil, fmt.Errorf("invalid backend: %s (must be ebiten, oto, wav, or null)", config.Backend)
	}
	if config.Headless && (config.Backend == BackendEbiten || config.Backend == BackendOto) {
		return nil, fmt.Errorf("backend %s needs an audio device and cannot run headless", config.Backend)
	}

	if config.BlockSize <= 0 || config.BlockSize > MaxBlockSize {
		return nil, fmt.Errorf("block size must be between 1 and %d, got %d", MaxBlockSize, config.BlockSize)
	}

	// 位置引数（モジュールのパス）
	if fs.NArg() > 0 {
		config.ModulePath = fs.Arg(0)
	}

	return config, nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			// --flag=value 形式と値を取らないフラグは次の引数を消費しない
			if strings.Contains(arg, "=") || boolFlags[arg] {
				continue
			}
			if i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置（"-"で始まるファイル名も位置引数として扱う）
	if len(positional) == 0 {
		return flags
	}
	flags = append(flags, "--")
	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `trackplay - module player

Usage:
  trackplay [options] <module>

Arguments:
  module        再生するモジュール（.mid .midi .smf .kar .wav）
                検索パスと埋め込みアセットからも探す

Options:
  -t, --timeout <seconds>     指定秒数後に再生を終了（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --headless                  ヘッドレスモード（nullバックエンド）
  --backend <name>            出力先: ebiten, oto, wav, null（デフォルト: ebiten）
  -o, --out <file>            WAVファイルへ書き出す（--backend wav を含意）
  --soundfont <file>          MIDI再生用SoundFont（.sf2）
  --no-loop                   曲の終わりで停止する
  -g, --gain <0..1>           音量（デフォルト: 1）
  --block-size <frames>       1回の書き込みのフレーム数（1..44100、デフォルト: 1024）
  --search-path <dir>         モジュール検索パス（複数指定・カンマ区切り可）
  -i, --interactive           キーボード操作（space: 再生/停止, l: ループ, +/-: 音量, q: 終了）
  -h, --help                  このヘルプを表示

Environment Variables:
  HEADLESS=1                  ヘッドレスモードを有効化
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル
  TRACKPLAY_BACKEND=<name>    出力バックエンド
  TRACKPLAY_SOUNDFONT=<file>  SoundFontファイル
  TRACKPLAY_PATH=<dirs>       モジュール検索パス（OSのパス区切り文字で区切る）

Examples:
  trackplay song.mid                        再生（曲の終わりで先頭に戻る）
  trackplay --no-loop song.mid              1回だけ再生
  trackplay -o out.wav --no-loop song.mid   WAVファイルに書き出す
  trackplay --headless -t 5 song.mid        デバイスなしで5秒間再生
  trackplay -i --soundfont gm.sf2 song.mid  キーボードで操作
`)
}

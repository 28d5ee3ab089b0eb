package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/zurustar/trackplay/pkg/cli"
	"github.com/zurustar/trackplay/pkg/decoder"
	"github.com/zurustar/trackplay/pkg/fileutil"
	"github.com/zurustar/trackplay/pkg/logger"
	"github.com/zurustar/trackplay/pkg/playback"
	"github.com/zurustar/trackplay/pkg/sink"
)

// assetsRoot は埋め込みファイルシステム内のアセットディレクトリ
const assetsRoot = "assets"

// ErrNoModule はモジュールが指定されていない場合のエラー
var ErrNoModule = errors.New("no module specified")

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config *cli.Config
	log    *slog.Logger
	assets fs.FS // 埋め込みアセット（nilの場合は外部ファイルのみ）

	stdin  *os.File
	stdout io.Writer
	keys   *keyReader // 対話モードで初めて使うときに作成
}

// New Applicationを作成
func New(assets fs.FS) *Application {
	return &Application{
		assets: assets,
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp()
		return nil
	}
	if app.config.ModulePath == "" {
		cli.PrintHelp()
		return ErrNoModule
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Info("Application started", "module", app.config.ModulePath, "backend", app.config.Backend)

	// 3. 出力先の準備
	out, err := app.newSink()
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	// 4. コントローラーの作成
	ctrl := playback.New(playback.Config{
		Opener:    app.newRegistry(),
		Loader:    app.newLoader(),
		Sink:      out,
		BlockSize: app.config.BlockSize,
		Logger:    app.log,
	})
	defer func() {
		if err := ctrl.Close(); err != nil {
			app.log.Warn("Failed to close controller", "error", err)
		}
	}()

	// 5. モジュールの読み込み（Loadはループ設定を既定値に戻すので、その後で設定する）
	if err := ctrl.Load(app.config.ModulePath); err != nil {
		return fmt.Errorf("failed to load module: %w", err)
	}
	ctrl.SetLoop(app.config.Loop)
	ctrl.SetGain(app.config.Gain)

	// 6. 再生
	if err := app.play(ctrl); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}

	app.log.Info("Application terminated normally")
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化
// 対話モードでは標準出力をステータス行に使うため、ログは標準エラーに出す
func (app *Application) initLogger() error {
	var err error
	if app.config.Interactive {
		err = logger.InitLoggerTo(app.config.LogLevel, os.Stderr)
	} else {
		err = logger.InitLogger(app.config.LogLevel)
	}
	if err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// newLoader 検索パス、カレントディレクトリ、埋め込みアセットの順にモジュールを探すローダーを作成
func (app *Application) newLoader() *fileutil.Loader {
	var extra []fileutil.FileSystem
	if app.assets != nil {
		extra = append(extra, fileutil.NewEmbedFS(app.assets, assetsRoot))
	}
	loader := fileutil.NewSearchPathLoader(app.log, app.config.SearchPaths, extra...)
	app.log.Debug("Module loader ready", "file_systems", loader.Len())
	return loader
}

// newRegistry デコーダーを登録する
func (app *Application) newRegistry() *decoder.Registry {
	moduleDir := filepath.Dir(app.config.ModulePath)
	loc := findSoundFont(app.assets, app.config.SoundFont, moduleDir)
	if loc == nil {
		app.log.Warn("SoundFont not found, MIDI modules cannot be played", "name", DefaultSoundFontName)
	} else {
		app.log.Info("SoundFont located", "path", loc.Path, "embedded", loc.IsEmbedded)
	}
	return decoder.NewDefaultRegistry(lazyMIDIOpener(loc))
}

// keyReader 標準入力のキーリーダーを返す（初回のみ作成し、以降の再生で使い回す）
func (app *Application) keyReader() *keyReader {
	if app.keys == nil {
		app.keys = newKeyReader(app.stdin)
	}
	return app.keys
}

// newSink バックエンドに応じた出力先を作成
func (app *Application) newSink() (sink.Sink, error) {
	switch app.config.Backend {
	case cli.BackendEbiten:
		return sink.NewEbitenSink(), nil
	case cli.BackendOto:
		return sink.NewOtoSink(), nil
	case cli.BackendWAV:
		return sink.NewWAVFileSink(app.config.OutPath), nil
	case cli.BackendNull:
		// ヘッドレスでもデバイスと同じ速度で再生する
		return sink.NewNullSink(true), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", app.config.Backend)
	}
}

// play 再生を開始し、曲の終了・タイムアウト・シグナル・qキーのいずれかまで待つ
func (app *Application) play(ctrl *playback.Controller) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if app.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Timeout)
		defer cancel()
		app.log.Info("Waiting for timeout", "duration", app.config.Timeout)
	}

	monitor := NewMonitor(DefaultMonitorInterval, ctrl.Events(), app.log)

	if app.config.Interactive {
		var quit context.CancelFunc
		ctx, quit = context.WithCancel(ctx)
		defer quit()

		restore, err := enterRawMode(app.stdin)
		if err != nil {
			app.log.Warn("Interactive mode unavailable", "error", err)
		} else {
			keysDone := make(chan struct{})
			defer func() {
				// キー処理の終了を待ってから端末を元に戻す
				quit()
				<-keysDone
				restore()
				fmt.Fprintln(app.stdout)
			}()
			monitor.onTick = func() { printStatus(app.stdout, ctrl.Status()) }
			keys := app.keyReader().keys
			go func() {
				defer close(keysDone)
				readKeys(ctx, keys, ctrl, quit)
			}()
		}
	}

	monitor.Start()
	defer monitor.Stop()

	ctrl.Play()

	err := ctrl.Wait(ctx)
	switch {
	case err == nil:
		app.log.Info("Playback finished")
	case errors.Is(err, context.DeadlineExceeded):
		app.log.Info("Timeout reached, terminating")
	case errors.Is(err, context.Canceled):
		app.log.Info("Playback interrupted")
	default:
		return err
	}
	return nil
}

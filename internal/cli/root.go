// Package cli はdevdashコマンドラインクライアントのコマンド群を提供する。
//
// 各コマンドは設定を読み込み、ローカルストア・リモート・タイトル取得を
// sync.Orchestrator に束ねたうえで実行される。
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hitoshi/devdash/internal/clientconfig"
	"github.com/hitoshi/devdash/internal/dashboard"
	"github.com/hitoshi/devdash/internal/logger"
	"github.com/hitoshi/devdash/internal/storage/apiclient"
	"github.com/hitoshi/devdash/internal/storage/github"
	"github.com/hitoshi/devdash/internal/storage/local"
	dashsync "github.com/hitoshi/devdash/internal/sync"
	"github.com/hitoshi/devdash/internal/title"
)

// Options は実行環境の差し替え口。ゼロ値の項目は標準の実装を使う。
type Options struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// HTTPClient はリモート同期（GitHub・バックエンド）で使うクライアント。
	HTTPClient *http.Client
	// Titles はタイトル取得の実装。nilの場合はSSRF対策済みのResolverを使う。
	Titles dashsync.TitleResolver
}

// app は1回のコマンド実行で共有する依存を保持する。
type app struct {
	opts       Options
	v          *viper.Viper
	configPath string

	cfg       *clientconfig.Config
	logger    *slog.Logger
	logCloser io.Closer
	local     *local.Store
	github    *github.Client
	api       *apiclient.Client
	orch      *dashsync.Orchestrator
}

// Execute はargsを解釈してコマンドを実行する。
// 実行後はタイトル取得の完了を待ってからストアとログを閉じる。
func Execute(ctx context.Context, args []string, opts Options) error {
	a := newApp(opts)
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func newApp(opts Options) *app {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	return &app{opts: opts, v: clientconfig.New()}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "devdash",
		Short: "Personal development dashboard",
		Long: `devdash tracks learning resources (videos, courses, books, sites) grouped
into categories, with completion progress.

State is kept in a local SQLite file and optionally mirrored to a GitHub
repository file or to a devdash-api backend (see remote.mode).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipSetup(cmd) {
				return nil
			}
			return a.setup(cmd)
		},
	}
	root.SetIn(a.opts.In)
	root.SetOut(a.opts.Out)
	root.SetErr(a.opts.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $HOME/.config/devdash/config.yaml)")
	flags.String("data-dir", "", "directory of the local SQLite store")
	flags.String("remote", "", "remote sync mode: none, github or api")
	flags.String("log-file", "", "write logs to a rotating file instead of stderr")
	_ = a.v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = a.v.BindPFlag("remote.mode", flags.Lookup("remote"))
	_ = a.v.BindPFlag("log_file", flags.Lookup("log-file"))

	root.AddCommand(
		a.listCommand(),
		a.progressCommand(),
		a.categoryCommand(),
		a.itemCommand(),
		a.syncCommand(),
		a.watchCommand(),
		a.exportCommand(),
		a.importCommand(),
		a.themeCommand(),
		a.remoteCommand(),
		a.loginCommand(),
		a.logoutCommand(),
		a.registerCommand(),
	)
	return root
}

// skipSetup はストアを開かずに動くヘルプ・補完コマンドを判定する。
func skipSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}

// setup は設定を読み込み、ログ・ローカルストア・リモート・Orchestratorを組み立てる。
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := clientconfig.LoadFrom(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	var logOut io.Writer = a.opts.Err
	if cfg.LogFile != "" {
		w, err := logger.NewFileWriter(logger.FileOptions{Path: cfg.LogFile})
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.logCloser = w
		logOut = w
	}
	a.logger = logger.SetupWithLevel(logOut, logger.ParseLevel(cfg.LogLevel)).
		With("command", cmd.CommandPath())

	store, err := local.Open(cfg.DataDir, a.logger)
	if err != nil {
		return err
	}
	a.local = store

	remote, err := a.buildRemote(cmd.Context())
	if err != nil {
		return err
	}

	var titles dashsync.TitleResolver
	if a.opts.Titles != nil {
		titles = a.opts.Titles
	} else {
		titles = title.NewDefaultResolver(cfg.Title.Timeout, a.logger)
	}

	a.orch = dashsync.New(dashboard.NewStore(nil), a.local, remote, titles, a.logger, dashsync.Options{
		TitleDelay:   cfg.Title.Delay,
		TitleTimeout: cfg.Title.Timeout,
	})
	return nil
}

// buildRemote はremote.modeに応じてリモート同期先を1つだけ選ぶ。
func (a *app) buildRemote(ctx context.Context) (dashsync.Persister, error) {
	switch a.cfg.Remote.Mode {
	case clientconfig.RemoteGitHub:
		gh := a.cfg.GitHub
		a.github = github.NewClient(a.opts.HTTPClient, a.logger, github.Config{
			Owner:  gh.Owner,
			Repo:   gh.Repo,
			Branch: gh.Branch,
			Path:   gh.Path,
			Token:  gh.Token,
			APIURL: gh.APIURL,
		})
		return a.github, nil
	case clientconfig.RemoteAPI:
		token, _, err := a.local.Get(ctx, local.TokenKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read api token: %w", err)
		}
		a.api = apiclient.NewClient(a.opts.HTTPClient, a.logger, a.cfg.API.BaseURL, token)
		return a.api, nil
	default:
		return nil, nil
	}
}

func (a *app) close() error {
	if a.orch != nil {
		a.orch.Wait()
	}
	var errs []error
	if a.local != nil {
		errs = append(errs, a.local.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}

// load はリモート・ローカル・既定値の順で状態を読み込む。
func (a *app) load(ctx context.Context) error {
	source, err := a.orch.Load(ctx)
	if err != nil {
		return err
	}
	a.logger.Debug("state ready", "source", source.String())
	return nil
}

// save はローカルとリモートへ保存する。リモートの失敗は警告表示にとどめる。
func (a *app) save(ctx context.Context) error {
	res := a.orch.Save(ctx)
	if res.LocalErr != nil {
		return res.LocalErr
	}
	if res.RemoteErr != nil {
		fmt.Fprintf(a.opts.Err, "warning: remote sync failed, kept local copy: %v\n", res.RemoteErr)
	}
	return nil
}

// mutate は状態を読み込み、fnで変更して保存する。
func (a *app) mutate(ctx context.Context, fn func(s *dashboard.Store) error) error {
	if err := a.load(ctx); err != nil {
		return err
	}
	if err := a.orch.Update(fn); err != nil {
		return err
	}
	return a.save(ctx)
}

// Package sync はダッシュボード状態のロード・保存・自動保存と、
// タイトルのバックグラウンド取得を調停する。
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hitoshi/devdash/internal/dashboard"
	"github.com/hitoshi/devdash/internal/model"
	"github.com/hitoshi/devdash/internal/title"
)

const (
	// DefaultAutosaveInterval は自動保存の既定間隔。
	DefaultAutosaveInterval = 30 * time.Second
	// DefaultTitleDelay はアイテム追加からタイトル取得開始までの待ち時間。
	DefaultTitleDelay = 2 * time.Second
)

// Persister はダッシュボード状態の永続化先。
// Loadは状態が存在しない場合にnil, nilを返す。
type Persister interface {
	Load(ctx context.Context) (*model.DashboardState, error)
	Save(ctx context.Context, state *model.DashboardState) error
}

// TitleResolver はURLからページタイトルを解決する。
type TitleResolver interface {
	Resolve(ctx context.Context, rawURL string, timeout time.Duration) title.Result
}

// Source はLoadで採用された状態の取得元。
type Source int

const (
	SourceRemote Source = iota + 1
	SourceLocal
	SourceDefault
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceLocal:
		return "local"
	case SourceDefault:
		return "default"
	default:
		return "unknown"
	}
}

// SaveResult は1回の保存結果。
// RemoteErrが設定されていてもローカル保存は取り消されない。
type SaveResult struct {
	SavedAt   time.Time
	LocalErr  error
	RemoteErr error
	// RemoteSkipped はリモートが未設定で書き込みを行わなかったことを示す。
	RemoteSkipped bool
}

// OK はローカル・リモートとも失敗がなかった場合にtrueを返す。
func (r SaveResult) OK() bool {
	return r.LocalErr == nil && r.RemoteErr == nil
}

// Options はOrchestratorの調整値。ゼロ値の項目は既定値を使う。
type Options struct {
	TitleDelay   time.Duration
	TitleTimeout time.Duration
}

// Orchestrator はStoreへのアクセスを直列化し、永続化先との同期を行う。
// 自動保存ジョブとタイトル取得は別ゴルーチンで動くため、
// Storeの読み書きはすべてUpdate/View経由で行う。
type Orchestrator struct {
	mu     sync.Mutex
	store  *dashboard.Store
	local  Persister
	remote Persister
	titles TitleResolver
	logger *slog.Logger

	titleDelay   time.Duration
	titleTimeout time.Duration

	pending sync.WaitGroup
}

// New はOrchestratorを生成する。remoteとtitlesはnilでもよい。
func New(store *dashboard.Store, local, remote Persister, titles TitleResolver, logger *slog.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = dashboard.NewStore(nil)
	}
	if opts.TitleDelay <= 0 {
		opts.TitleDelay = DefaultTitleDelay
	}
	if opts.TitleTimeout <= 0 {
		opts.TitleTimeout = title.DefaultTimeout
	}
	return &Orchestrator{
		store:        store,
		local:        local,
		remote:       remote,
		titles:       titles,
		logger:       logger,
		titleDelay:   opts.TitleDelay,
		titleTimeout: opts.TitleTimeout,
	}
}

// Load はリモート、ローカル、既定値の順に状態を取得し、最初に見つかったものを採用する。
// リモートはカテゴリが1件以上ある場合のみ採用する。
// リモートの失敗は警告ログのみでローカルへフォールバックする。
// カテゴリが空の場合は既定カテゴリを投入して保存する。
func (o *Orchestrator) Load(ctx context.Context) (Source, error) {
	state, source, err := o.fetch(ctx)
	if err != nil {
		return 0, err
	}

	o.mu.Lock()
	o.store.Replace(state)
	seeded := o.store.EnsureDefaults()
	o.mu.Unlock()

	o.logger.Info("dashboard loaded", "source", source.String(), "seeded", seeded)

	if seeded {
		if res := o.Save(ctx); res.LocalErr != nil {
			return source, fmt.Errorf("save seeded dashboard: %w", res.LocalErr)
		}
	}
	return source, nil
}

func (o *Orchestrator) fetch(ctx context.Context) (*model.DashboardState, Source, error) {
	if o.remote != nil {
		state, err := o.remote.Load(ctx)
		switch {
		case err != nil:
			o.logger.Warn("remote load failed, falling back to local", "error", err)
		case state != nil && len(state.Categories) > 0:
			return state, SourceRemote, nil
		case state != nil:
			o.logger.Info("remote dashboard is empty, falling back to local")
		}
	}

	if o.local != nil {
		state, err := o.local.Load(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("load local dashboard: %w", err)
		}
		if state != nil {
			return state, SourceLocal, nil
		}
	}

	return model.NewDashboardState(), SourceDefault, nil
}

// Save は最終更新日時を記録し、ローカル、リモートの順に書き込む。
// リモートの失敗はリトライせず、SaveResult.RemoteErrで報告する。
func (o *Orchestrator) Save(ctx context.Context) SaveResult {
	o.mu.Lock()
	savedAt := o.store.Touch()
	snapshot := o.store.Snapshot()
	o.mu.Unlock()

	res := SaveResult{SavedAt: savedAt}

	if o.local != nil {
		if err := o.local.Save(ctx, snapshot); err != nil {
			res.LocalErr = fmt.Errorf("save local dashboard: %w", err)
			o.logger.Error("local save failed", "error", err)
		}
	}

	if o.remote == nil {
		res.RemoteSkipped = true
		return res
	}
	if err := o.remote.Save(ctx, snapshot); err != nil {
		res.RemoteErr = fmt.Errorf("save remote dashboard: %w", err)
		o.logger.Warn("remote save failed, local copy kept", "error", err)
	}
	return res
}

// Update はロックを取得した状態でStoreを変更する。
func (o *Orchestrator) Update(fn func(s *dashboard.Store) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fn(o.store)
}

// View はロックを取得した状態でStoreを参照する。
func (o *Orchestrator) View(fn func(s *dashboard.Store)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.store)
}

// Snapshot は現在の状態のディープコピーを返す。
func (o *Orchestrator) Snapshot() *model.DashboardState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.Snapshot()
}

// StartAutosave はinterval毎にSaveを実行するジョブを開始する。
// 返り値の関数で停止でき、ctxのキャンセルでも停止する。
// cronの最小単位は1秒のため、1秒未満の間隔は1秒に切り上げる。
func (o *Orchestrator) StartAutosave(ctx context.Context, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	if interval < time.Second {
		interval = time.Second
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(cron.Every(interval), cron.FuncJob(func() {
		res := o.Save(ctx)
		o.logger.Debug("autosave",
			"saved_at", res.SavedAt,
			"local_ok", res.LocalErr == nil,
			"remote_ok", res.RemoteErr == nil,
		)
	}))
	c.Start()

	var once sync.Once
	done := make(chan struct{})
	stop = func() {
		once.Do(func() {
			close(done)
			<-c.Stop().Done()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	return stop
}

// ScheduleTitleFetch はTitleDelay経過後にrawURLのタイトル取得を開始する。
// 取得に成功し、かつアイテムがまだ存在する場合のみタイトルを更新して保存する。
// 対象はyoutube/websiteタイプのアイテムのみで、スケジュールした場合にtrueを返す。
func (o *Orchestrator) ScheduleTitleFetch(ctx context.Context, itemID, rawURL string) bool {
	if o.titles == nil {
		return false
	}

	o.mu.Lock()
	_, it := o.store.FindItem(itemID)
	o.mu.Unlock()
	if it == nil || !dashboard.WantsTitleFetch(it.Type) {
		return false
	}

	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		o.fetchTitle(ctx, itemID, rawURL)
	}()
	return true
}

func (o *Orchestrator) fetchTitle(ctx context.Context, itemID, rawURL string) {
	timer := time.NewTimer(o.titleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	res := o.titles.Resolve(ctx, rawURL, o.titleTimeout)
	if res.Kind != title.Success {
		o.logger.Debug("title not applied", "item_id", itemID, "kind", res.Kind.String())
		return
	}

	o.mu.Lock()
	applied := o.store.ApplyTitle(itemID, res.Title)
	o.mu.Unlock()
	if !applied {
		o.logger.Debug("item removed before title arrived", "item_id", itemID)
		return
	}

	o.logger.Info("title applied", "item_id", itemID)
	o.Save(ctx)
}

// Wait はスケジュール済みのタイトル取得がすべて終わるまで待つ。
func (o *Orchestrator) Wait() {
	o.pending.Wait()
}

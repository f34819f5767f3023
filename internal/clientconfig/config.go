// Package clientconfig はdevdash CLIの設定を設定ファイルと環境変数から読み込む。
//
// 優先順位は 環境変数(DEVDASH_*) > 設定ファイル > 既定値。
// 設定ファイルは既定で $HOME/.config/devdash/config.yaml を参照する。
package clientconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix は環境変数の接頭辞。remote.mode は DEVDASH_REMOTE_MODE になる。
	EnvPrefix = "DEVDASH"

	configName = "config"
	configType = "yaml"
)

// RemoteMode はリモート同期の方式。
type RemoteMode string

const (
	RemoteNone   RemoteMode = "none"
	RemoteGitHub RemoteMode = "github"
	RemoteAPI    RemoteMode = "api"
)

// Valid は定義済みの方式かどうかを返す。
func (m RemoteMode) Valid() bool {
	switch m {
	case RemoteNone, RemoteGitHub, RemoteAPI:
		return true
	}
	return false
}

// Config はCLIの設定。
type Config struct {
	DataDir          string        `mapstructure:"data_dir"`
	LogFile          string        `mapstructure:"log_file"`
	LogLevel         string        `mapstructure:"log_level"`
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`

	Remote RemoteConfig `mapstructure:"remote"`
	GitHub GitHubConfig `mapstructure:"github"`
	API    APIConfig    `mapstructure:"api"`
	Title  TitleConfig  `mapstructure:"title"`

	// ConfigFile は実際に読み込んだ設定ファイルのパス。見つからなかった場合は空。
	ConfigFile string `mapstructure:"-"`
}

type RemoteConfig struct {
	Mode RemoteMode `mapstructure:"mode"`
}

// GitHubConfig はcontents APIによるファイル同期の設定。
type GitHubConfig struct {
	Owner  string `mapstructure:"owner"`
	Repo   string `mapstructure:"repo"`
	Branch string `mapstructure:"branch"`
	Path   string `mapstructure:"path"`
	Token  string `mapstructure:"token"`
	APIURL string `mapstructure:"api_url"`
}

// APIConfig は認証付きバックエンドの設定。
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Email   string `mapstructure:"email"`
}

type TitleConfig struct {
	Delay   time.Duration `mapstructure:"delay"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultDir は設定ファイルの既定ディレクトリ（$HOME/.config/devdash）を返す。
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", ".devdash")
	}
	return filepath.Join(home, ".config", "devdash")
}

// New は既定値と環境変数の設定を済ませたviperインスタンスを返す。
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultDir())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("data_dir", filepath.Join(dir, "data"))
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("autosave_interval", 30*time.Second)

	v.SetDefault("remote.mode", string(RemoteNone))

	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.branch", "main")
	v.SetDefault("github.path", "dashboard-data.json")
	v.SetDefault("github.token", "")
	v.SetDefault("github.api_url", "https://api.github.com")

	v.SetDefault("api.base_url", "http://localhost:3000")
	v.SetDefault("api.email", "")

	v.SetDefault("title.delay", 2*time.Second)
	v.SetDefault("title.timeout", 3*time.Second)
}

// Load は設定を読み込む。
// pathが空の場合は既定ディレクトリのconfig.yamlを探し、存在しなければ既定値のみで続行する。
// pathを明示した場合にファイルが存在しなければエラーを返す。
func Load(path string) (*Config, error) {
	return LoadFrom(New(), path)
}

// LoadFrom は与えられたviperインスタンスから設定を読み込む。
// cobraのフラグをBindPFlagした後に呼び出すことを想定している。
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(DefaultDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.Remote.Mode = RemoteMode(strings.ToLower(strings.TrimSpace(string(cfg.Remote.Mode))))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は設定値の範囲と、選択されたリモート方式に必要な項目を検証する。
func (c *Config) Validate() error {
	var invalid []string
	if c.DataDir == "" {
		invalid = append(invalid, "data_dir")
	}
	if c.AutosaveInterval <= 0 {
		invalid = append(invalid, "autosave_interval")
	}
	if c.Title.Delay < 0 {
		invalid = append(invalid, "title.delay")
	}
	if c.Title.Timeout <= 0 {
		invalid = append(invalid, "title.timeout")
	}
	if !c.Remote.Mode.Valid() {
		invalid = append(invalid, "remote.mode")
	}

	switch c.Remote.Mode {
	case RemoteGitHub:
		if c.GitHub.Owner == "" {
			invalid = append(invalid, "github.owner")
		}
		if c.GitHub.Repo == "" {
			invalid = append(invalid, "github.repo")
		}
	case RemoteAPI:
		if c.API.BaseURL == "" {
			invalid = append(invalid, "api.base_url")
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("config has invalid values: %v", invalid)
	}
	return nil
}

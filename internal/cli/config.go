package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/labledger/internal/paths"
	"github.com/mesh-intelligence/labledger/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend    = "backend"
	cfgKeyDataDir    = "data_dir"
	cfgKeyManagers   = "managers"
	cfgKeyAccount    = "account"
	cfgKeyLogLevel   = "log_level"
	cfgKeyLogFormat  = "log_format"
	cfgKeyEventsFile = "events_file"
	cfgKeyPostgres   = "postgres_dsn"
	cfgKeyListenAddr = "listen_addr"

	envPostgresDSN = "LABLEDGER_POSTGRES_DSN"

	defaultBackend    = types.BackendSQLite
	defaultLogLevel   = "warn"
	defaultLogFormat  = "text"
	defaultEventsFile = "events.jsonl"
	defaultListenAddr = "127.0.0.1:8080"
)

// fileConfig is the structure written to a fresh config.yaml.
type fileConfig struct {
	Backend    string   `yaml:"backend"`
	DataDir    string   `yaml:"data_dir,omitempty"`
	Managers   []string `yaml:"managers"`
	Account    string   `yaml:"account,omitempty"`
	LogLevel   string   `yaml:"log_level"`
	LogFormat  string   `yaml:"log_format"`
	EventsFile string   `yaml:"events_file"`
	Postgres   string   `yaml:"postgres_dsn,omitempty"`
	ListenAddr string   `yaml:"listen_addr"`
}

// loadConfig resolves the config directory, creates it and a default
// config.yaml on first run, and reads it with Viper.
func (a *app) loadConfig() error {
	dir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return system(fmt.Errorf("resolve config dir: %w", err))
	}
	a.configDir = dir

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return system(fmt.Errorf("create config dir: %w", err))
	}
	if err := writeConfigIfMissing(filepath.Join(dir, configFileExt)); err != nil {
		return system(fmt.Errorf("write default config: %w", err))
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyLogFormat, defaultLogFormat)
	v.SetDefault(cfgKeyEventsFile, defaultEventsFile)
	v.SetDefault(cfgKeyListenAddr, defaultListenAddr)
	if err := v.BindEnv(cfgKeyPostgres, envPostgresDSN); err != nil {
		return system(fmt.Errorf("bind %s: %w", envPostgresDSN, err))
	}
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	a.cfg = v
	return nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. An existing file is left alone.
func writeConfigIfMissing(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&fileConfig{
		Backend:    defaultBackend,
		Managers:   []string{},
		LogLevel:   defaultLogLevel,
		LogFormat:  defaultLogFormat,
		EventsFile: defaultEventsFile,
		ListenAddr: defaultListenAddr,
	})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# labledger configuration\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}

// resolveDataDir applies: --data-dir flag > config.yaml data_dir >
// LABLEDGER_DATA_DIR env > $(CWD)/.labledger-db.
func (a *app) resolveDataDir() (string, error) {
	dir, err := paths.ResolveDataDir(a.dataDir, a.cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return "", system(fmt.Errorf("resolve data dir: %w", err))
	}
	return dir, nil
}

// ledgerConfig returns the backend selection for this invocation.
func (a *app) ledgerConfig() (types.Config, error) {
	dataDir, err := a.resolveDataDir()
	if err != nil {
		return types.Config{}, err
	}
	cfg := types.Config{
		Backend: a.cfg.GetString(cfgKeyBackend),
		DataDir: dataDir,
		DSN:     a.cfg.GetString(cfgKeyPostgres),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("%s: %w", configFileExt, err)
	}
	return cfg, nil
}

// caller returns the account commands act as.
func (a *app) caller() (types.Account, error) {
	acct := types.Account(a.as)
	if acct == "" {
		acct = types.Account(a.cfg.GetString(cfgKeyAccount))
	}
	if !acct.Valid() {
		return "", fmt.Errorf("no calling account: pass --as or set %q in %s", cfgKeyAccount, configFileExt)
	}
	return acct, nil
}

// managers returns the resource-manager set from config.yaml.
func (a *app) managers() types.StaticManagers {
	names := a.cfg.GetStringSlice(cfgKeyManagers)
	accounts := make([]types.Account, len(names))
	for i, n := range names {
		accounts[i] = types.Account(n)
	}
	return types.NewStaticManagers(accounts...)
}

// Package config загружает конфигурацию Rollout из rollout.yaml.
//
// Файл описывает соединения (хосты), stages внутри соединений,
// стратегии деплоя, пути приложения и backend для хранения состояния.
// Секреты и адреса инфраструктуры можно переопределить переменными окружения:
// DB_URL, REDIS_URL, RABBITMQ_URL.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath — имя файла конфигурации в корне проекта.
	DefaultPath = "rollout.yaml"

	// EnvPath — переменная окружения с путём к конфигурации.
	EnvPath = "ROLLOUT_CONFIG"

	defaultKeepReleases  = 4
	defaultParallelLimit = 8
	defaultStatePath     = ".rollout/state.json"
	defaultBranch        = "master"
	defaultSSHPort       = 22
)

// Backend-ы хранилища состояния.
const (
	StateFile     = "file"
	StateMemory   = "memory"
	StatePostgres = "postgres"
	StateRedis    = "redis"
)

// Ошибки конфигурации.
var (
	// ErrNotFound — файл конфигурации не найден.
	ErrNotFound = errors.New("config file not found")

	// ErrNoConnections — не объявлено ни одного соединения.
	ErrNoConnections = errors.New("no connections configured")

	// ErrUnknownConnection — соединение отсутствует в connections.
	ErrUnknownConnection = errors.New("unknown connection")

	// ErrUnknownBackend — неизвестный backend хранилища.
	ErrUnknownBackend = errors.New("unknown state backend")
)

// Connection — описание удалённого хоста.
type Connection struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port,omitempty"`
	Username   string   `yaml:"username,omitempty"`
	Password   string   `yaml:"password,omitempty"`
	Key        string   `yaml:"key,omitempty"`
	KnownHosts string   `yaml:"known_hosts,omitempty"`
	Root       string   `yaml:"root_directory,omitempty"`
	Stages     []string `yaml:"stages,omitempty"`

	// Local — команды выполняются локальным shell без SSH.
	Local bool `yaml:"local,omitempty"`
}

// Repository — источник кода для стратегий clone и copy.
type Repository struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch,omitempty"`
}

// Archive — источник кода для стратегии archive.
type Archive struct {
	URL string `yaml:"url"`
}

// Strategies — какая реализация используется для каждой роли.
type Strategies struct {
	Deploy       string `yaml:"deploy,omitempty"`
	Dependencies string `yaml:"dependencies,omitempty"`
	Test         string `yaml:"test,omitempty"`
	Migrate      string `yaml:"migrate,omitempty"`

	// Commands — команды для реализаций "command" по ролям.
	Commands map[string][]string `yaml:"commands,omitempty"`
}

// Permissions — права на каталоги приложения внутри релиза.
type Permissions struct {
	Files []string `yaml:"files,omitempty"`
	Mode  string   `yaml:"mode,omitempty"`
	User  string   `yaml:"user,omitempty"`
}

// State — где хранится реестр релизов.
type State struct {
	Backend  string `yaml:"backend,omitempty"`
	Path     string `yaml:"path,omitempty"`
	DSN      string `yaml:"dsn,omitempty"`
	RedisURL string `yaml:"redis_url,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// Broker — RabbitMQ для агента.
type Broker struct {
	URL string `yaml:"url,omitempty"`
}

// Notifications — webhook, получающий итог каждого запроса агента.
type Notifications struct {
	Webhook    string            `yaml:"webhook,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	TimeoutSec int               `yaml:"timeout_sec,omitempty"`
}

// Schedule — периодический запуск очереди.
type Schedule struct {
	Name        string         `yaml:"name"`
	Cron        string         `yaml:"cron"`
	Timezone    string         `yaml:"timezone,omitempty"`
	Connections []string       `yaml:"connections,omitempty"`
	Queue       []string       `yaml:"queue"`
	Options     map[string]any `yaml:"options,omitempty"`
}

// Config модель rollout.yaml.
type Config struct {
	ApplicationName string                `yaml:"application_name"`
	RootDirectory   string                `yaml:"root_directory"`
	KeepReleases    int                   `yaml:"keep_releases,omitempty"`
	Default         []string              `yaml:"default,omitempty"`
	Connections     map[string]Connection `yaml:"connections"`
	Stages          []string              `yaml:"stages,omitempty"`
	Repository      Repository            `yaml:"repository,omitempty"`
	Archive         Archive               `yaml:"archive,omitempty"`
	Strategies      Strategies            `yaml:"strategies,omitempty"`
	Options         map[string]any        `yaml:"options,omitempty"`
	ParallelLimit   int                   `yaml:"parallel_limit,omitempty"`
	Paths           map[string]string     `yaml:"paths,omitempty"`
	Permissions     Permissions           `yaml:"permissions,omitempty"`
	Shared          []string              `yaml:"shared,omitempty"`
	State           State                 `yaml:"state,omitempty"`
	Broker          Broker                `yaml:"broker,omitempty"`
	Notifications   Notifications         `yaml:"notifications,omitempty"`
	Schedules       []Schedule            `yaml:"schedules,omitempty"`
}

// ResolvePath возвращает путь к конфигурации: явный, из ROLLOUT_CONFIG или DefaultPath.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(EnvPath); v != "" {
		return v
	}
	return DefaultPath
}

// Load читает и валидирует файл конфигурации.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML, применяет значения по умолчанию и переменные окружения.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ApplicationName == "" {
		c.ApplicationName = "application"
	}
	if c.RootDirectory == "" {
		c.RootDirectory = "/home/www"
	}
	if c.KeepReleases <= 0 {
		c.KeepReleases = defaultKeepReleases
	}
	if c.ParallelLimit <= 0 {
		c.ParallelLimit = defaultParallelLimit
	}
	if c.Repository.Branch == "" {
		c.Repository.Branch = defaultBranch
	}
	if c.Strategies.Deploy == "" {
		c.Strategies.Deploy = "clone"
	}
	if c.Strategies.Dependencies == "" {
		c.Strategies.Dependencies = "composer"
	}
	if c.Strategies.Test == "" {
		c.Strategies.Test = "phpunit"
	}
	if c.Strategies.Migrate == "" {
		c.Strategies.Migrate = "artisan"
	}
	if c.Paths == nil {
		c.Paths = map[string]string{
			"app":     "app",
			"storage": "app/storage",
			"public":  "public",
		}
	}
	if c.Permissions.Mode == "" {
		c.Permissions.Mode = "755"
	}
	if c.State.Backend == "" {
		c.State.Backend = StateFile
	}
	if c.State.Path == "" {
		c.State.Path = defaultStatePath
	}
	if c.State.Prefix == "" {
		c.State.Prefix = "rollout:"
	}
	if c.Options == nil {
		c.Options = make(map[string]any)
	}
	for name, conn := range c.Connections {
		if conn.Port == 0 {
			conn.Port = defaultSSHPort
		}
		c.Connections[name] = conn
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DB_URL"); v != "" {
		c.State.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.State.RedisURL = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		c.Broker.URL = v
	}
}

// Validate проверяет согласованность конфигурации.
func (c *Config) Validate() error {
	if len(c.Connections) == 0 {
		return ErrNoConnections
	}
	for _, name := range c.Default {
		if _, ok := c.Connections[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownConnection, name)
		}
	}
	switch c.State.Backend {
	case StateFile, StateMemory, StatePostgres, StateRedis:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownBackend, c.State.Backend)
	}
	return nil
}

// DefaultConnections возвращает соединения по умолчанию.
// Если default не задан — все соединения в алфавитном порядке.
func (c *Config) DefaultConnections() []string {
	if len(c.Default) > 0 {
		return append([]string(nil), c.Default...)
	}
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connection возвращает описание соединения по имени.
func (c *Config) Connection(name string) (Connection, error) {
	conn, ok := c.Connections[name]
	if !ok {
		return Connection{}, fmt.Errorf("%w: %s", ErrUnknownConnection, name)
	}
	return conn, nil
}

// StagesFor возвращает stages соединения: собственные или общие.
// Пустой список означает, что соединение не делится на stages.
func (c *Config) StagesFor(connection string) []string {
	if conn, ok := c.Connections[connection]; ok && len(conn.Stages) > 0 {
		return append([]string(nil), conn.Stages...)
	}
	return append([]string(nil), c.Stages...)
}

// RootFor возвращает корневой каталог приложения на хосте:
// {root_directory}/{application_name}[/{stage}].
func (c *Config) RootFor(connection, stage string) string {
	root := c.RootDirectory
	if conn, ok := c.Connections[connection]; ok && conn.Root != "" {
		root = conn.Root
	}
	folder := path.Join(root, c.ApplicationName)
	if stage != "" {
		folder = path.Join(folder, stage)
	}
	return folder
}

// Option возвращает значение опции из секции options.
func (c *Config) Option(name string) (any, bool) {
	v, ok := c.Options[name]
	return v, ok
}

package releases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shaiso/Rollout/internal/remote"
	"github.com/shaiso/Rollout/internal/state"
	"github.com/shaiso/Rollout/internal/telemetry"
)

// Ключи в state.Store.
const (
	KeyCurrentRelease = "current_release"
	KeyLedger         = "releases"
)

// TimestampLayout — формат timestamp релиза.
const TimestampLayout = "20060102150405"

// Config — параметры Manager.
type Config struct {
	// Handle — пространство имён в Store. По умолчанию Connection.
	Handle string

	Connection string

	// Root — корневой каталог приложения на хосте.
	Root string

	Store     state.Store
	Connector remote.Connector

	// Placeholders — значения для {path.<name>} в суффиксах путей.
	Placeholders map[string]string

	Now    func() time.Time
	Logger *slog.Logger
}

// Manager управляет релизами одного handle.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	listed  bool
	listing []int64
}

// New создаёт Manager.
func New(cfg Config) *Manager {
	if cfg.Handle == "" {
		cfg.Handle = cfg.Connection
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		cfg:    cfg,
		logger: telemetry.WithConnection(cfg.Logger, cfg.Connection),
	}
}

// Handle возвращает пространство имён в Store.
func (m *Manager) Handle() string {
	return m.cfg.Handle
}

// ValidationFile загружает реестр. Отсутствующий реестр — пустой.
func (m *Manager) ValidationFile(ctx context.Context) (*Ledger, error) {
	raw, ok, err := m.cfg.Store.Get(ctx, m.cfg.Handle, KeyLedger)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	ledger := NewLedger()
	if !ok || strings.TrimSpace(raw) == "" {
		return ledger, nil
	}
	if err := json.Unmarshal([]byte(raw), ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

func (m *Manager) saveLedger(ctx context.Context, ledger *Ledger) error {
	raw, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := m.cfg.Store.Set(ctx, m.cfg.Handle, KeyLedger, string(raw)); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// MarkReleaseAsValid помечает релиз валидным, добавляя его при отсутствии.
func (m *Manager) MarkReleaseAsValid(ctx context.Context, release int64) error {
	ledger, err := m.ValidationFile(ctx)
	if err != nil {
		return err
	}
	ledger.Set(release, true)
	if err := m.saveLedger(ctx, ledger); err != nil {
		return err
	}

	m.logger.Debug("release marked as valid", "release", release)
	return nil
}

// InvalidReleases возвращает невалидные записи с их позициями в реестре.
func (m *Manager) InvalidReleases(ctx context.Context) ([]Entry, error) {
	ledger, err := m.ValidationFile(ctx)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, e := range ledger.Entries() {
		if !e.Valid {
			out = append(out, e)
		}
	}
	return out, nil
}

// Releases возвращает все известные релизы: записи реестра в его порядке,
// затем релизы с хоста, которых нет в реестре. Порядок не гарантируется,
// для упорядоченного списка используйте SortedReleases.
func (m *Manager) Releases(ctx context.Context) ([]int64, error) {
	ledger, err := m.ValidationFile(ctx)
	if err != nil {
		return nil, err
	}

	out := ledger.Releases()
	for _, r := range m.remoteReleases(ctx) {
		if !ledger.Has(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// SortedReleases возвращает все известные релизы по убыванию.
func (m *Manager) SortedReleases(ctx context.Context) ([]int64, error) {
	out, err := m.Releases(ctx)
	if err != nil {
		return nil, err
	}
	SortDesc(out)
	return out, nil
}

// DeprecatedReleases возвращает все релизы кроме текущего, по убыванию.
func (m *Manager) DeprecatedReleases(ctx context.Context) ([]int64, error) {
	current, err := m.CurrentRelease(ctx)
	if err != nil {
		return nil, err
	}
	all, err := m.SortedReleases(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]int64, 0, len(all))
	for _, r := range all {
		if r != current {
			out = append(out, r)
		}
	}
	return out, nil
}

// CurrentRelease возвращает текущий релиз.
// Без сохранённого указателя берётся максимальный известный релиз,
// и указатель сохраняется.
func (m *Manager) CurrentRelease(ctx context.Context) (int64, error) {
	raw, ok, err := m.cfg.Store.Get(ctx, m.cfg.Handle, KeyCurrentRelease)
	if err != nil {
		return 0, fmt.Errorf("load current release: %w", err)
	}
	if ok {
		if release, valid := ParseRelease(strings.TrimSpace(raw)); valid {
			return release, nil
		}
	}

	all, err := m.Releases(ctx)
	if err != nil {
		return 0, err
	}
	if len(all) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoReleases, m.cfg.Handle)
	}

	current := all[0]
	for _, r := range all[1:] {
		if r > current {
			current = r
		}
	}

	if err := m.setPointer(ctx, current); err != nil {
		return 0, err
	}
	return current, nil
}

// PreviousRelease возвращает ближайший более старый валидный релиз.
// Если такого нет, возвращается текущий.
func (m *Manager) PreviousRelease(ctx context.Context) (int64, error) {
	current, err := m.CurrentRelease(ctx)
	if err != nil {
		return 0, err
	}
	ledger, err := m.ValidationFile(ctx)
	if err != nil {
		return 0, err
	}
	all, err := m.SortedReleases(ctx)
	if err != nil {
		return 0, err
	}

	for _, r := range all {
		if r >= current {
			continue
		}
		if valid, _ := ledger.Get(r); valid {
			return r, nil
		}
	}
	return current, nil
}

// UpdateCurrentRelease меняет указатель текущего релиза.
//
// С release == 0 генерируется новый timestamp от часов Manager,
// добавляется в реестр как невалидный и становится текущим.
// Иначе указатель ставится на release без изменения реестра.
func (m *Manager) UpdateCurrentRelease(ctx context.Context, release int64) (int64, error) {
	if release == 0 {
		ledger, err := m.ValidationFile(ctx)
		if err != nil {
			return 0, err
		}

		now := m.cfg.Now()
		release = Timestamp(now)
		for ledger.Has(release) {
			now = now.Add(time.Second)
			release = Timestamp(now)
		}

		ledger.Set(release, false)
		if err := m.saveLedger(ctx, ledger); err != nil {
			return 0, err
		}
		telemetry.ReleasesCreatedTotal.WithLabelValues(m.cfg.Connection).Inc()
		m.logger.Info("release allocated", "release", release)
	}

	if err := m.setPointer(ctx, release); err != nil {
		return 0, err
	}
	return release, nil
}

func (m *Manager) setPointer(ctx context.Context, release int64) error {
	if err := m.cfg.Store.Set(ctx, m.cfg.Handle, KeyCurrentRelease, strconv.FormatInt(release, 10)); err != nil {
		return fmt.Errorf("save current release: %w", err)
	}
	return nil
}

// NonCurrentReleases возвращает релизы с хоста кроме текущего.
// Листинг выполняется один раз за жизнь Manager.
func (m *Manager) NonCurrentReleases(ctx context.Context) ([]int64, error) {
	listing := m.remoteReleases(ctx)

	current, err := m.CurrentRelease(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]int64, 0, len(listing))
	for _, r := range listing {
		if r != current {
			out = append(out, r)
		}
	}
	return out, nil
}

// remoteReleases читает каталог releases на хосте один раз.
func (m *Manager) remoteReleases(ctx context.Context) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listed {
		return append([]int64(nil), m.listing...)
	}
	m.listed = true

	if m.cfg.Connector == nil {
		return nil
	}

	names, err := m.cfg.Connector.List(ctx, m.cfg.Connection, m.ReleasesPath())
	if err != nil {
		m.logger.Warn("failed to list releases", "path", m.ReleasesPath(), "error", err)
		return nil
	}

	for _, name := range names {
		if r, ok := ParseRelease(name); ok {
			m.listing = append(m.listing, r)
		}
	}
	return append([]int64(nil), m.listing...)
}

// Timestamp форматирует время как timestamp релиза.
func Timestamp(t time.Time) int64 {
	r, _ := strconv.ParseInt(t.Format(TimestampLayout), 10, 64)
	return r
}

// Root возвращает корневой каталог приложения.
func (m *Manager) Root() string {
	return m.cfg.Root
}

// ReleasesPath возвращает {root}/releases.
func (m *Manager) ReleasesPath() string {
	return path.Join(m.cfg.Root, "releases")
}

// ReleasePath возвращает каталог релиза.
func (m *Manager) ReleasePath(release int64) string {
	return path.Join(m.ReleasesPath(), strconv.FormatInt(release, 10))
}

// CurrentReleasePath возвращает каталог текущего релиза с необязательным суффиксом.
// Суффикс может содержать плейсхолдеры {path.<name>}.
func (m *Manager) CurrentReleasePath(ctx context.Context, suffix string) (string, error) {
	current, err := m.CurrentRelease(ctx)
	if err != nil {
		return "", err
	}
	p := m.ReleasePath(current)
	if suffix = m.ResolvePlaceholders(suffix); suffix != "" {
		p = path.Join(p, suffix)
	}
	return p, nil
}

// CurrentPath возвращает путь симлинка {root}/current.
func (m *Manager) CurrentPath() string {
	return path.Join(m.cfg.Root, "current")
}

// SharedPath возвращает путь в каталоге {root}/shared.
func (m *Manager) SharedPath(suffix string) string {
	p := path.Join(m.cfg.Root, "shared")
	if suffix = m.ResolvePlaceholders(suffix); suffix != "" {
		p = path.Join(p, suffix)
	}
	return p
}

// ResolvePlaceholders подставляет {path.<name>} из Placeholders.
// Неизвестные плейсхолдеры остаются как есть.
func (m *Manager) ResolvePlaceholders(s string) string {
	if !strings.Contains(s, "{") {
		return s
	}
	for name, value := range m.cfg.Placeholders {
		s = strings.ReplaceAll(s, "{path."+name+"}", value)
	}
	return s
}

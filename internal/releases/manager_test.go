package releases

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Rollout/internal/remote/remotetest"
	"github.com/shaiso/Rollout/internal/state"
	"github.com/shaiso/Rollout/internal/telemetry"
)

const (
	root      = "/var/www/app"
	releasesP = root + "/releases"
)

type fixture struct {
	store     *state.MemoryStore
	connector *remotetest.Fake
	manager   *Manager
}

func newFixture(t *testing.T, ledger string) *fixture {
	t.Helper()

	store := state.NewMemoryStore()
	if ledger != "" {
		if err := store.Set(context.Background(), "production", KeyLedger, ledger); err != nil {
			t.Fatal(err)
		}
	}
	connector := remotetest.NewFake()

	m := New(Config{
		Connection: "production",
		Root:       root,
		Store:      store,
		Connector:  connector,
		Placeholders: map[string]string{
			"storage": "app/storage",
			"public":  "public",
		},
		Now:    func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
		Logger: telemetry.Discard(),
	})

	return &fixture{store: store, connector: connector, manager: m}
}

const defaultLedger = `{"10000000000000":true,"15000000000000":false,"20000000000000":true}`

func equalReleases(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestManager_ValidationFile(t *testing.T) {
	f := newFixture(t, defaultLedger)

	ledger, err := f.manager.ValidationFile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int64{10000000000000, 15000000000000, 20000000000000}
	if !equalReleases(ledger.Releases(), want) {
		t.Errorf("expected %v, got %v", want, ledger.Releases())
	}
	if v, _ := ledger.Get(15000000000000); v {
		t.Error("15000000000000 should be invalid")
	}
}

func TestManager_ValidationFile_Empty(t *testing.T) {
	f := newFixture(t, "")

	ledger, err := f.manager.ValidationFile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.Len() != 0 {
		t.Errorf("expected empty ledger, got %v", ledger.Releases())
	}
}

func TestManager_InvalidReleases(t *testing.T) {
	f := newFixture(t, defaultLedger)

	invalid, err := f.manager.InvalidReleases(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(invalid) != 1 {
		t.Fatalf("expected one invalid release, got %v", invalid)
	}
	if invalid[0].Release != 15000000000000 || invalid[0].Position != 1 {
		t.Errorf("unexpected entry: %+v", invalid[0])
	}
}

func TestManager_MarkReleaseAsValid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultLedger)

	for i := 0; i < 2; i++ {
		if err := f.manager.MarkReleaseAsValid(ctx, 15000000000000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	raw, _, _ := f.store.Get(ctx, "production", KeyLedger)
	want := `{"10000000000000":true,"15000000000000":true,"20000000000000":true}`
	if raw != want {
		t.Errorf("expected %s, got %s", want, raw)
	}

	// Отсутствующий релиз добавляется в конец
	if err := f.manager.MarkReleaseAsValid(ctx, 123456789); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, _, _ = f.store.Get(ctx, "production", KeyLedger)
	want = `{"10000000000000":true,"15000000000000":true,"20000000000000":true,"123456789":true}`
	if raw != want {
		t.Errorf("expected %s, got %s", want, raw)
	}
}

func TestManager_CurrentRelease_Backfill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultLedger)

	current, err := f.manager.CurrentRelease(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current != 20000000000000 {
		t.Errorf("expected 20000000000000, got %d", current)
	}

	raw, ok, _ := f.store.Get(ctx, "production", KeyCurrentRelease)
	if !ok || raw != "20000000000000" {
		t.Errorf("pointer should be backfilled, got %q", raw)
	}
}

func TestManager_CurrentRelease_NoReleases(t *testing.T) {
	f := newFixture(t, "")
	f.connector.Listings[releasesP] = []string{"IMPOSSIBLE", "nope"}

	_, err := f.manager.CurrentRelease(context.Background())
	if !errors.Is(err, ErrNoReleases) {
		t.Errorf("expected ErrNoReleases, got %v", err)
	}
}

func TestManager_Releases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultLedger)
	f.connector.Listings[releasesP] = []string{"20000000000000", "30000000000000", "garbage", "10000000000000"}

	got, err := f.manager.Releases(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int64{10000000000000, 15000000000000, 20000000000000, 30000000000000}
	if !equalReleases(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// Релизы с хоста не попадают в реестр
	ledger, _ := f.manager.ValidationFile(ctx)
	if ledger.Has(30000000000000) {
		t.Error("listed release must not be persisted")
	}

	sorted, _ := f.manager.SortedReleases(ctx)
	if sorted[0] != 30000000000000 || sorted[3] != 10000000000000 {
		t.Errorf("expected descending order, got %v", sorted)
	}
}

func TestManager_Releases_IgnoresGarbage(t *testing.T) {
	f := newFixture(t, "")
	f.connector.Listings[releasesP] = []string{"IMPOSSIBLE BECAUSE NOPE"}

	got, err := f.manager.Releases(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no releases, got %v", got)
	}
}

func TestManager_DeprecatedReleases(t *testing.T) {
	f := newFixture(t, defaultLedger)

	got, err := f.manager.DeprecatedReleases(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int64{15000000000000, 10000000000000}
	if !equalReleases(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestManager_PreviousRelease(t *testing.T) {
	tests := []struct {
		name   string
		ledger string
		want   int64
	}{
		{
			name:   "nearest older valid",
			ledger: defaultLedger,
			want:   10000000000000,
		},
		{
			name:   "no older valid",
			ledger: `{"10000000000000":false,"15000000000000":false,"20000000000000":true}`,
			want:   20000000000000,
		},
		{
			name:   "only release",
			ledger: `{"20000000000000":true}`,
			want:   20000000000000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.ledger)

			got, err := f.manager.PreviousRelease(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestManager_UpdateCurrentRelease_Generated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, `{"20000000000000":true}`)

	release, err := f.manager.UpdateCurrentRelease(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if release != 20240102030405 {
		t.Errorf("expected 20240102030405, got %d", release)
	}

	ledger, _ := f.manager.ValidationFile(ctx)
	if valid, ok := ledger.Get(release); !ok || valid {
		t.Errorf("new release should be in ledger as invalid, ok=%v valid=%v", ok, valid)
	}

	current, _ := f.manager.CurrentRelease(ctx)
	if current != release {
		t.Errorf("expected current %d, got %d", release, current)
	}

	previous, err := f.manager.PreviousRelease(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if previous != 20000000000000 {
		t.Errorf("expected previous 20000000000000, got %d", previous)
	}
}

func TestManager_UpdateCurrentRelease_Collision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	first, _ := f.manager.UpdateCurrentRelease(ctx, 0)
	second, err := f.manager.UpdateCurrentRelease(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != first+1 {
		t.Errorf("expected %d, got %d", first+1, second)
	}
}

func TestManager_UpdateCurrentRelease_Explicit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultLedger)

	if _, err := f.manager.UpdateCurrentRelease(ctx, 30000000000000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, _, _ := f.store.Get(ctx, "production", KeyCurrentRelease)
	if raw != "30000000000000" {
		t.Errorf("expected pointer 30000000000000, got %s", raw)
	}

	current, _ := f.manager.CurrentRelease(ctx)
	if current != 30000000000000 {
		t.Errorf("expected 30000000000000, got %d", current)
	}

	ledger, _ := f.manager.ValidationFile(ctx)
	if ledger.Len() != 3 {
		t.Errorf("explicit update must not touch the ledger, got %v", ledger.Releases())
	}
}

func TestManager_Paths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultLedger)

	if got := f.manager.ReleasesPath(); got != releasesP {
		t.Errorf("unexpected releases path %s", got)
	}

	got, err := f.manager.CurrentReleasePath(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != releasesP+"/20000000000000" {
		t.Errorf("unexpected current release path %s", got)
	}

	got, _ = f.manager.CurrentReleasePath(ctx, "{path.storage}")
	if got != releasesP+"/20000000000000/app/storage" {
		t.Errorf("unexpected storage path %s", got)
	}

	if got := f.manager.CurrentPath(); got != root+"/current" {
		t.Errorf("unexpected current path %s", got)
	}
	if got := f.manager.SharedPath("{path.storage}/logs"); got != root+"/shared/app/storage/logs" {
		t.Errorf("unexpected shared path %s", got)
	}
	if got := f.manager.ResolvePlaceholders("{path.unknown}"); got != "{path.unknown}" {
		t.Errorf("unknown placeholder should stay, got %s", got)
	}
}

func TestManager_NonCurrentReleases_Memoized(t *testing.T) {
	tests := []struct {
		name    string
		listing []string
		listErr error
		want    []int64
	}{
		{"with releases", []string{"20000000000000", "10000000000000"}, nil, []int64{10000000000000}},
		{"empty listing", nil, nil, []int64{}},
		{"listing error", nil, errors.New("connection refused"), []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, defaultLedger)
			f.connector.Listings[releasesP] = tt.listing
			f.connector.ListErr = tt.listErr

			for i := 0; i < 4; i++ {
				got, err := f.manager.NonCurrentReleases(ctx)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !equalReleases(got, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}

			if f.connector.ListCalls != 1 {
				t.Errorf("expected one listing, got %d", f.connector.ListCalls)
			}
		})
	}
}

func TestManager_HandleIsolation(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()

	eu := New(Config{Handle: "production.eu", Connection: "production", Root: root, Store: store})
	us := New(Config{Handle: "production.us", Connection: "production", Root: root, Store: store})

	if _, err := eu.UpdateCurrentRelease(ctx, 20000000000000); err != nil {
		t.Fatal(err)
	}
	if _, err := us.CurrentRelease(ctx); !errors.Is(err, ErrNoReleases) {
		t.Errorf("stages must not share state, got %v", err)
	}
}

func TestLedger_JSON(t *testing.T) {
	var l Ledger
	if err := json.Unmarshal([]byte(`{"30000000000000":false,"bogus":true,"10000000000000":true}`), &l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalReleases(l.Releases(), []int64{30000000000000, 10000000000000}) {
		t.Errorf("order must be preserved, got %v", l.Releases())
	}

	raw, err := json.Marshal(&l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"30000000000000":false,"10000000000000":true}` {
		t.Errorf("unexpected encoding %s", raw)
	}

	if err := json.Unmarshal([]byte(`null`), &l); err != nil || l.Len() != 0 {
		t.Errorf("null should decode to empty ledger, err=%v len=%d", err, l.Len())
	}

	if err := json.Unmarshal([]byte(`[1,2]`), &l); !errors.Is(err, ErrInvalidLedger) {
		t.Errorf("expected ErrInvalidLedger, got %v", err)
	}
}

func TestParseRelease(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"20000000000000", true},
		{"", false},
		{"-1", false},
		{"2000abc", false},
		{"0", false},
	}
	for _, tt := range tests {
		if _, ok := ParseRelease(tt.in); ok != tt.ok {
			t.Errorf("ParseRelease(%q) ok=%v, want %v", tt.in, ok, tt.ok)
		}
	}
}

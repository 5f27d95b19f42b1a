package character

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

func mustDemo(t *testing.T) *Demo {
	t.Helper()
	d, err := NewDemo()
	if err != nil {
		t.Fatalf("NewDemo: %v", err)
	}
	return d
}

type stubSource struct {
	name  string
	chars map[string]*domain.Character
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Lookup(ctx context.Context, id string) (*domain.Character, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.chars[id], nil
}

func TestResolveDemoCharacter(t *testing.T) {
	cloud := &stubSource{name: "cloud"}
	r := NewResolver(mustDemo(t), nil, cloud)

	res, err := r.Resolve(context.Background(), "astronaut_cat")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Character.Name != "Astro Cat" || !res.Character.IsDemo || res.Substituted {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if len(res.Character.Identity) != IdentityDims {
		t.Fatalf("identity dims = %d", len(res.Character.Identity))
	}
	if cloud.calls != 0 {
		t.Fatal("demo hit should not consult other stores")
	}
}

func TestResolveDemoPrefix(t *testing.T) {
	r := NewResolver(mustDemo(t), nil)

	res, err := r.Resolve(context.Background(), "demo_robot_explorer")
	if err != nil || res.Character.ID != "robot_explorer" || res.Substituted {
		t.Fatalf("Resolve(demo_robot_explorer) = %+v, %v", res, err)
	}

	res, err = r.Resolve(context.Background(), "demo_unknown")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Substituted || res.Character.ID != "astronaut_cat" || res.Warning == nil {
		t.Fatalf("prefixed unknown id should fall back: %+v", res)
	}
}

func TestResolveFallsThroughStoresInOrder(t *testing.T) {
	cloud := &stubSource{name: "cloud", err: errors.New("connection refused")}
	local := &stubSource{name: "local", chars: map[string]*domain.Character{
		"user_42": {ID: "user_42", Name: "Pip"},
	}}
	r := NewResolver(mustDemo(t), nil, cloud, local)

	res, err := r.Resolve(context.Background(), "user_42")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Character.Name != "Pip" || res.Source != "local" {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if cloud.calls != 1 || local.calls != 1 {
		t.Fatalf("calls cloud=%d local=%d", cloud.calls, local.calls)
	}
}

func TestResolveUnknownUsesFallbackWithWarning(t *testing.T) {
	r := NewResolver(mustDemo(t), nil, &stubSource{name: "cloud"}, &stubSource{name: "local"})

	res, err := r.Resolve(context.Background(), "does_not_exist")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Substituted || res.Character.Name != "Astro Cat" {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if res.Warning == nil || res.Warning.Kind != domain.KindCharacterNotFound || res.Warning.Step != domain.StepCharacterLoading {
		t.Fatalf("unexpected warning %+v", res.Warning)
	}
}

func TestResolveMalformedDescriptorFails(t *testing.T) {
	bad := &stubSource{name: "cloud", err: domain.NewError(domain.KindCharacterMalformed, "missing name", nil)}
	r := NewResolver(mustDemo(t), nil, bad)

	if _, err := r.Resolve(context.Background(), "broken"); !errors.Is(err, domain.ErrCharacterMalformed) {
		t.Fatalf("Resolve = %v, want CharacterMalformed", err)
	}
}

func TestNewResolverSkipsNilStores(t *testing.T) {
	var cloud *CloudStore
	r := NewResolver(mustDemo(t), nil, cloud)
	if len(r.sources) != 0 {
		t.Fatalf("sources = %d, want 0", len(r.sources))
	}
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pip.json"), []byte(`{"id":"pip","name":"Pip","traits":["small"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "noname.json"), []byte(`{"id":"noname"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "garbage.json"), []byte(`{`), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewLocalStore(dir, nil)
	ctx := context.Background()

	c, err := store.Lookup(ctx, "pip")
	if err != nil || c == nil || c.Name != "Pip" || c.IsDemo {
		t.Fatalf("Lookup(pip) = %+v, %v", c, err)
	}
	if c, err := store.Lookup(ctx, "missing"); c != nil || err != nil {
		t.Fatalf("Lookup(missing) = %+v, %v", c, err)
	}
	if c, err := store.Lookup(ctx, "../pip"); c != nil || err != nil {
		t.Fatalf("Lookup(../pip) = %+v, %v", c, err)
	}
	if _, err := store.Lookup(ctx, "noname"); !errors.Is(err, domain.ErrCharacterMalformed) {
		t.Fatalf("Lookup(noname) = %v, want CharacterMalformed", err)
	}
	if _, err := store.Lookup(ctx, "garbage"); !errors.Is(err, domain.ErrCharacterMalformed) {
		t.Fatalf("Lookup(garbage) = %v, want CharacterMalformed", err)
	}
}

func TestLocalStoreWatchInvalidatesCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pip.json")
	if err := os.WriteFile(path, []byte(`{"id":"pip","name":"Pip"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewLocalStore(dir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	if c, _ := store.Lookup(ctx, "pip"); c == nil || c.Name != "Pip" {
		t.Fatalf("initial lookup = %+v", c)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if err := os.WriteFile(path, []byte(`{"id":"pip","name":"Pip the Second"}`), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
		if c, _ := store.Lookup(ctx, "pip"); c != nil && c.Name == "Pip the Second" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("cache was not invalidated after file change")
		}
	}
}

type stubExecutor struct {
	row  stubRow
	exec []any
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec = args
	return pgconn.CommandTag{}, nil
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *[]byte:
			*p = r.values[i].([]byte)
		}
	}
	return nil
}

func TestCloudStoreLookup(t *testing.T) {
	exec := &stubExecutor{row: stubRow{values: []any{"hero", "Hero", "", []byte(`["bold","tall"]`), "https://img", ""}}}
	c, err := NewCloudStore(exec).Lookup(context.Background(), "hero")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if c.Name != "Hero" || len(c.Traits) != 2 || c.ImageURL != "https://img" {
		t.Fatalf("unexpected descriptor %+v", c)
	}

	miss, err := NewCloudStore(&stubExecutor{row: stubRow{err: pgx.ErrNoRows}}).Lookup(context.Background(), "nobody")
	if miss != nil || err != nil {
		t.Fatalf("Lookup(nobody) = %+v, %v", miss, err)
	}

	bad := &stubExecutor{row: stubRow{values: []any{"hero", "", "", []byte(`[]`), "", ""}}}
	if _, err := NewCloudStore(bad).Lookup(context.Background(), "hero"); !errors.Is(err, domain.ErrCharacterMalformed) {
		t.Fatalf("Lookup(malformed) = %v", err)
	}
}

func TestCloudStoreSaveTrimsTraits(t *testing.T) {
	exec := &stubExecutor{}
	err := NewCloudStore(exec).Save(context.Background(), domain.Character{ID: "hero", Name: "Hero", Traits: []string{" bold ", ""}})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := string(exec.exec[3].([]byte)); got != `["bold"]` {
		t.Fatalf("traits arg = %s", got)
	}
}

func TestCharHashDeterministic(t *testing.T) {
	a := CharHash("astronaut_cat")
	if a != CharHash("astronaut_cat") {
		t.Fatal("CharHash not deterministic")
	}
	if a <= 0 || a >= 1<<31 {
		t.Fatalf("CharHash = %d, outside 31-bit range", a)
	}
	if CharHash("dragon_knight") == a {
		t.Fatal("distinct ids should not collide here")
	}
	if SceneSeed("astronaut_cat", 0) == SceneSeed("astronaut_cat", 1) {
		t.Fatal("scene seeds should differ per scene")
	}
	if SceneSeed("astronaut_cat", 2) != SceneSeed("astronaut_cat", 2) {
		t.Fatal("SceneSeed not deterministic")
	}
}

func TestIdentityVectorStableAndUnit(t *testing.T) {
	a := IdentityVector("astronaut_cat")
	b := IdentityVector("astronaut_cat")
	if math.Abs(Similarity(a, b)-1) > 1e-6 {
		t.Fatalf("same id similarity = %f", Similarity(a, b))
	}
	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Fatalf("norm = %f, want 1", norm)
	}
	if s := Similarity(a, IdentityVector("pirate_parrot")); s > 0.5 {
		t.Fatalf("distinct ids too similar: %f", s)
	}
}

func TestDemoListOrderAndFallback(t *testing.T) {
	d := mustDemo(t)
	list := d.List()
	if len(list) < 2 || list[0].ID != "astronaut_cat" {
		t.Fatalf("unexpected demo list %+v", list)
	}
	if d.Fallback().ID != list[0].ID {
		t.Fatal("fallback should be the first demo character")
	}
	list[0].Traits[0] = "mutated"
	if d.List()[0].Traits[0] == "mutated" {
		t.Fatal("List leaks internal slices")
	}
}

func TestParseDemoRejectsDuplicates(t *testing.T) {
	_, err := parseDemo([]byte("- {id: a, name: A}\n- {id: a, name: B}\n"))
	if err == nil {
		t.Fatal("expected duplicate error")
	}
}

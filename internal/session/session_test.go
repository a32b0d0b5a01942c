package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/JonMunkholm/SoilMap/internal/core"
)

func TestState_SetPrimaryClearsManual(t *testing.T) {
	s := New()
	s.SetPrimary(&core.Upload{FileName: "a.csv", Data: []byte("x")})
	s.SetAuxiliary(&core.Upload{FileName: "aux.csv"})
	s.AddManual(core.ManualPoint{Latitude: 1, Longitude: 2})

	s.SetPrimary(&core.Upload{FileName: "b.csv"})

	if len(s.Manual) != 0 || s.LastManual != nil {
		t.Errorf("manual state = %v / %v, want cleared", s.Manual, s.LastManual)
	}
	if s.Auxiliary == nil {
		t.Error("SetPrimary should keep the auxiliary upload")
	}
}

func TestState_AddManualKeepsDuplicates(t *testing.T) {
	s := New()
	p := core.ManualPoint{Latitude: 10, Longitude: 20}
	s.AddManual(p)
	s.AddManual(p)

	if diff := cmp.Diff([]core.ManualPoint{p, p}, s.Manual); diff != "" {
		t.Errorf("Manual mismatch (-want +got):\n%s", diff)
	}
	if s.LastManual == nil || *s.LastManual != p {
		t.Errorf("LastManual = %v, want %v", s.LastManual, p)
	}
}

func TestState_Reset(t *testing.T) {
	s := New()
	id := s.ID
	s.SetPrimary(&core.Upload{FileName: "a.csv"})
	s.AddManual(core.ManualPoint{})
	s.ExportFormat = "PNG"

	s.Reset()

	if s.ID != id {
		t.Errorf("ID = %q, want %q", s.ID, id)
	}
	if s.Primary != nil || s.Manual != nil || s.ExportFormat != "" {
		t.Errorf("Reset left state behind: %+v", s)
	}
}

func TestState_RequestStateIsACopy(t *testing.T) {
	s := New()
	s.AddManual(core.ManualPoint{Latitude: 1})

	rs := s.RequestState()
	rs.Manual[0].Latitude = 99

	if s.Manual[0].Latitude != 1 {
		t.Error("mutating RequestState changed the session")
	}
}

func TestValidID(t *testing.T) {
	if !ValidID(New().ID) {
		t.Error("ValidID(New().ID) = false")
	}
	for _, id := range []string{"", "abc", "../../etc/passwd"} {
		if ValidID(id) {
			t.Errorf("ValidID(%q) = true", id)
		}
	}
}

func TestMemoryStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	s := New()
	s.SetPrimary(&core.Upload{FileName: "soil.csv", Data: []byte("Latitude,Longitude,Code\n")})
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(s, got, cmpopts.IgnoreFields(State{}, "UpdatedAt")); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}

	// The stored copy is isolated from later changes.
	s.AddManual(core.ManualPoint{Latitude: 5})
	got, _ = store.Get(ctx, s.ID)
	if len(got.Manual) != 0 {
		t.Error("store shares state with the caller")
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	_, err := NewMemoryStore(time.Hour).Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if got := core.MapError(err).Code; got != "SES001" {
		t.Errorf("MapError().Code = %q, want SES001", got)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	s := New()
	_ = store.Save(ctx, s)

	now = now.Add(30 * time.Second)
	if _, err := store.Get(ctx, s.ID); err != nil {
		t.Fatalf("Get() before expiry error = %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after expiry error = %v, want ErrNotFound", err)
	}

	if n := store.Cleanup(); n != 1 {
		t.Errorf("Cleanup() = %d, want 1", n)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	s := New()
	_ = store.Save(ctx, s)

	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "unknown"); err != nil {
		t.Errorf("Delete(unknown) error = %v", err)
	}
}

func TestMemoryStore_RunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- store.Run(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Run did not return after cancel")
	}
}

func TestStateCodec(t *testing.T) {
	s := New()
	s.SetPrimary(&core.Upload{FileName: "soil.csv", Data: []byte{0xEF, 0xBB, 0xBF, 'L'}})
	s.AddManual(core.ManualPoint{Latitude: -1.5, Longitude: 2.25})
	s.ExportFormat = "JPG"

	b, err := encodeState(s)
	if err != nil {
		t.Fatalf("encodeState() error = %v", err)
	}
	got, err := decodeState(b)
	if err != nil {
		t.Fatalf("decodeState() error = %v", err)
	}
	if diff := cmp.Diff(s, got, cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
		t.Errorf("codec mismatch (-want +got):\n%s", diff)
	}

	if _, err := decodeState([]byte("{")); err == nil {
		t.Error("decodeState(invalid) expected error")
	}
}

func TestKey(t *testing.T) {
	if got := key("abc"); got != "soilmap:session:abc" {
		t.Errorf("key() = %q", got)
	}
}

// TestValkeyStore runs against a live server when VALKEY_TEST_ADDR is set.
func TestValkeyStore(t *testing.T) {
	addr := os.Getenv("VALKEY_TEST_ADDR")
	if addr == "" {
		t.Skip("VALKEY_TEST_ADDR not set")
	}

	ctx := context.Background()
	store, err := NewValkeyStore(addr, time.Minute)
	if err != nil {
		t.Fatalf("NewValkeyStore() error = %v", err)
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	s := New()
	s.AddManual(core.ManualPoint{Latitude: 3, Longitude: 4})
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(s.Manual, got.Manual); diff != "" {
		t.Errorf("Manual mismatch (-want +got):\n%s", diff)
	}

	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}

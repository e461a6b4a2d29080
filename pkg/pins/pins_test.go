package pins

import (
	"path/filepath"
	"testing"

	"github.com/forgepm/forge/pkg/ident"
)

func TestPinsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pins.json")
	s1 := NewStore(path)
	s1.Set(Pin{Identity: "baz", RepositoryURL: "https://example.com/baz", State: CheckoutState{Revision: "abc123", Version: "1.0.0"}})
	s1.Set(Pin{Identity: "alpha", RepositoryURL: "https://example.com/alpha", State: CheckoutState{Revision: "def456", Branch: "main"}})

	if err := s1.Save(); err != nil {
		t.Fatal(err)
	}

	s2 := NewStore(path)
	if err := s2.Load(); err != nil {
		t.Fatal(err)
	}

	all1, all2 := s1.All(), s2.All()
	if len(all1) != len(all2) {
		t.Fatalf("len mismatch: %d vs %d", len(all1), len(all2))
	}
	for i := range all1 {
		if all1[i] != all2[i] {
			t.Errorf("pin %d mismatch: %+v vs %+v", i, all1[i], all2[i])
		}
	}
}

func TestPinsSortedByIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pins.json")
	s := NewStore(path)
	s.Set(Pin{Identity: "zeta", State: CheckoutState{Revision: "1"}})
	s.Set(Pin{Identity: "alpha", State: CheckoutState{Revision: "2"}})
	s.Set(Pin{Identity: "mu", State: CheckoutState{Revision: "3"}})

	all := s.All()
	for i := 1; i < len(all); i++ {
		if !all[i-1].Identity.Less(all[i].Identity) {
			t.Errorf("pins not sorted: %s before %s", all[i-1].Identity, all[i].Identity)
		}
	}
}

func TestPinsRemove(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "pins.json"))
	s.Set(Pin{Identity: "baz", State: CheckoutState{Revision: "abc"}})
	if !s.Remove("baz") {
		t.Error("Remove reported no pin existed")
	}
	if _, ok := s.Get(ident.Identity("baz")); ok {
		t.Error("pin still present after Remove")
	}
}

func TestPinsLoadMissingFileIsNotError(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing-pins.json"))
	if err := s.Load(); err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if len(s.All()) != 0 {
		t.Error("expected empty store")
	}
}

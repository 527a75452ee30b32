package protocol

import (
	"testing"

	"github.com/louisbranch/skirmish.space/internal/errors"
)

func TestStringStoreDeterministicIndices(t *testing.T) {
	words := []string{"entity_burger", "weapon_ketchup", "entity_box", "weapon_ketchup"}

	a := NewStringStore()
	b := NewStringStore()
	for _, word := range words {
		a.RegisterString(word)
	}
	for _, word := range words {
		b.RegisterString(word)
	}

	if a.Count() != 3 || b.Count() != 3 {
		t.Fatalf("expected 3 distinct strings, got %d and %d", a.Count(), b.Count())
	}
	for _, word := range words {
		ia, oka := a.GetStringIndex(word)
		ib, okb := b.GetStringIndex(word)
		if !oka || !okb || ia != ib {
			t.Fatalf("index mismatch for %q: %d vs %d", word, ia, ib)
		}
	}
}

func TestStringStoreInsertionOrder(t *testing.T) {
	store := NewStringStore()
	store.RegisterString("first")
	store.RegisterString("second")
	if index := store.RegisterString("first"); index != 0 {
		t.Fatalf("expected re-registration to keep index 0, got %d", index)
	}

	strings := store.Strings()
	if len(strings) != 2 || strings[0] != "first" || strings[1] != "second" {
		t.Fatalf("unexpected order: %v", strings)
	}
}

func TestStringStoreUnknownLookups(t *testing.T) {
	store := NewStringStore()
	if _, err := store.GetString(5); errors.CodeOf(err) != errors.CodeProtocolUnknownString {
		t.Fatalf("expected unknown string code, got %v", err)
	}
	if _, ok := store.GetStringIndex("missing"); ok {
		t.Fatal("unregistered string should have no index")
	}
}

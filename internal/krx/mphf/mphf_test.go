package mphf

import "testing"

func TestBuildAndLookupAllKeys(t *testing.T) {
	keys := [][]byte{
		[]byte("A"), []byte("B"), []byte("C"), []byte("Enter"),
		[]byte("Escape"), []byte("LeftShift"), []byte("Space"), []byte("Tab"),
	}
	tbl, err := Build(keys)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tbl.Len() != len(keys) {
		t.Fatalf("Len() = %d, want %d", tbl.Len(), len(keys))
	}

	seen := make(map[int]bool)
	for _, k := range keys {
		slot, ok := tbl.Lookup(k)
		if !ok {
			t.Fatalf("Lookup(%s) = not found", k)
		}
		if slot < 0 || slot >= tbl.Len() {
			t.Fatalf("Lookup(%s) = slot %d out of range", k, slot)
		}
		if seen[slot] {
			t.Fatalf("slot %d assigned to more than one key", slot)
		}
		seen[slot] = true
	}
	if len(seen) != len(keys) {
		t.Fatalf("expected every slot used exactly once, got %d distinct slots", len(seen))
	}
}

func TestLookupRejectsForeignKey(t *testing.T) {
	keys := [][]byte{[]byte("A"), []byte("B"), []byte("C")}
	tbl, err := Build(keys)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := tbl.Lookup([]byte("Z")); ok {
		t.Fatal("Lookup must reject a key outside the built set")
	}
}

func TestBuildEmptySet(t *testing.T) {
	tbl, err := Build(nil)
	if err != nil {
		t.Fatalf("Build(nil): %v", err)
	}
	if tbl.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tbl.Len())
	}
	if _, ok := tbl.Lookup([]byte("anything")); ok {
		t.Fatal("empty table must reject every lookup")
	}
}

func TestBuildLargerKeySet(t *testing.T) {
	keys := make([][]byte, 0, 260)
	for i := 0; i < 260; i++ {
		keys = append(keys, []byte{byte(i / 256), byte(i % 256)})
	}
	tbl, err := Build(keys)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, k := range keys {
		if _, ok := tbl.Lookup(k); !ok {
			t.Fatalf("Lookup(%v) = not found", k)
		}
	}
}

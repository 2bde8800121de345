package arena

import "testing"

func TestBytesAreCopied(t *testing.T) {
	a := New()
	src := []byte("hello")
	got := a.Bytes(src)
	src[0] = 'X'
	if string(got) != "hello" {
		t.Errorf("arena copy was aliased: %q", got)
	}
}

func TestStringCopy(t *testing.T) {
	a := New()
	if got := a.String("melbi"); got != "melbi" {
		t.Errorf("String = %q", got)
	}
	if a.String("") != "" {
		t.Error("empty string should stay empty")
	}
}

func TestAllocatedAccounting(t *testing.T) {
	a := New()
	a.Bytes(make([]byte, 10))
	a.String("12345")
	if got := a.Allocated(); got != 15 {
		t.Errorf("Allocated = %d, want 15", got)
	}
	a.Reset()
	if a.Allocated() != 0 {
		t.Error("Reset did not clear accounting")
	}
}

func TestLargeAllocationGetsOwnSlab(t *testing.T) {
	a := New()
	big := make([]byte, defaultSlabSize*2)
	for i := range big {
		big[i] = byte(i)
	}
	got := a.Bytes(big)
	if len(got) != len(big) || got[123] != big[123] {
		t.Error("oversized allocation corrupted")
	}
	// Subsequent small allocations still work.
	if string(a.Bytes([]byte("ok"))) != "ok" {
		t.Error("allocation after oversized slab failed")
	}
}

func TestManySmallAllocationsStayStable(t *testing.T) {
	a := New()
	var all [][]byte
	for i := 0; i < 10000; i++ {
		all = append(all, a.Bytes([]byte{byte(i), byte(i >> 8)}))
	}
	for i, b := range all {
		if b[0] != byte(i) || b[1] != byte(i>>8) {
			t.Fatalf("allocation %d was overwritten", i)
		}
	}
}

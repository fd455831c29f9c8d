package pool

import (
	"bytes"
	"errors"
	"testing"
)

func testConfig() Config {
	return Config{
		{Size: 16, Count: 4},
		{Size: 64, Count: 2},
		{Size: 256, Count: 1},
	}
}

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{}},
		{"zero size", Config{{Size: 0, Count: 1}}},
		{"negative size", Config{{Size: -1, Count: 1}}},
		{"zero count", Config{{Size: 8, Count: 0}}},
		{"duplicate size", Config{{Size: 8, Count: 1}, {Size: 8, Count: 2}}},
	}
	for _, tc := range cases {
		if _, err := New(tc.cfg); err == nil {
			t.Fatalf("%s: New accepted invalid config", tc.name)
		}
	}
}

func TestAllocSmallestFit(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref, err := p.Alloc(10)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if got := len(p.Bytes(ref)); got != 10 {
		t.Fatalf("Bytes length = %d, want 10", got)
	}
	stats := p.Stats()
	if stats.Classes[0].InUse != 1 {
		t.Fatalf("16-byte class InUse = %d, want 1", stats.Classes[0].InUse)
	}
	if stats.Classes[1].InUse != 0 || stats.Classes[2].InUse != 0 {
		t.Fatal("allocation landed in the wrong class")
	}
}

func TestAllocFallsBackToLargerClass(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := p.Alloc(16); err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
	}
	ref, err := p.Alloc(16)
	if err != nil {
		t.Fatalf("fallback Alloc: %v", err)
	}
	if got := len(p.Bytes(ref)); got != 16 {
		t.Fatalf("Bytes length = %d, want 16", got)
	}
	stats := p.Stats()
	if stats.Classes[1].InUse != 1 {
		t.Fatalf("64-byte class InUse = %d, want 1 after fallback", stats.Classes[1].InUse)
	}
}

func TestAllocTooLarge(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Alloc(257); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestAllocExhausted(t *testing.T) {
	p, err := New(Config{{Size: 8, Count: 2}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Alloc(8); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := p.Alloc(8); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := p.Alloc(8); !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
}

func TestStoreAndBytes(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	payload := []byte("hello pool")
	ref, err := p.Store(payload)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !bytes.Equal(p.Bytes(ref), payload) {
		t.Fatalf("Bytes = %q, want %q", p.Bytes(ref), payload)
	}
}

func TestFreeReusesSlot(t *testing.T) {
	p, err := New(Config{{Size: 8, Count: 1}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref, err := p.Alloc(8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	p.Free(ref)
	again, err := p.Alloc(8)
	if err != nil {
		t.Fatalf("Alloc after Free: %v", err)
	}
	if again != ref {
		t.Fatalf("reallocated ref = %v, want %v", again, ref)
	}
}

func TestNilRef(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.Bytes(NilRef); got != nil {
		t.Fatalf("Bytes(NilRef) = %v, want nil", got)
	}
	p.Free(NilRef)
}

func TestDoubleFreePanics(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref, err := p.Alloc(4)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	p.Free(ref)
	defer func() {
		if recover() == nil {
			t.Fatal("double free did not panic")
		}
	}()
	p.Free(ref)
}

func TestZeroLengthAlloc(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref, err := p.Alloc(0)
	if err != nil {
		t.Fatalf("Alloc(0): %v", err)
	}
	if ref == NilRef {
		t.Fatal("Alloc(0) returned NilRef")
	}
	if got := len(p.Bytes(ref)); got != 0 {
		t.Fatalf("Bytes length = %d, want 0", got)
	}
	p.Free(ref)
}

func TestResetAndHighWater(t *testing.T) {
	p, err := New(Config{{Size: 8, Count: 4}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	refs := make([]Ref, 0, 3)
	for i := 0; i < 3; i++ {
		ref, err := p.Alloc(8)
		if err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
		refs = append(refs, ref)
	}
	p.Free(refs[0])

	stats := p.Stats()
	if stats.Classes[0].InUse != 2 {
		t.Fatalf("InUse = %d, want 2", stats.Classes[0].InUse)
	}
	if stats.Classes[0].HighWater != 3 {
		t.Fatalf("HighWater = %d, want 3", stats.Classes[0].HighWater)
	}

	p.Reset()
	stats = p.Stats()
	if stats.Classes[0].InUse != 0 {
		t.Fatalf("InUse after Reset = %d, want 0", stats.Classes[0].InUse)
	}
	if stats.Classes[0].HighWater != 3 {
		t.Fatalf("HighWater after Reset = %d, want 3", stats.Classes[0].HighWater)
	}

	for i := 0; i < 4; i++ {
		if _, err := p.Alloc(8); err != nil {
			t.Fatalf("Alloc after Reset %d: %v", i, err)
		}
	}
}

func TestStatsSlabBytes(t *testing.T) {
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := 16*4 + 64*2 + 256*1
	if got := p.Stats().SlabBytes; got != want {
		t.Fatalf("SlabBytes = %d, want %d", got, want)
	}
}

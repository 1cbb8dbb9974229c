package cache

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "caches"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestKeyDeterminism(t *testing.T) {
	t.Parallel()

	k1 := NewKey(TagByproduct).WriteString("svg").WriteFloat64(2.0).WriteBool(true).Build()
	k2 := NewKey(TagByproduct).WriteString("svg").WriteFloat64(2.0).WriteBool(true).Build()
	if k1 != k2 {
		t.Fatalf("identical inputs produced different keys: %s vs %s", k1, k2)
	}

	k3 := NewKey(TagByproduct).WriteString("svg").WriteFloat64(3.0).WriteBool(true).Build()
	if k1 == k3 {
		t.Fatal("different inputs produced the same key")
	}
}

func TestKeySeparatorKeepsFieldsDistinct(t *testing.T) {
	t.Parallel()

	k1 := NewKey(TagByproduct).WriteString("ab").WriteString("c").Build()
	k2 := NewKey(TagByproduct).WriteString("a").WriteString("bc").Build()
	if k1 == k2 {
		t.Fatal("field boundaries are not part of the key")
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	k := NewKey(TagByproduct).WriteString("blob").Build()

	if _, ok := s.Get(k); ok {
		t.Fatal("unexpected hit on empty store")
	}
	if err := s.Put(k, []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, ok := s.Get(k)
	if !ok || string(data) != "payload" {
		t.Fatalf("Get = %q, %v", data, ok)
	}
}

func TestIndexAndByproductNamespacesAreSeparate(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ik := NewKey(TagRemoteIndex).WriteString("file-key").Build()
	bk := NewKey(TagByproduct).WriteString("file-key").Build()
	if err := s.Put(ik, []byte("index")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(bk, []byte("byproduct")); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(s.Root(), "index", ik.String())); err != nil {
		t.Errorf("index blob not under index/: %v", err)
	}
	if err := s.CleanIndex(); err != nil {
		t.Fatalf("CleanIndex: %v", err)
	}
	if _, ok := s.Get(ik); ok {
		t.Error("index entry survived CleanIndex")
	}
	if _, ok := s.Get(bk); !ok {
		t.Error("byproduct entry removed by CleanIndex")
	}
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	k := NewKey(TagByproduct).WriteString("shared").Build()

	var producerCalls atomic.Int32
	release := make(chan struct{})

	const callers = 8
	results := make([][]byte, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.GetOrCompute(k, func() ([]byte, error) {
				producerCalls.Add(1)
				<-release
				return []byte("produced"), nil
			})
		}(i)
	}

	// Give every caller time to join the flight before releasing the
	// producer.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := producerCalls.Load(); n != 1 {
		t.Fatalf("producer invoked %d times, want 1", n)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if string(results[i]) != "produced" {
			t.Fatalf("caller %d got %q", i, results[i])
		}
	}
}

func TestGetOrComputeSharesProducerFailure(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	k := NewKey(TagByproduct).WriteString("failing").Build()
	boom := errors.New("producer exploded")

	var producerCalls atomic.Int32
	release := make(chan struct{})

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.GetOrCompute(k, func() ([]byte, error) {
				producerCalls.Add(1)
				<-release
				return nil, boom
			})
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := producerCalls.Load(); n != 1 {
		t.Fatalf("producer invoked %d times, want 1", n)
	}
	for i := 0; i < callers; i++ {
		if !errors.Is(errs[i], boom) {
			t.Fatalf("caller %d error = %v, want shared producer failure", i, errs[i])
		}
	}
	if s.Contains(k) {
		t.Fatal("failed production left a cache entry behind")
	}
}

func TestCorruptEntryDegradesToMiss(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	k := NewKey(TagByproduct).WriteString("corrupt").Build()
	if err := s.Put(k, []byte("good")); err != nil {
		t.Fatal(err)
	}

	// Replace the blob with a directory: reads now fail with a non-IsNotExist
	// error, which must be treated as a miss and re-produced.
	p := filepath.Join(s.Root(), "byproducts", k.String()[:4], k.String())
	if err := os.Remove(p); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(p, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get(k); ok {
		t.Fatal("corrupt entry reported as hit")
	}
}

func TestObserverSeesHitsAndMisses(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	obs := &countingObserver{}
	s.SetObserver(obs)
	k := NewKey(TagByproduct).WriteString("observed").Build()

	if _, err := s.GetOrCompute(k, func() ([]byte, error) { return []byte("x"), nil }); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetOrCompute(k, func() ([]byte, error) { t.Fatal("unexpected producer"); return nil, nil }); err != nil {
		t.Fatal(err)
	}

	if obs.misses.Load() != 1 || obs.hits.Load() != 1 {
		t.Fatalf("hits=%d misses=%d, want 1/1", obs.hits.Load(), obs.misses.Load())
	}
}

type countingObserver struct {
	hits   atomic.Int32
	misses atomic.Int32
}

func (o *countingObserver) CacheHit(Key, int) { o.hits.Add(1) }
func (o *countingObserver) CacheMiss(Key)     { o.misses.Add(1) }

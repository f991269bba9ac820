package projection

import (
	"sync"
	"testing"
	"time"
)

func TestReplaceAllReplacesWholesale(t *testing.T) {
	p := New[string]()

	p.ReplaceAll([]string{"milk", "bread"})
	p.ReplaceAll([]string{"eggs"})

	got := p.All()
	if len(got) != 1 || got[0] != "eggs" {
		t.Errorf("All() = %v, want [eggs]", got)
	}
	if p.Version() != 2 {
		t.Errorf("Version() = %d, want 2", p.Version())
	}
}

func TestAllReturnsCopy(t *testing.T) {
	p := New[string]()
	src := []string{"milk"}
	p.ReplaceAll(src)
	src[0] = "changed"

	got := p.All()
	got[0] = "mutated"

	if again := p.All(); again[0] != "milk" {
		t.Errorf("projection changed through a shared slice: %v", again)
	}
}

func TestFind(t *testing.T) {
	p := New[int]()
	p.ReplaceAll([]int{1, 2, 3})

	v, ok := p.Find(func(i int) bool { return i > 1 })
	if !ok || v != 2 {
		t.Errorf("Find = %d, %v; want 2, true", v, ok)
	}
	_, ok = p.Find(func(i int) bool { return i > 5 })
	if ok {
		t.Error("expected no match")
	}
}

func TestSubscribeDeliversLatest(t *testing.T) {
	p := New[int]()
	ch, cancel := p.Subscribe()
	defer cancel()

	p.ReplaceAll([]int{1})
	p.ReplaceAll([]int{1, 2})
	p.ReplaceAll([]int{1, 2, 3})

	select {
	case got := <-ch:
		if len(got) != 3 {
			t.Errorf("got %v, want the newest snapshot", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for snapshot")
	}

	select {
	case got := <-ch:
		t.Errorf("unexpected extra snapshot %v", got)
	default:
	}
}

func TestSubscribeAfterLoadGetsCurrent(t *testing.T) {
	p := New[int]()
	p.ReplaceAll([]int{7})

	ch, cancel := p.Subscribe()
	defer cancel()

	select {
	case got := <-ch:
		if len(got) != 1 || got[0] != 7 {
			t.Errorf("got %v, want [7]", got)
		}
	default:
		t.Fatal("expected current snapshot on subscribe")
	}
}

func TestSubscribeBeforeLoadWaits(t *testing.T) {
	p := New[int]()
	ch, cancel := p.Subscribe()
	defer cancel()

	select {
	case got := <-ch:
		t.Errorf("unexpected snapshot %v before first load", got)
	default:
	}
}

func TestCancelClosesChannel(t *testing.T) {
	p := New[int]()
	ch, cancel := p.Subscribe()
	cancel()
	// Should not panic
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
	if p.ObserverCount() != 0 {
		t.Errorf("ObserverCount() = %d, want 0", p.ObserverCount())
	}
}

func TestResetClosesObservers(t *testing.T) {
	p := New[int]()
	p.ReplaceAll([]int{1})
	ch, cancel := p.Subscribe()
	<-ch

	p.Reset()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Reset")
	}
	if len(p.All()) != 0 {
		t.Error("expected empty projection after Reset")
	}
	if p.Version() != 0 {
		t.Errorf("Version() = %d, want 0", p.Version())
	}
	// Cancel after Reset should not panic
	cancel()
}

func TestConcurrentAccess(t *testing.T) {
	p := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch, cancel := p.Subscribe()
			p.ReplaceAll([]int{i})
			p.All()
			select {
			case <-ch:
			default:
			}
			cancel()
		}(i)
	}

	wg.Wait()

	if got := p.ObserverCount(); got != 0 {
		t.Errorf("expected 0 observers after concurrent test, got %d", got)
	}
	if got := p.Version(); got != 20 {
		t.Errorf("Version() = %d, want 20", got)
	}
}

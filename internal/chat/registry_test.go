package chat

import (
	"sync"
	"testing"
)

func TestRegistryCreatesOnFirstUse(t *testing.T) {
	r := NewRegistry(func() *Manager {
		return newTestManager(nil, nil, nil)
	})

	a := r.Get("session-a")
	b := r.Get("session-b")
	if a == b {
		t.Error("distinct sessions share a manager")
	}
	if r.Get("session-a") != a {
		t.Error("repeated Get returned a different manager")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistryConcurrentGetSameSession(t *testing.T) {
	r := NewRegistry(func() *Manager {
		return newTestManager(nil, nil, nil)
	})

	const workers = 16
	managers := make([]*Manager, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			managers[i] = r.Get("shared")
		}()
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if managers[i] != managers[0] {
			t.Fatal("concurrent Get produced multiple managers for one session")
		}
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

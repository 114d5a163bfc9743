package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_After(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired atomic.Int32
	m.After(50*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(300 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("Expected task to fire once, fired %d times", fired.Load())
	}
}

func TestManager_Cancel(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired atomic.Int32
	id := m.After(200*time.Millisecond, func() { fired.Add(1) })
	m.Cancel(id)

	time.Sleep(500 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("Cancelled task fired %d times", fired.Load())
	}
}

func TestManager_StopPreventsPending(t *testing.T) {
	m := NewManager()

	var fired atomic.Int32
	m.After(200*time.Millisecond, func() { fired.Add(1) })
	m.Stop()

	time.Sleep(500 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("Task fired %d times after Stop", fired.Load())
	}
}

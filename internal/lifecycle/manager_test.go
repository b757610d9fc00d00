package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// recordingComponent logs start/stop events into a shared journal.
type recordingComponent struct {
	name     string
	journal  *journal
	startErr error
}

type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(event string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

func (c *recordingComponent) Start(ctx context.Context) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.journal.add("start:" + c.name)
	return nil
}

func (c *recordingComponent) Stop(ctx context.Context) error {
	c.journal.add("stop:" + c.name)
	return nil
}

func (c *recordingComponent) Name() string { return c.name }

func TestManagerStartStopOrder(t *testing.T) {
	j := &journal{}
	storage := &recordingComponent{name: "storage", journal: j}
	watcher := &recordingComponent{name: "watcher", journal: j}
	server := &recordingComponent{name: "server", journal: j}

	m := NewManager()
	if err := m.Register(storage); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(watcher, storage); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(server, storage, watcher); err != nil {
		t.Fatal(err)
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []string{
		"start:storage", "start:watcher", "start:server",
		"stop:server", "stop:watcher", "stop:storage",
	}
	got := j.all()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestManagerRollbackOnStartFailure(t *testing.T) {
	j := &journal{}
	storage := &recordingComponent{name: "storage", journal: j}
	broken := &recordingComponent{name: "broken", journal: j, startErr: errors.New("port in use")}

	m := NewManager()
	if err := m.Register(storage); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(broken, storage); err != nil {
		t.Fatal(err)
	}

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("expected start failure")
	}

	got := j.all()
	want := []string{"start:storage", "stop:storage"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestManagerRegisterValidation(t *testing.T) {
	j := &journal{}
	m := NewManager()

	if err := m.Register(nil); err == nil {
		t.Error("expected error for nil component")
	}

	a := &recordingComponent{name: "a", journal: j}
	unregistered := &recordingComponent{name: "ghost", journal: j}
	if err := m.Register(a, unregistered); err == nil {
		t.Error("expected error for unregistered dependency")
	}

	if err := m.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(a); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

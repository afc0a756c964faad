package relay

import "sync"

// FakeCommander is a test double recording every Set call.
type FakeCommander struct {
	mu sync.Mutex

	// States holds the last commanded state per heater.
	States map[string]bool

	// Commands is the full ordered command history.
	Commands []FakeCommand

	// Closed tracks if Close was called.
	Closed bool

	// SetError, if set, will be returned by Set.
	SetError error
}

// FakeCommand is one recorded actuation.
type FakeCommand struct {
	ID string
	On bool
}

// NewFakeCommander creates an empty FakeCommander.
func NewFakeCommander() *FakeCommander {
	return &FakeCommander{States: make(map[string]bool)}
}

// Set records the command.
func (f *FakeCommander) Set(id string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.States[id] = on
	f.Commands = append(f.Commands, FakeCommand{ID: id, On: on})
	return nil
}

// Close marks the commander as closed.
func (f *FakeCommander) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// CommandLog returns a copy of the full command history.
func (f *FakeCommander) CommandLog() []FakeCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCommand, len(f.Commands))
	copy(out, f.Commands)
	return out
}

// State returns the last commanded state for a heater.
func (f *FakeCommander) State(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.States[id]
}

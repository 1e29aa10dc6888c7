package orchestrator

import (
	"sync"

	"github.com/cao-dev/cao/internal/provider"
)

// fakePane records what was sent to it and serves a settable buffer.
// When afterInput is set, any pasted text flips the buffer to it,
// simulating the agent answering.
type fakePane struct {
	mu         sync.Mutex
	target     string
	buffer     string
	afterInput string
	pasted     []string
	keys       []string
	commands   []string
}

func (p *fakePane) Capture(lines int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer, nil
}

func (p *fakePane) CaptureAll() (string, error) { return p.Capture(0) }

func (p *fakePane) SendCommand(command string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, command)
	return nil
}

func (p *fakePane) SendKey(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *fakePane) PasteText(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pasted = append(p.pasted, text)
	if p.afterInput != "" {
		p.buffer = p.afterInput
	}
	return nil
}

func (p *fakePane) Target() string { return p.target }

func (p *fakePane) setBuffer(buffer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer = buffer
}

func (p *fakePane) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pasted = nil
	p.keys = nil
	p.commands = nil
}

// fakeTerm implements Terminal in memory.
type fakeTerm struct {
	mu sync.Mutex
	// paneBuffer and paneAfterInput seed every new pane.
	paneBuffer     string
	paneAfterInput string

	panes          map[string]*fakePane
	sessions       []string
	windows        []string
	killedSessions []string
	killedWindows  []string
	attached       map[string]bool
	piped          map[string]string
	stoppedPipes   []string
}

func newFakeTerm(buffer string) *fakeTerm {
	return &fakeTerm{
		paneBuffer: buffer,
		panes:      make(map[string]*fakePane),
		attached:   make(map[string]bool),
		piped:      make(map[string]string),
	}
}

func (f *fakeTerm) NewSession(session, windowName, dir string, env map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, session)
	f.windows = append(f.windows, session+":"+windowName)
	return nil
}

func (f *fakeTerm) NewWindow(session, windowName, dir string, env map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, session+":"+windowName)
	return nil
}

func (f *fakeTerm) KillSession(session string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killedSessions = append(f.killedSessions, session)
	return nil
}

func (f *fakeTerm) KillWindow(session, window string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killedWindows = append(f.killedWindows, session+":"+window)
	return nil
}

func (f *fakeTerm) HasSession(session string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, killed := range f.killedSessions {
		if killed == session {
			return false, nil
		}
	}
	for _, s := range f.sessions {
		if s == session {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTerm) SessionAttached(session string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached[session], nil
}

func (f *fakeTerm) setAttached(session string, attached bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached[session] = attached
}

func (f *fakeTerm) PipePane(target, file string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.piped[target] = file
	return nil
}

func (f *fakeTerm) StopPipePane(target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stoppedPipes = append(f.stoppedPipes, target)
	return nil
}

func (f *fakeTerm) Pane(session, window string) Pane {
	f.mu.Lock()
	defer f.mu.Unlock()
	target := session + ":" + window
	p, ok := f.panes[target]
	if !ok {
		p = &fakePane{target: target, buffer: f.paneBuffer, afterInput: f.paneAfterInput}
		f.panes[target] = p
	}
	return p
}

// fakeWatcher records which workers were registered for log watching.
type fakeWatcher struct {
	mu         sync.Mutex
	registered []string
}

func (f *fakeWatcher) Register(workerID string, _ provider.Provider, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, workerID)
	return nil
}

func (f *fakeWatcher) Unregister(string) {}

func (f *fakeWatcher) registeredIDs() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[string]bool, len(f.registered))
	for _, id := range f.registered {
		ids[id] = true
	}
	return ids
}

// onlyPane returns the single live pane; fails the caller's assertions
// loudly when worker creation made none or several.
func (f *fakeTerm) onlyPane() *fakePane {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.panes) != 1 {
		return nil
	}
	for _, p := range f.panes {
		return p
	}
	return nil
}

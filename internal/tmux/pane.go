package tmux

// Pane addresses a single window's active pane. Providers and the
// orchestrator hold a Pane instead of composing targets by hand.
type Pane struct {
	t      *Tmux
	target string
}

// NewPane returns a Pane for session:window.
func (t *Tmux) NewPane(session, window string) *Pane {
	return &Pane{t: t, target: session + ":" + window}
}

// Target returns the tmux target string for this pane.
func (p *Pane) Target() string { return p.target }

// Capture returns the last lines of the pane with escape sequences
// preserved.
func (p *Pane) Capture(lines int) (string, error) {
	return p.t.CapturePane(p.target, lines)
}

// CaptureAll returns the pane's full scrollback.
func (p *Pane) CaptureAll() (string, error) {
	return p.t.CapturePaneAll(p.target)
}

// SendCommand types a command literally and submits it with Enter.
func (p *Pane) SendCommand(command string) error {
	return p.t.SendCommand(p.target, command)
}

// PasteText delivers text via bracketed paste without submitting.
func (p *Pane) PasteText(text string) error {
	return p.t.PasteText(p.target, text)
}

// SendKey sends a tmux key name.
func (p *Pane) SendKey(key string) error {
	return p.t.SendKeysRaw(p.target, key)
}

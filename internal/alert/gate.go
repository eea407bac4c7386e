package alert

import "trading-analyticsv1/internal/model"

// Gate defaults.
const (
	DefaultConfirmWindow = 2
	DefaultCooldown      = 5
	DefaultOverride      = 10
)

type pendingSignal struct {
	action string
	minute string
}

type firedSignal struct {
	action     string
	confidence int
	minute     string
}

// Gate holds the per-instrument pending and cooldown state. It lives in
// memory only; a restart forgets both maps.
type Gate struct {
	// ConfirmWindow is the largest gap in minutes between the pending
	// observation and its confirmation.
	ConfirmWindow int
	// Cooldown suppresses a repeat of the last fired action for this many
	// minutes.
	Cooldown int
	// Override lets a repeat through the cooldown when confidence moved by
	// at least this much.
	Override int

	pending map[string]pendingSignal
	fired   map[string]firedSignal
}

// NewGate returns a gate with the default windows.
func NewGate() *Gate {
	return &Gate{
		ConfirmWindow: DefaultConfirmWindow,
		Cooldown:      DefaultCooldown,
		Override:      DefaultOverride,
		pending:       make(map[string]pendingSignal),
		fired:         make(map[string]firedSignal),
	}
}

// Confirm reports whether action was already pending for symbol within the
// confirmation window. Otherwise action becomes the new pending signal.
// A confirmed signal clears the pending slot.
func (g *Gate) Confirm(symbol, action, minute string) bool {
	p, ok := g.pending[symbol]
	if ok && p.action == action {
		if gap, err := model.MinutesBetween(p.minute, minute); err == nil && gap >= 0 && gap <= g.ConfirmWindow {
			delete(g.pending, symbol)
			return true
		}
	}
	g.pending[symbol] = pendingSignal{action: action, minute: minute}
	return false
}

// Clear drops symbol's pending signal.
func (g *Gate) Clear(symbol string) {
	delete(g.pending, symbol)
}

// Pending returns symbol's pending action, if any.
func (g *Gate) Pending(symbol string) (string, bool) {
	p, ok := g.pending[symbol]
	return p.action, ok
}

// InCooldown reports whether firing action at minute with confidence would
// repeat symbol's last alert too soon. A different action or a confidence
// move of at least Override always passes.
func (g *Gate) InCooldown(symbol, action string, confidence int, minute string) bool {
	f, ok := g.fired[symbol]
	if !ok || f.action != action {
		return false
	}
	gap, err := model.MinutesBetween(f.minute, minute)
	if err != nil || gap >= g.Cooldown {
		return false
	}
	delta := confidence - f.confidence
	if delta < 0 {
		delta = -delta
	}
	return delta < g.Override
}

// Fired records an alert that was persisted.
func (g *Gate) Fired(symbol, action string, confidence int, minute string) {
	g.fired[symbol] = firedSignal{action: action, confidence: confidence, minute: minute}
}

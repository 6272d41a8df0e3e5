package guard

import (
	"sync"

	"semaphore/auth-session/internal/access"
	"semaphore/auth-session/internal/reconciler"
)

// Watcher re-runs Evaluate whenever the reconciler state, the allowed-role
// set or the current path changes, and reports decisions that differ from
// the previous one.
type Watcher struct {
	defaultLocale string
	onChange      func(Decision)

	mu      sync.Mutex
	state   reconciler.State
	allowed []access.Role
	path    string
	last    Decision
	primed  bool

	cancel func()
}

// Watch reports the first decision before returning. onChange runs inside
// the reconciler's notification and must not call Refresh, Login or Logout
// on rec; hand such work to another goroutine.
func Watch(rec *reconciler.Reconciler, allowed []access.Role, path, defaultLocale string, onChange func(Decision)) *Watcher {
	w := &Watcher{
		defaultLocale: defaultLocale,
		onChange:      onChange,
		allowed:       append([]access.Role(nil), allowed...),
		path:          path,
	}
	w.cancel = rec.Observe(w.setState)
	return w
}

func (w *Watcher) setState(state reconciler.State) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
	w.evaluate()
}

func (w *Watcher) SetPath(path string) {
	w.mu.Lock()
	w.path = path
	w.mu.Unlock()
	w.evaluate()
}

func (w *Watcher) SetAllowed(allowed []access.Role) {
	w.mu.Lock()
	w.allowed = append([]access.Role(nil), allowed...)
	w.mu.Unlock()
	w.evaluate()
}

// Decision returns the most recent decision.
func (w *Watcher) Decision() Decision {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *Watcher) Stop() {
	w.cancel()
}

func (w *Watcher) evaluate() {
	w.mu.Lock()
	decision := Evaluate(w.state, w.allowed, w.path, w.defaultLocale)
	changed := !w.primed || decision != w.last
	w.last = decision
	w.primed = true
	w.mu.Unlock()

	if changed && w.onChange != nil {
		w.onChange(decision)
	}
}

package lifecycle

import "sync"

// Attachable is implemented by anything that reports its activation through a
// pair of lifecycle signals.
type Attachable interface {
	// EnteredActive returns the signal for the next (or current) activation.
	EnteredActive() *Signal
	// LeftActive returns the signal for the end of the current activation.
	LeftActive() *Signal
}

// Activatable is an Attachable whose transitions can be driven by an owner,
// typically a scene tree.
type Activatable interface {
	Attachable
	Activate()
	Deactivate()
	Active() bool
}

// Hooks is an embeddable Activatable implementation. The zero value is ready
// to use and behaves as a never-attached object: EnteredActive is pending and
// LeftActive has already fired.
type Hooks struct {
	mu          sync.Mutex
	entered     *Signal
	left        *Signal
	active      bool
	activations uint64
}

func (h *Hooks) lazyInit() {
	if h.entered == nil {
		h.entered = NewSignal()
		h.left = Resolved()
	}
}

// EnteredActive implements Attachable.
func (h *Hooks) EnteredActive() *Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lazyInit()
	return h.entered
}

// LeftActive implements Attachable.
func (h *Hooks) LeftActive() *Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lazyInit()
	return h.left
}

// Activate marks the object active. A fresh pending left signal is installed
// before the entered signal fires, so anyone woken by the entered signal sees
// the left signal of this activation.
func (h *Hooks) Activate() {
	h.mu.Lock()
	h.lazyInit()
	if h.active {
		h.mu.Unlock()
		return
	}
	h.active = true
	h.activations++
	h.left = NewSignal()
	entered := h.entered
	h.mu.Unlock()

	entered.Fire()
}

// Deactivate marks the object inactive. A fresh pending entered signal is
// installed before the left signal fires.
func (h *Hooks) Deactivate() {
	h.mu.Lock()
	h.lazyInit()
	if !h.active {
		h.mu.Unlock()
		return
	}
	h.active = false
	h.entered = NewSignal()
	left := h.left
	h.mu.Unlock()

	left.Fire()
}

// Active reports whether the object is currently active.
func (h *Hooks) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Activations returns how many times the object has been activated.
func (h *Hooks) Activations() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activations
}

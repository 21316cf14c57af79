package crud

import "sync"

// ToastKind distinguishes success and failure notifications.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toast is a transient user-facing notification.
type Toast struct {
	Kind    ToastKind `json:"type"`
	Message string    `json:"message"`
}

// Notifier delivers toasts to whatever surface shows them.
type Notifier interface {
	Notify(t Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Toast)

func (f NotifierFunc) Notify(t Toast) { f(t) }

// Recorder collects toasts in order. The zero value is ready to use.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Notify(t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

// Toasts returns a copy of everything recorded so far.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Last returns the most recent toast.
func (r *Recorder) Last() (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return Toast{}, false
	}
	return r.toasts[len(r.toasts)-1], true
}

type discardNotifier struct{}

func (discardNotifier) Notify(Toast) {}

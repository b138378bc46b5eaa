// Package notify surfaces short user-facing notifications such as toasts.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Variant selects how a notification is styled
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantSuccess     Variant = "success"
	VariantDestructive Variant = "destructive"
)

// Notification is one transient message for the user
type Notification struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Variant     Variant `json:"variant"`
}

// Notifier displays notifications
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification
var Discard Notifier = Func(func(Notification) {})

// Terminal prints notifications as colored lines
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminal writes to out, or to color.Output when out is nil
func NewTerminal(out io.Writer) *Terminal {
	if out == nil {
		out = color.Output
	}
	return &Terminal{out: out}
}

func (t *Terminal) Notify(n Notification) {
	var title *color.Color
	switch n.Variant {
	case VariantSuccess:
		title = color.New(color.FgGreen, color.Bold)
	case VariantDestructive:
		title = color.New(color.FgRed, color.Bold)
	default:
		title = color.New(color.FgCyan, color.Bold)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	title.Fprint(t.out, n.Title)
	if n.Description != "" {
		fmt.Fprintf(t.out, ": %s", n.Description)
	}
	fmt.Fprintln(t.out)
}

// Recorder keeps every notification it receives
type Recorder struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

// Notifications returns a copy of everything recorded so far
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

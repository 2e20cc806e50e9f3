package models

import "fmt"

// View identifies one screen of the storefront.
type View string

const (
	ViewShowcase View = "showcase"
	ViewAdmin    View = "admin"
	ViewMonitor  View = "monitor"
	ViewLocked   View = "locked"
	ViewAILab    View = "ai_lab"
)

// Protected reports whether the view requires an authenticated session.
// Admin, the visitor monitor and the AI studio are behind the gate.
func (v View) Protected() bool {
	switch v {
	case ViewAdmin, ViewMonitor, ViewAILab:
		return true
	}
	return false
}

// ParseView validates a view name coming from a client. The locked view is
// rendered by the server and can never be navigated to.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewShowcase, ViewAdmin, ViewMonitor, ViewAILab:
		return v, nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}

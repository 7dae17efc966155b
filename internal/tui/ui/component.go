package ui

import "github.com/rivo/tview"

// MenuHint is one key shown in the header menu.
type MenuHint struct {
	Key         string
	Description string
	// Numeric marks digit shortcuts such as the 1-9 conversation jump.
	Numeric bool
}

// Page is a view hosted on the page stack.
type Page interface {
	tview.Primitive
	// Name is the crumb label, e.g. a contact name for an open thread.
	Name() string
	// Count is shown next to the crumb label. Negative hides it.
	Count() int
}

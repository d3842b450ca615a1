package history

import "strings"

// KeyEvent is a key press as seen by the shell hosting the gallery.
type KeyEvent struct {
	Key         string
	Ctrl        bool
	Meta        bool
	Shift       bool
	InTextInput bool
}

type Shortcut int

const (
	ShortcutNone Shortcut = iota
	ShortcutUndo
	ShortcutRedo
)

func (s Shortcut) String() string {
	switch s {
	case ShortcutUndo:
		return "undo"
	case ShortcutRedo:
		return "redo"
	default:
		return "none"
	}
}

// ShortcutFor maps Ctrl/Cmd+Z to undo and Ctrl/Cmd+Shift+Z to redo.
// Keys typed into a text field are left to the field.
func ShortcutFor(ev KeyEvent) Shortcut {
	if ev.InTextInput || !(ev.Ctrl || ev.Meta) {
		return ShortcutNone
	}
	if !strings.EqualFold(ev.Key, "z") {
		return ShortcutNone
	}
	if ev.Shift {
		return ShortcutRedo
	}
	return ShortcutUndo
}

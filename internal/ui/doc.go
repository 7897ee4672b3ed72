// Package ui provides the Bubble Tea terminal interface for weatherdash.
//
// # Views
//
// Three routes are rendered: login (the sign-in form), dashboard (latest
// reading and connection state) and logs (the tail of the JSON log file).
// Every route change goes through the navigation guard in a tea.Cmd, so a
// navigation issued before the identity is known waits for it without
// blocking the event loop. Until the first navigation is decided the content
// area shows a placeholder.
//
// # Stores
//
// The model never polls the stores. For each store it keeps a command
// waiting on the store's Changed channel; the resulting message carries the
// new snapshot and the channel for the next change, so no update is lost
// between two messages.
//
// # Themes
//
// The light/dark preference is applied to a Palette shared by every copy of
// the model. Views read the palette when rendering.
//
// # Keys
//
//	d / l        dashboard / logs
//	o            sign out
//	t            toggle light/dark (ctrl+t on the sign-in form)
//	?            help
//	q / ctrl+c   quit
package ui

// Package nav routes between views and guards transitions that need a
// signed-in user. A navigation started before the identity is known waits
// for it.
package nav

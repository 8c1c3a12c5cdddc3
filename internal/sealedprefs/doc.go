// Package sealedprefs assembles a working preference store from a Config.
//
// New chooses the backing provider named by store.backend, builds one opener
// per tier over it, and hands them to a tier.Selector. Programs then call
// Host.Open with a namespace and use the returned prefs.Preferences.
package sealedprefs

// Package http serves the essay workflow to a browser shell.
//
// Actions are plain JSON endpoints; progress is pushed over a single
// server-sent event stream carrying the snapshot on connect and a diff per
// render afterwards.
package http

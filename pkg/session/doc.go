/*
Package session drives one essay evaluation session.

Controller is the macro state machine (idle, generating_topic, waiting_essay,
evaluating, finished). It talks to the backend through a ports.Transport,
feeds the resulting step stream into a projector.Projector tagged with the
current epoch, and opens the essay, feedback and result surfaces when the
workflow asks for user interaction.

Manager persists snapshots of sessions through a ports.SessionStore, with
per-session local locking and an optional ports.DistributedLocker.
*/
package session

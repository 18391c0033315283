// Package session owns preload sessions.
//
// A Controller couples one event bus with the current preload.Aggregator and
// runs the redirect protocol when a restart is confirmed. Controllers are
// built explicitly; the Manager keeps the live ones for the HTTP surface.
package session

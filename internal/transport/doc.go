// Package transport owns the channel to the physical device: reader
// discovery, connection, applet selection, and the single synchronous
// exchange primitive the client drives.
package transport

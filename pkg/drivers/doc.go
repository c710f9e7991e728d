// Package drivers provides trigger drivers: an in-memory recorder, a callback
// driver, a byte-oriented serial driver and a fan-out broadcaster.
package drivers

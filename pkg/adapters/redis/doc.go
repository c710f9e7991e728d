// Package redis publishes trigger events on a Redis pub/sub channel.
//
// Each event becomes one JSON Message. A subscriber on the recording side
// translates messages into hardware markers. With WithExclusive the driver
// locks its channel for the lifetime of the session.
package redis

// Package events publishes pipeline progress events to live subscribers and
// keeps a bounded replay buffer for polling clients.
package events

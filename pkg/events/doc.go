// Package events provides an in-memory pub/sub broker for job and
// booking transitions. The tick loop publishes; the RPC façade's
// websocket endpoint subscribes and forwards to connected clients.
// Publish hands the event to a 100-slot buffer and blocks only while
// that buffer is full (until the broker drains it or is stopped);
// delivery to each subscriber never blocks, and a full subscriber
// buffer drops the event.
package events

package mqtt

import (
	"context"
)

// Client is the minimal MQTT surface the agent needs: an outbound,
// auto-reconnecting publisher. The underlying paho implementation details are
// kept out of the rest of the codebase.
type Client interface {
	// Start initiates the connection to the broker. It is non-blocking and
	// returns immediately; use AwaitConnection to wait.
	Start(ctx context.Context) error

	// Disconnect cleanly closes the connection.
	Disconnect(ctx context.Context)

	// Publish sends a message to the specified topic.
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// AwaitConnection blocks until the client is connected to the broker or
	// the context is cancelled.
	AwaitConnection(ctx context.Context) error
}

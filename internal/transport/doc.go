// Package transport defines the pub-sub boundary between the driver
// components and whatever carries their messages.
//
// Contract:
//   - Channels are named by topic strings
//   - Each subscription keeps at most one undelivered message; a newer
//     message replaces an unread one (retain-latest, depth 1)
//   - Delivery to one subscription is serialized and FIFO; there is no
//     ordering across topics
//   - Publishing never waits for subscribers
//
// Implementations live in subpackages: memory (in-process), natsbus
// (NATS subjects) and grpcbus (remote bus over gRPC).
//
// Typed access goes through NewPublisher and Subscribe, which encode with
// sonic and reject undecodable payloads with *MalformedPayloadError before
// any handler runs.
package transport

// Package ws streams robot state over WebSocket.
//
// After the upgrade the server pushes a "state" message every interval while
// the robot is ready, and a single "not_ready" message whenever readiness is
// lost. Clients may send {"type":"ping"} and receive {"type":"pong"}.
//
// Example Usage:
//
//	handler := ws.NewHandler(consumer, "arm/", logger, metrics, 100*time.Millisecond)
//	router.GET("/v1/robot/stream", handler.HandleConnection)
package ws

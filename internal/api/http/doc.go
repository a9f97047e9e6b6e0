// Package http serves the robot status API.
//
// Routes:
//
//	GET  /healthz            liveness
//	GET  /v1/robot/ready     readiness of the consumer
//	GET  /v1/robot/state     full snapshot, 503 until ready
//	POST /v1/robot/target    publish a joint target (rate limited)
//	GET  /v1/robot/stream    WebSocket state stream
//	GET  /metrics            Prometheus metrics
package http

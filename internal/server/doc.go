// Package server assembles the robotdriver processes from configuration.
//
// Three roles share one configuration:
//   - Server: a driver consumer behind the HTTP status API
//   - Simulator: a driver provider fed by the simulated robot
//   - BusServer: a gRPC bus for processes without a NATS broker
//
// With the memory transport the consumer and the simulator share one
// in-process bus, so Server starts a Simulator itself.
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, logger, metrics)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

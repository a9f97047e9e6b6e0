// Package config provides 12-factor configuration for the robot driver
// processes.
//
// Values come from environment variables with defaults. Optional .env files
// are read first and never override variables already set in the process.
//
// Configuration Sections:
//   - Server: status API listen address
//   - Robot: channel name prefix identifying the robot
//   - Transport: bus kind (memory, nats, grpc) and endpoints
//   - Logging: log level and output format
//   - RateLimit: target submission rate limiting on the API
//   - Sim: simulated robot profile and publishing cadence
//
// Example Usage:
//
//	cfg, err := config.Load(".env")
//	bus, err := server.DialBus(ctx, cfg.Transport, logger)
//
// Environment Variables:
//   - PORT, HOST, ROBOT_PREFIX
//   - TRANSPORT_KIND, NATS_URL, BUS_ADDR, BUS_PUBLISH_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - SIM_PROFILE, SIM_RATE_HZ, SIM_LIMITS_INTERVAL, SIM_MAX_VELOCITY, SIM_WATCH
package config

/*
Package monitoring provides Prometheus metrics for the driver link.

# Overview

Each process owns one Metrics value backed by its own registry, so tests and
multi-robot processes never collide on metric registration.

# Features

- Messages published, received and rejected per topic
- Publish failures per topic
- Readiness gauge per component role
- HTTP request counts and latency for the status API
- Active websocket streams and remote bus subscriptions
- Circuit breaker state per remote link

A nil *Metrics is valid and records nothing.

# Usage

	metrics := monitoring.NewMetrics()
	consumer, err := driver.NewConsumerOn(bus, "arm/", driver.WithMetrics(metrics))

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring

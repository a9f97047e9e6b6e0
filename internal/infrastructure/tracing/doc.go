/*
Package tracing provides lightweight request tracing for the status API and
the gRPC bus.

# Overview

A Tracer hands out spans that carry a trace ID and a span ID. Completed spans
are submitted to a buffered collector that logs them through the structured
logger. Nothing is exported to an external system.

# Propagation

Trace context travels in:
  - HTTP headers X-Trace-ID and X-Span-ID
  - gRPC metadata keys x-trace-id and x-span-id

# Usage

	tracer := tracing.New("robotdriver", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(tracing.GRPCUnaryInterceptor(tracer)),
		grpc.ChainStreamInterceptor(tracing.GRPCStreamInterceptor(tracer)),
	)

Completed spans are logged at debug level, so high-rate bus publishes stay
quiet unless debug logging is enabled. Spans that end in an error are logged
at warn level.
*/
package tracing

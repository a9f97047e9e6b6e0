/*
Package resilience provides a circuit breaker for remote transport links.

# Overview

A remote bus that stops answering would otherwise make every publish wait for
its full timeout. The breaker fails publishes fast while the link is down and
probes it again after a cool-down.

# States

	Closed --[trip]-> Open --[timeout]-> Half-Open --[probes succeed]-> Closed
	                                         |
	                                     [failure]
	                                         v
	                                        Open

# Usage

	breaker := resilience.New("bus", resilience.Settings{
		Timeout: 5 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			metrics.SetBreakerState(name, int(to))
		},
	})

	err := breaker.Do(func() error {
		return client.Publish(ctx, topic, payload)
	})
*/
package resilience

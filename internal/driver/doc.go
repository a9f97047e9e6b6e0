// Package driver synchronizes robot state between a controller and a robot
// process over a pub-sub transport.
//
// A Provider runs next to the hardware or simulator. It publishes joint
// positions, joint limits and the reference frame, and caches the joint
// targets it receives. A Consumer runs in the controller. It caches the latest
// value of every provider channel and only hands state out once all of it has
// arrived:
//
//	bus := memory.New()
//	consumer, err := driver.NewConsumerOn(bus, "arm")
//	...
//	if consumer.IsReady() {
//	    q, _ := consumer.Positions()
//	    consumer.SendTargetPositions(next(q))
//	}
//
// Each field is last-write-wins; there is no versioning across fields.
package driver

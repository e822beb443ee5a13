// Package services holds the message-processing core of the assistant: the
// planner, the response generator, and the Runtime that drives each inbound
// message through dedup, policy, planning, tools, generation, and delivery.
//
// This file centralizes service-level error values. None of them reach the
// chat user; they are logged and mapped to pipeline outcomes or HTTP codes.
package services

import "errors"

var (
	// ErrQueueFull is returned by Enqueue when the bounded queue is at
	// capacity. The message is dropped and no marker is recorded.
	ErrQueueFull = errors.New("queue full")

	// ErrRuntimeStopped is returned by Enqueue once Run has returned.
	ErrRuntimeStopped = errors.New("runtime stopped")

	// ErrRuntimeRunning is returned when Run is called a second time.
	ErrRuntimeRunning = errors.New("runtime already running")
)

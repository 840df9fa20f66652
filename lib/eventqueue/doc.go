// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventqueue buffers events between the producer and the batch
// builder under a byte budget.
//
// A [BoundedQueue] is a FIFO of events for one priority. Its capacity
// is a byte budget read from [Limits] on every operation, so a config
// reload takes effect on the next enqueue without rebuilding anything.
// Admission control rejects an event that could never be delivered
// (larger than the queue budget or the message ceiling) before it
// consumes budget. Otherwise the event is appended and the oldest
// events are evicted until the queue is back within budget: fresh
// telemetry is worth more than stale telemetry.
//
// A [Manager] owns one queue each for High, Low, and Operational and
// implements batch packing:
//
//	Operational (always first) → preferred priority → opposite priority
//
// Packing is a sequential prefix-pack. A head event that does not fit
// the remaining budget stops the drain of that queue even if a smaller
// event sits behind it; the smaller event waits for the next batch.
// A batch is only built when the preferred queue has something to
// send, so Operational and opposite-priority events never trigger a
// message on their own.
//
// Enqueue and drop counts go to an injected [CounterSink]. Rejected
// events are reported as both enqueued and dropped so that
// enqueued - dropped always equals events still buffered or delivered.
package eventqueue

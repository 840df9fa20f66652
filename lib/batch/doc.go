// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package batch turns queued events into envelopes and hands them to
// the transport.
//
// [Builder.Run] is a scheduler task. Each tick makes three independent
// decisions, in order:
//
//  1. When the queues together hold at least one max-size message, a
//     High flush is forced regardless of its interval.
//  2. When the High interval has elapsed since the last High flush,
//     High is flushed.
//  3. When the Low interval has elapsed since the last Low flush, Low
//     is flushed.
//
// A flush packs Operational events first, then the flushed priority,
// then piggybacks the opposite priority into whatever room remains.
// A flush whose own priority has nothing queued sends nothing, so a
// backlog of only Low events does not trigger the forced flush.
//
// Sends are fire-and-forget: each envelope is delivered on its own
// goroutine with a send timeout that ignores the tick's cancellation.
// Outcomes are counted and failures logged; a failed batch is not
// requeued. [Builder.Drain] and [Builder.Wait] support graceful
// shutdown.
package batch

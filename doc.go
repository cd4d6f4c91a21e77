// Package caper orchestrates multi-step operations that span independent,
// stateful subsystems.
//
// Two disciplines live in this module:
//
//   - a compensating-transaction saga (this package): an ordered chain of
//     forward steps, each paired with a compensation; when a step fails, the
//     completed steps are unwound in reverse order, best effort.
//   - a signal-driven phase state machine (package phase): a long-lived
//     operation that advances through declared phases while staying
//     responsive to externally delivered abort/update/confirm signals and
//     read-only state queries.
//
// Overview
//
//  1. Define your steps: pair a forward function with a compensation using
//     NewStep; mark a step that needs an emergency pre-unwind recovery with
//     WithRecovery.
//  2. Chain them with a Builder; Build returns an immutable Saga.
//  3. Run it with an Executor. Execute never returns an error to its caller:
//     it always produces a Result describing the outcome, the cost and
//     refund totals, and every compensation attempted.
//
// Durability concerns (crash recovery, replay, exactly-once bookkeeping) are
// delegated to whatever substrate hosts the executor; this package persists
// run state through the Store interface and nothing more.
//
// For more on distributed sagas, see this 2017 JOTB talk by Caitie
// McCaffrey: https://www.youtube.com/watch?v=0UTOLRTwOX0
package caper

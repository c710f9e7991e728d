/*
Package domain contains the core domain models of the trialkit engine.

It defines the fundamental entities of a timed trial run, such as trigger events,
responder observations and actions, validation verdicts, and the run-scoped session.
This package is kept pure and free of external dependencies like I/O or
devices, following Hexagonal Architecture principles.

# Key Entities

  - TriggerEvent: A discrete marker emitted to external recording equipment.
  - Observation: The immutable snapshot handed to a responder for one response window.
  - Action: A responder's answer (key + reaction time). Never trusted directly.
  - HandledResponse: The adapter's verdict, carrying the only action the engine may act on.
  - SessionInfo: Run-scoped identity (participant, seed, mode) that tags every audit record.
*/
package domain

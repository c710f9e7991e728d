/*
Package ports defines the driven ports (interfaces) for the trialkit core.

These interfaces decouple the phase engine, trigger runtime and responder adapter
from concrete displays, input devices, trigger hardware and decision-makers.
Optional behavior is expressed as small capability interfaces that callers check
with type assertions.

# Key Interfaces

  - Display: Draw/flip surface owning a FIFO queue of flip callbacks.
  - InputDevice: Buffered keyboard-like source drained once per frame.
  - Driver: Trigger transport (Open/Close/Send) plus PulseSender and Resetter.
  - Responder: Decision-maker producing an Action from an Observation.
  - AuditSink: Destination for structured audit records.
*/
package ports

/*
Package trigger sends hardware-agnostic trigger events through a driver and
audits every emission.

Each non-empty emission writes a trigger_planned record before the driver is
touched and a trigger_executed record, with the same emit id, after the send.
Flip emissions are executed from the display's flip callback so that the trigger
lines up with the first frame of the stimulus it marks.
*/
package trigger

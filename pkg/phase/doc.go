/*
Package phase runs one timed segment of a trial against a refresh-driven display.

Every nominal duration is converted once into a whole number of frames and all
"has the window ended" checks count frames, so a run at a fixed refresh rate is
exactly reproducible. Onset and close timestamps and onset/offset triggers are
registered as flip callbacks and therefore carry the time of the frame that
actually became visible.

In qa and sim modes the engine builds an Observation, asks the context's
Responder Adapter once, and replays the validated action frame-synchronously
as if it came from the input device.
*/
package phase

// Package headless provides a deterministic virtual display and a scripted
// keyboard so that phases can run without a monitor or a participant.
//
// The display owns a virtual clock that advances by exactly one frame period per
// flip, which makes every timestamp reproducible.
package headless

// Package command turns typed entity descriptions into the positional token
// sequences a finite-element engine consumes, and emits them through a
// pluggable Backend.
//
// A Session owns the per-category tag Registry and the active Backend.
// Entities are described by a Schema: an op_type literal and an ordered
// list of fields, each required, strictly trailing optional, packet, flag
// block, or switch. New validates a Definition against its schema,
// allocates a tag, encodes, and emits. The returned Object is immutable and
// hands out a Ref that other definitions use to point at it; a Ref encodes
// as the referenced tag.
//
// Encoded layout:
//
//	op_type tag required... [optional...] [-flag value...]...
//
// Validation always happens before tag allocation, so a rejected
// definition never consumes a tag.
package command

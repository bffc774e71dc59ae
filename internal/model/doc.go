// Package model defines the records shared by the session core, the
// processing gateway and the wire protocol.
//
// Identifiers are opaque strings. Geometry is in pixels of the unrotated
// source image. A nil ImageRecord.Settings means "no processing": blur
// disabled and threshold disabled.
package model

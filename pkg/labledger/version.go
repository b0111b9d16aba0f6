// Package labledger holds build metadata for the labledger module.
package labledger

// Version is the release version, without the leading "v".
const Version = "0.1.0"

// Package extensions models the per-request option map that travels with a
// request and is echoed on its response. Values are restricted to null,
// bool, int, float and string; anything else is converted to a string.
package extensions

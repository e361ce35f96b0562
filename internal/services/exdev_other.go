//go:build !unix

package services

// Rename across volumes on these platforms surfaces as a plain error; no copy fallback.
func isCrossDevice(error) bool {
	return false
}

//go:build !unix

package transport

// SO_REUSEADDR on Windows lets another process steal a bound port, so it is
// left unset there.
func setReuseAddr(uintptr) error {
	return nil
}

//go:build !windows

package ipc

func defaultAddress() string {
	return defaultUnixAddress()
}

//go:build windows

package ipc

func defaultAddress() string {
	return "tcp://127.0.0.1:18790"
}

//go:build !unix

package httpx

import "syscall"

func reuseAddr(string, string, syscall.RawConn) error { return nil }

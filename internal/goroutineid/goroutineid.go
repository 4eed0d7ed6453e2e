// Package goroutineid reads the current goroutine's id from its stack
// header. It backs the event loop's re-entrancy check and nothing else.
package goroutineid

import (
	"bytes"
	"runtime"
)

var prefix = []byte("goroutine ")

// Get returns the current goroutine id, or 0 if the stack header could not
// be parsed.
func Get() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

// parse reads the decimal id in a "goroutine N [state]:" header.
func parse(stack []byte) int64 {
	rest, ok := bytes.CutPrefix(stack, prefix)
	if !ok {
		return 0
	}
	var id int64
	for _, b := range rest {
		if b < '0' || b > '9' {
			break
		}
		id = id*10 + int64(b-'0')
	}
	return id
}

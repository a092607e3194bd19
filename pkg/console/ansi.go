//go:build !js && !wasm

package console

const (
	ansiCarriageReturn = "\r"
	ansiClearLine       = "\x1b[K"
)

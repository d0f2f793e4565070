package msgbus

import "unsafe"

// funcKey is the identity of a registered callback.
type funcKey uintptr

// keyOf returns the identity of a func value: the address of its closure
// object. Copies of one func value share an identity, distinct closures do
// not. Method values produce a fresh closure per evaluation.
//
// F must be a func type.
func keyOf[F any](fn F) funcKey {
	return funcKey(*(*uintptr)(unsafe.Pointer(&fn)))
}

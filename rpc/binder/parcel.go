package binder

import (
	"time"
)

// FlagOneway marks a call that expects no reply
const FlagOneway = 1

// Parcel carries the serialized arguments or result of a call plus its call metadata
type Parcel struct {
	Data []byte

	// Timeout overrides the default transaction timeout of two-way calls when > 0
	Timeout time.Duration
}

// NewParcel wraps data
func NewParcel(data []byte) *Parcel {
	return &Parcel{Data: data}
}

// WithTimeout sets the call timeout and returns the parcel
func (p *Parcel) WithTimeout(d time.Duration) *Parcel {
	p.Timeout = d
	return p
}

// Bytes returns the payload, nil for a nil parcel
func (p *Parcel) Bytes() []byte {
	if p == nil {
		return nil
	}
	return p.Data
}

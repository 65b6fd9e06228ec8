package http2

import (
	"sync"
)

// FrameType identifies the kind of frame carried by a FrameHeader.
//
// http://httpwg.org/specs/rfc7540.html#FrameTypes
type FrameType uint8

const (
	minFrameType FrameType = 0x0
	maxFrameType FrameType = 0x9
)

func (ft FrameType) String() string {
	switch ft {
	case FrameData:
		return "Data"
	case FrameHeaders:
		return "Headers"
	case FramePriority:
		return "Priority"
	case FrameResetStream:
		return "RstStream"
	case FrameSettings:
		return "Settings"
	case FramePushPromise:
		return "PushPromise"
	case FramePing:
		return "Ping"
	case FrameGoAway:
		return "GoAway"
	case FrameWindowUpdate:
		return "WindowUpdate"
	case FrameContinuation:
		return "Continuation"
	}
	return "Unknown"
}

// FrameFlags is the 8-bit flags field of a FrameHeader.
type FrameFlags uint8

// Has returns true if f is set in fl.
func (fl FrameFlags) Has(f FrameFlags) bool {
	return fl&f == f
}

// Add returns fl with f set.
func (fl FrameFlags) Add(f FrameFlags) FrameFlags {
	return fl | f
}

// Del returns fl with f cleared.
func (fl FrameFlags) Del(f FrameFlags) FrameFlags {
	return fl &^ f
}

// Frame is the behaviour every frame body type implements. The payload
// held by a FrameHeader is decoded/encoded through these two methods;
// everything else (type-specific accessors) lives on the concrete type.
type Frame interface {
	Type() FrameType
	Reset()
	Deserialize(fr *FrameHeader) error
	Serialize(fr *FrameHeader)
}

var framePools = [maxFrameType + 1]*sync.Pool{
	FrameData:         {New: func() interface{} { return &Data{} }},
	FrameHeaders:      {New: func() interface{} { return &Headers{} }},
	FramePriority:     {New: func() interface{} { return &Priority{} }},
	FrameResetStream:  {New: func() interface{} { return &RstStream{} }},
	FrameSettings:     {New: func() interface{} { return &Settings{} }},
	FramePushPromise:  {New: func() interface{} { return &PushPromise{} }},
	FramePing:         {New: func() interface{} { return &Ping{} }},
	FrameGoAway:       {New: func() interface{} { return &GoAway{} }},
	FrameWindowUpdate: {New: func() interface{} { return &WindowUpdate{} }},
	FrameContinuation: {New: func() interface{} { return &Continuation{} }},
}

// AcquireFrame returns a Frame body of kind t from its pool.
//
// kind must be <= maxFrameType; callers discard unknown frame types
// before reaching here (see FrameHeader.readFrom).
func AcquireFrame(kind FrameType) Frame {
	fr := framePools[kind].Get().(Frame)
	fr.Reset()
	return fr
}

// ReleaseFrame puts fr back in its type's pool.
func ReleaseFrame(fr Frame) {
	if fr == nil {
		return
	}
	fr.Reset()
	framePools[fr.Type()].Put(fr)
}

package h2core

// maxDataFragment is the conservative DATA chunk cap chosen by §4.4:
// the protocol allows up to the negotiated MAX_FRAME_SIZE (default
// 16384), but 8 KiB leaves headroom for other frames to interleave
// without renegotiation.
const maxDataFragment = 8192

// WireFrame is one fully-formed outgoing frame, ready for the parent
// package's frame codec to serialize onto the wire. It deliberately
// mirrors the codec's frame kinds rather than reusing them directly,
// keeping h2core free of a dependency on the frame codec package.
type WireFrame struct {
	StreamID uint32
	Kind     CommandKind
	// EncodedHeaders is the already-HPACK-encoded header block for a
	// CmdHeaders frame; the codec is run once, here, not by the writer.
	EncodedHeaders []byte
	Data           []byte
	EndStream      bool
	ErrCode        ErrorCode
}

// Scheduler drains stream outgoing queues into wire frames, subject
// to both per-stream and connection flow control.
type Scheduler struct {
	core *Core
}

// NewScheduler returns a Scheduler bound to core.
func NewScheduler(core *Core) *Scheduler {
	return &Scheduler{core: core}
}

// DrainStream repeatedly pops from one stream until PopOutgoing
// returns nothing further, converting each command to wire frames.
// It removes the stream from the table if it closed during the
// drain.
func (sch *Scheduler) DrainStream(id uint32) ([]WireFrame, error) {
	s := sch.core.GetStream(id)
	if s == nil {
		return nil, nil
	}
	var out []WireFrame
	for {
		cmd, ok := s.PopOutgoing(&sch.core.OutWindow)
		if !ok {
			break
		}
		frames, err := sch.serialize(id, cmd)
		if err != nil {
			return out, err
		}
		out = append(out, frames...)
	}
	sch.core.RemoveStreamIfClosed(id)
	return out, nil
}

// DrainConnection sweeps every live stream id in ascending order,
// fully draining each, and repeats the sweep while any stream in the
// last pass produced output. This is the deterministic, fair
// traversal §4.4 and §9 call for in place of hash-map iteration.
func (sch *Scheduler) DrainConnection() ([]WireFrame, error) {
	var all []WireFrame
	for {
		ids := sch.core.Streams.IDs()
		if len(ids) == 0 {
			break
		}
		produced := false
		for _, id := range ids {
			frames, err := sch.DrainStream(id)
			if err != nil {
				return all, err
			}
			if len(frames) > 0 {
				produced = true
				all = append(all, frames...)
			}
		}
		if !produced {
			break
		}
	}
	return all, nil
}

// serialize converts a single HttpStreamCommand to its wire frame(s).
func (sch *Scheduler) serialize(streamID uint32, cmd HttpStreamCommand) ([]WireFrame, error) {
	switch cmd.Kind {
	case CmdHeaders:
		encoded := sch.core.Encoder.Encode(nil, cmd.Headers.Fields)
		if len(encoded) > maxHeaderFrameSize {
			return nil, newErr(KindHeaderTooLarge, streamID, "encoded header block is %d bytes, exceeds single-frame limit %d", len(encoded), maxHeaderFrameSize)
		}
		return []WireFrame{{
			StreamID:       streamID,
			Kind:           CmdHeaders,
			EncodedHeaders: encoded,
			EndStream:      cmd.EndStream,
		}}, nil

	case CmdData:
		if len(cmd.Data) == 0 && cmd.EndStream {
			return []WireFrame{{
				StreamID:  streamID,
				Kind:      CmdData,
				Data:      nil,
				EndStream: true,
			}}, nil
		}
		var frames []WireFrame
		buf := cmd.Data
		for len(buf) > 0 {
			n := maxDataFragment
			if n > len(buf) {
				n = len(buf)
			}
			chunk := buf[:n]
			buf = buf[n:]
			frames = append(frames, WireFrame{
				StreamID:  streamID,
				Kind:      CmdData,
				Data:      chunk,
				EndStream: cmd.EndStream && len(buf) == 0,
			})
		}
		return frames, nil

	case CmdRst:
		return []WireFrame{{
			StreamID: streamID,
			Kind:     CmdRst,
			ErrCode:  cmd.ErrCode,
		}}, nil

	default:
		panic("h2core: unknown HttpStreamCommand kind")
	}
}

// maxHeaderFrameSize bounds a single encoded header block. RFC 7540
// default MAX_FRAME_SIZE is 16384; CONTINUATION emission is a
// non-goal, so any block larger than this cannot be sent.
const maxHeaderFrameSize = 16384

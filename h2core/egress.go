package h2core

// EgressCommand is handed to the writer by the dispatcher for
// out-of-band control frames and flush requests, distinct from the
// WireFrame batches the Scheduler produces on a flush.
type EgressCommand struct {
	// FlushAll requests a drain of every stream (TryFlush(None) in the
	// spec's notation).
	FlushAll bool
	// FlushStreamID requests a drain of a single stream when FlushAll
	// is false and FlushStreamID != 0.
	FlushStreamID uint32
	// Raw is a pre-serialized out-of-band frame (SETTINGS ACK, PING
	// ACK, WINDOW_UPDATE) to write as-is, bypassing the scheduler.
	Raw []byte
}

// TryFlushAll builds the connection-wide flush command.
func TryFlushAll() EgressCommand { return EgressCommand{FlushAll: true} }

// TryFlushStream builds a single-stream flush command.
func TryFlushStream(id uint32) EgressCommand { return EgressCommand{FlushStreamID: id} }

// WriteRaw builds a raw out-of-band write command.
func WriteRaw(b []byte) EgressCommand { return EgressCommand{Raw: b} }

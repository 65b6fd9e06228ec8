package h2core

import "testing"

func TestPopOutgoingEmptyBodyEndStreamOnly(t *testing.T) {
	// Scenario 1: Headers then a clean end with no data.
	s := NewStream(1, 65535)
	s.Open()
	s.EnqueueHeaders(HeaderBlock{Fields: []HeaderField{{Name: ":status", Value: "200"}}})
	s.SetOutgoingEnd(ErrCodeNoError)

	conn := NewWindow(65535)

	cmd, ok := s.PopOutgoing(&conn)
	if !ok || cmd.Kind != CmdHeaders || cmd.EndStream {
		t.Fatalf("first pop = %+v, ok=%v; want Headers, not end_stream", cmd, ok)
	}

	cmd, ok = s.PopOutgoing(&conn)
	if !ok || cmd.Kind != CmdData || !cmd.EndStream || len(cmd.Data) != 0 {
		t.Fatalf("second pop = %+v, ok=%v; want empty Data with end_stream", cmd, ok)
	}

	if s.State() != StreamHalfClosedLocal {
		t.Fatalf("state = %v, want half_closed_local", s.State())
	}

	_, ok = s.PopOutgoing(&conn)
	if ok {
		t.Fatalf("expected no more commands after close_local")
	}
}

func TestPopOutgoingLeavesFragmentationToScheduler(t *testing.T) {
	// Scenario 2 at the stream level: with both windows large enough,
	// the 20000-byte body comes out as one command; the 8 KiB split
	// into frames happens in the scheduler (TestDrainStreamFragmentsLargeBody).
	s := NewStream(1, 65535)
	s.Open()
	body := make([]byte, 20000)
	s.EnqueueData(body)
	s.SetOutgoingEnd(ErrCodeNoError)

	conn := NewWindow(65535)

	wantSizes := []int{20000}
	for i, want := range wantSizes {
		cmd, ok := s.PopOutgoing(&conn)
		if !ok || cmd.Kind != CmdData {
			t.Fatalf("pop %d: got ok=%v kind=%v, want Data", i, ok, cmd.Kind)
		}
		if len(cmd.Data) != want {
			t.Fatalf("pop %d: len=%d, want %d", i, len(cmd.Data), want)
		}
		wantEnd := i == len(wantSizes)-1
		if cmd.EndStream != wantEnd {
			t.Fatalf("pop %d: end_stream=%v, want %v", i, cmd.EndStream, wantEnd)
		}
	}
}

func TestPopOutgoingStreamWindowStall(t *testing.T) {
	// Scenario 3: peer window 1000, enqueue 5000 bytes + end.
	s := NewStream(1, 1000)
	s.Open()
	s.EnqueueData(make([]byte, 5000))
	s.SetOutgoingEnd(ErrCodeNoError)

	conn := NewWindow(65535)

	cmd, ok := s.PopOutgoing(&conn)
	if !ok || cmd.Kind != CmdData || len(cmd.Data) != 1000 || cmd.EndStream {
		t.Fatalf("first pop = %+v ok=%v, want 1000 bytes no end_stream", cmd, ok)
	}

	if _, ok := s.PopOutgoing(&conn); ok {
		t.Fatalf("expected stall once stream window is exhausted")
	}

	if err := s.OutWindow().TryIncrease(4000); err != nil {
		t.Fatalf("window update failed: %v", err)
	}

	cmd, ok = s.PopOutgoing(&conn)
	if !ok || cmd.Kind != CmdData || len(cmd.Data) != 4000 || !cmd.EndStream {
		t.Fatalf("second pop = %+v ok=%v, want 4000 bytes with end_stream", cmd, ok)
	}
}

func TestCloseLocalRemoteLattice(t *testing.T) {
	s := NewStream(1, 65535)
	s.Open()
	s.CloseLocal()
	if s.State() != StreamHalfClosedLocal {
		t.Fatalf("state = %v, want half_closed_local", s.State())
	}
	s.CloseRemote()
	if s.State() != StreamClosed {
		t.Fatalf("state = %v, want closed", s.State())
	}
}

func TestCloseRemoteThenLocal(t *testing.T) {
	s := NewStream(1, 65535)
	s.Open()
	s.CloseRemote()
	if s.State() != StreamHalfClosedRemote {
		t.Fatalf("state = %v, want half_closed_remote", s.State())
	}
	s.CloseLocal()
	if s.State() != StreamClosed {
		t.Fatalf("state = %v, want closed", s.State())
	}
}

package transport

import (
	"fmt"
	"testing"
)

func TestPipeDeliversInOrder(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	var got []string
	b.OnMessage(func(data []byte) {
		got = append(got, string(data))
	})

	for i := 0; i < 20; i++ {
		if !a.Send([]byte(fmt.Sprintf("frame-%d", i))) {
			t.Fatalf("send %d failed on open pipe", i)
		}
	}

	if len(got) != 20 {
		t.Fatalf("received %d frames, want 20", len(got))
	}
	for i, f := range got {
		if want := fmt.Sprintf("frame-%d", i); f != want {
			t.Fatalf("frame %d = %q, want %q", i, f, want)
		}
	}
}

func TestPipeSendAfterCloseFails(t *testing.T) {
	a, b := Pipe()
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if a.Send([]byte("x")) {
		t.Fatal("send succeeded on closed end")
	}
	if b.Send([]byte("x")) {
		t.Fatal("send succeeded on peer of closed end")
	}
	if a.State() != StateClosed || b.State() != StateClosed {
		t.Fatalf("states after close: %s / %s", a.State(), b.State())
	}
}

func TestPipeCloseIsIdempotentAndNotifiesOnce(t *testing.T) {
	a, _ := Pipe()
	notified := 0
	a.OnStateChange(func(s State) {
		if s == StateClosed {
			notified++
		}
	})
	_ = a.Close()
	_ = a.Close()
	if notified != 1 {
		t.Fatalf("close notified %d times, want 1", notified)
	}
}

func TestPipeHandlerCanSendBack(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	var reply string
	a.OnMessage(func(data []byte) { reply = string(data) })
	b.OnMessage(func(data []byte) {
		b.Send([]byte("pong:" + string(data)))
	})

	a.Send([]byte("ping"))
	if reply != "pong:ping" {
		t.Fatalf("reply = %q", reply)
	}
}

package forwarder

import (
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(&discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestSendDeliversToAllTargets(t *testing.T) {
	a, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	targets := []Target{
		{Host: "127.0.0.1", Port: a.LocalAddr().(*net.UDPAddr).Port},
		{Host: "127.0.0.1", Port: b.LocalAddr().(*net.UDPAddr).Port},
	}
	f := New(discardLogger(), targets)
	defer f.Close()

	f.Send([]byte("hello"))

	for _, conn := range []*net.UDPConn{a, b} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		buf := make([]byte, 32)
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("expected datagram: %v", err)
		}
		if string(buf[:n]) != "hello" {
			t.Fatalf("got %q", buf[:n])
		}
	}
}

func TestSendSkipsUnreachableTargetWithoutBlockingOthers(t *testing.T) {
	good, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer good.Close()

	targets := []Target{
		{Host: "127.0.0.1", Port: good.LocalAddr().(*net.UDPAddr).Port},
		{Host: "not-a-real-host.invalid", Port: 1},
	}
	f := New(discardLogger(), targets)
	defer f.Close()

	f.Send([]byte("hi"))

	good.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 32)
	n, _, err := good.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("expected good target to still receive: %v", err)
	}
	if string(buf[:n]) != "hi" {
		t.Fatalf("got %q", buf[:n])
	}
}

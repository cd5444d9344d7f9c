package debug

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/google/gousb"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb/sim"
)

// fakeUART answers debug commands from a simulated bus. Responses are
// queued synchronously as each command line completes.
type fakeUART struct {
	password string
	bus      *sim.Bus
	line     bytes.Buffer
	out      bytes.Buffer
	active   bool
	closed   bool
	sent     []string
}

func newFakeUART(password string) *fakeUART {
	return &fakeUART{password: password, bus: sim.New(ahb.KindDebug)}
}

func (f *fakeUART) Write(p []byte) (int, error) {
	for _, c := range p {
		if c != '\r' {
			f.line.WriteByte(c)
			continue
		}
		cmd := f.line.String()
		f.line.Reset()
		f.sent = append(f.sent, cmd)
		f.handle(cmd)
	}
	return len(p), nil
}

func (f *fakeUART) handle(cmd string) {
	if !f.active {
		if cmd == f.password {
			f.active = true
			f.out.WriteString("\r\n" + prompt)
		}
		return
	}
	switch {
	case cmd == "q":
		f.active = false
	case strings.HasPrefix(cmd, "r "):
		addr, _ := strconv.ParseUint(cmd[2:], 16, 32)
		v := f.bus.Peek(uint32(addr))
		fmt.Fprintf(&f.out, "\r\n%08x\r\n%s", v, prompt)
	case strings.HasPrefix(cmd, "w "):
		parts := strings.SplitN(cmd[2:], ":", 2)
		addr, _ := strconv.ParseUint(parts[0], 16, 32)
		val, _ := strconv.ParseUint(parts[1], 16, 32)
		f.bus.Poke(uint32(addr), uint32(val))
		f.out.WriteString("\r\n" + prompt)
	}
}

// Read returns (0, nil) when nothing is queued, like a serial port whose
// read timeout expired.
func (f *fakeUART) Read(p []byte) (int, error) {
	if f.out.Len() == 0 {
		return 0, nil
	}
	return f.out.Read(p)
}

func (f *fakeUART) Close() error { f.closed = true; return nil }

func driverFor(u *fakeUART) *Driver {
	d := New()
	d.Open = func(path string) (io.ReadWriteCloser, error) {
		if path != "/dev/ttyUSB0" {
			return nil, fmt.Errorf("no such device %s", path)
		}
		return u, nil
	}
	return d
}

func TestProbeOnlyWhenRequested(t *testing.T) {
	d := driverFor(newFakeUART(DefaultPassword))
	for _, args := range [][]string{nil, {"p2a"}} {
		if a, err := d.Probe(args); a != nil || err != nil {
			t.Fatalf("Probe(%v) = %v, %v", args, a, err)
		}
	}
	if _, err := d.Probe([]string{"debug"}); err == nil {
		t.Fatalf("expected usage error without tty")
	}
	if _, err := d.Probe([]string{"debug", "/dev/ttyS9"}); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestReadWrite(t *testing.T) {
	u := newFakeUART("s3cret")
	u.bus.Poke(0x1e6e207c, 0x04030303)
	d := driverFor(u)

	a, err := d.Probe([]string{"debug", "/dev/ttyUSB0", "s3cret"})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if a.Kind() != ahb.KindDebug {
		t.Fatalf("Kind = %s", a.Kind())
	}

	rev, err := a.Read32(0x1e6e207c)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if rev != 0x04030303 {
		t.Fatalf("Read32 = 0x%08x", rev)
	}
	if err := a.Write32(0x1e785004, 0x10); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	if got := u.bus.Peek(0x1e785004); got != 0x10 {
		t.Fatalf("bus holds 0x%x", got)
	}

	if err := d.Destroy(a); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if !u.closed || u.active {
		t.Fatalf("Destroy did not leave debug mode and close the port")
	}
}

func TestWrongPasswordTimesOut(t *testing.T) {
	u := newFakeUART("s3cret")
	d := driverFor(u)

	_, err := d.Probe([]string{"debug", "/dev/ttyUSB0", "wrong"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Probe error = %v, want ErrTimeout", err)
	}
	if !u.closed {
		t.Fatalf("port left open after failed probe")
	}
}

func TestReleaseAndReinit(t *testing.T) {
	u := newFakeUART(DefaultPassword)
	d := driverFor(u)

	a, err := d.Probe([]string{"debug", "/dev/ttyUSB0"})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	defer d.Destroy(a)

	if err := d.Release(a); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if u.active {
		t.Fatalf("UART still in debug mode after Release")
	}
	if _, err := a.Read32(0x1e6e207c); err == nil {
		t.Fatalf("expected reads to fail while released")
	}

	if err := d.Reinit(a); err != nil {
		t.Fatalf("Reinit: %v", err)
	}
	if !u.active {
		t.Fatalf("UART not in debug mode after Reinit")
	}
	if _, err := a.Read32(0x1e6e207c); err != nil {
		t.Fatalf("Read32 after Reinit: %v", err)
	}
}

func TestForeignHandle(t *testing.T) {
	d := New()
	if err := d.Release(sim.New(ahb.KindDebug)); err == nil {
		t.Fatalf("expected error for a foreign handle")
	}
}

func TestClassifyUSBDevice(t *testing.T) {
	info, ok := classifyUSBDevice(&gousb.DeviceDesc{Vendor: 0x0403, Product: 0x6001, Bus: 1, Address: 4})
	if !ok {
		t.Fatalf("FT232R not recognised")
	}
	if info.Label() != "FTDI FT232R" || info.Bus != 1 || info.Address != 4 {
		t.Fatalf("info = %+v", info)
	}
	if _, ok := classifyUSBDevice(&gousb.DeviceDesc{Vendor: 0x1d6b, Product: 0x0002}); ok {
		t.Fatalf("root hub classified as serial adapter")
	}
	if got := (AdapterInfo{VendorID: 0x1234, ProductID: 0xabcd}).Label(); got != "USB serial 1234:ABCD" {
		t.Fatalf("Label = %q", got)
	}
}

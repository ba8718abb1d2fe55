package tor

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewClient tests the Client constructor.
func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("valid proxy address creates client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q, expected %q", client.ProxyAddress(), "127.0.0.1:9050")
		}
	})

	tests := []struct {
		name    string
		address string
	}{
		{name: "empty address", address: ""},
		{name: "missing port", address: "127.0.0.1"},
		{name: "missing host", address: ":9050"},
		{name: "port zero", address: "127.0.0.1:0"},
		{name: "port out of range", address: "127.0.0.1:65536"},
		{name: "non numeric port", address: "127.0.0.1:tor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewClient(tt.address, time.Second)
			if !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
			}
		})
	}
}

// TestProxyStatus tests the status strings and errors.
func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status ProxyStatus
		str    string
		err    error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not Tor)", ErrProxyNotTor},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			t.Parallel()

			if got := tt.status.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
			if got := tt.status.Err(); !errors.Is(got, tt.err) || (tt.err == nil && got != nil) {
				t.Errorf("Err() = %v, want %v", got, tt.err)
			}
		})
	}

	if ProxyStatus(99).String() != "unknown" || ProxyStatus(99).Err() == nil {
		t.Error("unexpected result for unknown status")
	}
}

// serveOnce accepts a single connection and hands it to handle.
func serveOnce(t *testing.T, handle func(net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return listener.Addr().String()
}

// TestCheckConnection tests the SOCKS5 probe against mock servers.
func TestCheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("returns CannotConnect for closed port", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		addr := listener.Addr().String()
		_ = listener.Close()

		client, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusCannotConnect {
			t.Errorf("expected ProxyStatusCannotConnect, got %v", status)
		}
	})

	t.Run("returns WrongType for non-SOCKS5 server", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
		})

		client, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", status)
		}
	})

	t.Run("returns WrongType for SOCKS5 requiring auth", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte{0x05, 0xFF})
		})

		client, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", status)
		}
	})

	t.Run("returns OK when CONNECT is answered", func(t *testing.T) {
		t.Parallel()

		requested := make(chan string, 1)
		addr := serveOnce(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte{0x05, 0x00})

			header := make([]byte, 5)
			if _, err := io.ReadFull(conn, header); err != nil {
				return
			}
			host := make([]byte, int(header[4])+2)
			if _, err := io.ReadFull(conn, host); err != nil {
				return
			}
			requested <- string(host[:len(host)-2])

			// Host unreachable is still a SOCKS5 answer.
			_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		})

		client, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusOK {
			t.Errorf("expected ProxyStatusOK, got %v", status)
		}
		if got := <-requested; got != DefaultProbeHost {
			t.Errorf("probe host = %q, want %q", got, DefaultProbeHost)
		}
	})

	t.Run("returns WrongType for wrong version in CONNECT response", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = io.ReadFull(conn, buf)
			_, _ = conn.Write([]byte{0x05, 0x00})
			req := make([]byte, 256)
			_, _ = conn.Read(req)
			_, _ = conn.Write([]byte{0x04, 0x00, 0x00, 0x01})
		})

		client, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected ProxyStatusWrongType, got %v", status)
		}
	})

	t.Run("returns Timeout for silent server", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		t.Cleanup(func() { close(release) })
		addr := serveOnce(t, func(net.Conn) { <-release })

		client, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if status := client.CheckConnection(context.Background()); status != ProxyStatusTimeout {
			t.Errorf("expected ProxyStatusTimeout, got %v", status)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:59998", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		status := client.CheckConnection(ctx)
		if status != ProxyStatusCannotConnect && status != ProxyStatusTimeout {
			t.Errorf("expected ProxyStatusCannotConnect or ProxyStatusTimeout, got %v", status)
		}
	})
}

// socks5Proxy is a minimal CONNECT-only SOCKS5 proxy for tests.
type socks5Proxy struct {
	listener net.Listener
	connects atomic.Int32
}

func startSOCKS5Proxy(t *testing.T) *socks5Proxy {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start proxy: %v", err)
	}
	p := &socks5Proxy{listener: listener}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go p.handle(conn)
		}
	}()
	return p
}

func (p *socks5Proxy) handle(conn net.Conn) {
	defer conn.Close()

	greeting := make([]byte, 2)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		return
	}
	methods := make([]byte, int(greeting[1]))
	if _, err := io.ReadFull(conn, methods); err != nil {
		return
	}
	if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
		return
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	var host string
	switch header[3] {
	case 0x01:
		ip := make([]byte, 4)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case 0x03:
		n := make([]byte, 1)
		if _, err := io.ReadFull(conn, n); err != nil {
			return
		}
		name := make([]byte, int(n[0]))
		if _, err := io.ReadFull(conn, name); err != nil {
			return
		}
		host = string(name)
	default:
		return
	}
	port := make([]byte, 2)
	if _, err := io.ReadFull(conn, port); err != nil {
		return
	}

	target, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(binary.BigEndian.Uint16(port))))) //nolint:noctx // test code
	if err != nil {
		_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}
	defer target.Close()
	p.connects.Add(1)

	if _, err := conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
		return
	}

	done := make(chan struct{}, 2)
	go func() { _, _ = io.Copy(target, conn); done <- struct{}{} }()
	go func() { _, _ = io.Copy(conn, target); done <- struct{}{} }()
	<-done
}

// TestHTTPClientThroughProxy tests that requests travel through the proxy.
func TestHTTPClientThroughProxy(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ExitAddress 1.2.3.4 2024-01-01 00:00:00\n"))
	}))
	t.Cleanup(upstream.Close)

	p := startSOCKS5Proxy(t)
	client, err := NewClient(p.listener.Addr().String(), 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	httpClient := client.HTTPClient()
	if httpClient.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", httpClient.Timeout)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, upstream.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("request through proxy failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "ExitAddress 1.2.3.4 2024-01-01 00:00:00\n" {
		t.Errorf("unexpected body %q", body)
	}
	if p.connects.Load() == 0 {
		t.Error("expected the request to go through the proxy")
	}
}

// TestTransport tests the transport settings.
func TestTransport(t *testing.T) {
	t.Parallel()

	client, err := NewClient("127.0.0.1:9050", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	transport := client.Transport()
	if transport.DialContext == nil {
		t.Error("expected proxy dialer")
	}
	if transport.TLSClientConfig != nil && transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("certificate verification must stay on")
	}
}

// TestDialContext tests dialing through an unreachable proxy.
func TestDialContext(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	client, err := NewClient(addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := client.DialContext(ctx, "tcp", "example.com:443"); err == nil {
		t.Error("expected error for unreachable proxy")
	}
}

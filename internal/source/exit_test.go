package source

import (
	"errors"
	"strings"
	"testing"
)

// TestParseExitAddresses tests parsing of the exit list format.
func TestParseExitAddresses(t *testing.T) {
	t.Parallel()

	t.Run("keeps source order and joins timestamp fields", func(t *testing.T) {
		t.Parallel()

		body := "ExitAddress 1.2.3.4 2024-01-01 00:00:00\nExitAddress 5.6.7.8 2024-01-01 00:00:01\n"
		addrs, err := ParseExitAddresses([]byte(body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(addrs) != 2 {
			t.Fatalf("got %d addresses, want 2", len(addrs))
		}
		if addrs[0].IP != "1.2.3.4" || addrs[1].IP != "5.6.7.8" {
			t.Errorf("unexpected order: %+v", addrs)
		}
		if addrs[0].LastSeen != "2024-01-01 00:00:00" {
			t.Errorf("LastSeen = %q, want %q", addrs[0].LastSeen, "2024-01-01 00:00:00")
		}
	})

	t.Run("ignores non keyword lines", func(t *testing.T) {
		t.Parallel()

		body := strings.Join([]string{
			"ExitNode 0011BD2485AD45D984EC4159C88FC066E5E3300E",
			"Published 2024-01-01 10:00:00",
			"LastStatus 2024-01-01 11:00:00",
			"ExitAddress 9.9.9.9   2024-01-01   12:00:00",
			"",
			"ExitAddressX 8.8.8.8 2024-01-01 12:00:00",
		}, "\n")

		addrs, err := ParseExitAddresses([]byte(body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(addrs) != 1 {
			t.Fatalf("got %d addresses, want 1", len(addrs))
		}
		if addrs[0].LastSeen != "2024-01-01 12:00:00" {
			t.Errorf("LastSeen = %q, want single spaced timestamp", addrs[0].LastSeen)
		}
	})

	t.Run("zero matching lines is a valid empty list", func(t *testing.T) {
		t.Parallel()

		addrs, err := ParseExitAddresses([]byte("nothing here\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addrs == nil || len(addrs) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", addrs)
		}
	})

	t.Run("lines without address or timestamp are skipped", func(t *testing.T) {
		t.Parallel()

		body := strings.Join([]string{
			"ExitAddress",
			"ExitAddress 1.1.1.1",
			"ExitAddress 2.2.2.2 2024-01-01 00:00:00",
		}, "\n")
		addrs, err := ParseExitAddresses([]byte(body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(addrs) != 1 || addrs[0].IP != "2.2.2.2" || addrs[0].LastSeen != "2024-01-01 00:00:00" {
			t.Errorf("unexpected result: %+v", addrs)
		}
	})

	t.Run("overlong line is a parse error", func(t *testing.T) {
		t.Parallel()

		body := "ExitAddress 1.1.1.1 " + strings.Repeat("x", maxExitLineSize+1)
		_, err := ParseExitAddresses([]byte(body))
		if !errors.Is(err, ErrParse) {
			t.Errorf("expected ErrParse, got %v", err)
		}
	})
}

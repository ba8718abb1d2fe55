package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/tornodes/internal/model"
)

// File names of the durable exit snapshot.
const (
	// ExitListFile holds one IP per line.
	ExitListFile = "tor_exit_cache.txt"

	// ExitAnnotatedFile holds "IP # Last seen: TIMESTAMP" lines.
	ExitAnnotatedFile = "tor_exit_cache_detailed.txt"

	// ExitTimestampFile holds the save time in seconds since the epoch.
	ExitTimestampFile = "tor_exit_timestamp.txt"
)

// lastSeenSeparator joins the IP and its timestamp in ExitAnnotatedFile.
const lastSeenSeparator = " # Last seen: "

// errNoDurableState marks an absent or untrusted exit snapshot on disk.
var errNoDurableState = errors.New("no durable exit snapshot")

// exitFiles reads and writes the durable exit snapshot in one directory.
type exitFiles struct {
	dir string

	// rename defaults to os.Rename.
	rename func(oldpath, newpath string) error
}

func (f exitFiles) move(oldpath, newpath string) error {
	if f.rename != nil {
		return f.rename(oldpath, newpath)
	}
	return os.Rename(oldpath, newpath)
}

func (f exitFiles) path(name string) string {
	return filepath.Join(f.dir, name)
}

// load reads the durable snapshot. It returns errNoDurableState when the
// list or the timestamp is missing, or the timestamp cannot be parsed; any
// other read failure is returned as is.
func (f exitFiles) load() ([]model.ExitAddress, time.Time, error) {
	raw, err := os.ReadFile(f.path(ExitTimestampFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, time.Time{}, errNoDurableState
		}
		return nil, time.Time{}, err
	}
	updated, err := parseTimestamp(string(raw))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %w", errNoDurableState, err)
	}

	list, err := os.ReadFile(f.path(ExitListFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, time.Time{}, errNoDurableState
		}
		return nil, time.Time{}, err
	}
	ips := nonEmptyLines(list)

	addrs := make([]model.ExitAddress, len(ips))
	for i, ip := range ips {
		addrs[i] = model.ExitAddress{IP: ip}
	}

	// The annotated file only contributes timestamps, and only when it
	// describes exactly the same addresses as the list.
	annotated, err := os.ReadFile(f.path(ExitAnnotatedFile))
	if err == nil {
		if withSeen := parseAnnotated(annotated); sameIPs(withSeen, addrs) {
			addrs = withSeen
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, time.Time{}, err
	}

	return addrs, updated, nil
}

// save writes all three files through temporary files. Nothing is renamed
// unless every temporary file was written and synced.
//
// The current files are moved to backups before the new ones are put in
// place, the timestamp first. If any step fails the backups are moved back.
// When even that fails, the timestamp is left missing and load reports
// errNoDurableState instead of pairing a new list with an old timestamp.
func (f exitFiles) save(addrs []model.ExitAddress, at time.Time) error {
	var list, annotated bytes.Buffer
	for _, a := range addrs {
		list.WriteString(a.IP)
		list.WriteByte('\n')
		annotated.WriteString(a.IP)
		annotated.WriteString(lastSeenSeparator)
		annotated.WriteString(a.LastSeen)
		annotated.WriteByte('\n')
	}

	// Order matters: the timestamp validates the lists, so it goes last.
	contents := []struct {
		name string
		data []byte
	}{
		{ExitListFile, list.Bytes()},
		{ExitAnnotatedFile, annotated.Bytes()},
		{ExitTimestampFile, []byte(formatTimestamp(at))},
	}

	temps := make([]string, 0, len(contents))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp) //nolint:errcheck // best effort cleanup
		}
	}

	for _, c := range contents {
		tmp, err := writeTemp(f.dir, c.name, c.data)
		if err != nil {
			cleanup()
			return err
		}
		temps = append(temps, tmp)
	}

	backups, err := f.backup(ExitTimestampFile, ExitListFile, ExitAnnotatedFile)
	if err != nil {
		cleanup()
		return errors.Join(err, f.restore(backups))
	}

	for i, c := range contents {
		if err := f.move(temps[i], f.path(c.name)); err != nil {
			cleanup()
			for _, placed := range contents[:i] {
				_ = os.Remove(f.path(placed.name)) //nolint:errcheck // the backup replaces it
			}
			return errors.Join(
				fmt.Errorf("failed to replace %s: %w", c.name, err),
				f.restore(backups),
			)
		}
	}

	for _, b := range backups {
		_ = os.RemoveAll(b.saved) //nolint:errcheck // best effort cleanup
	}
	return nil
}

// savedFile is a current file moved aside by backup.
type savedFile struct {
	name  string
	saved string
}

// backup moves the existing files among names to hidden backup names, in
// order. Missing files are skipped. The files moved so far are returned
// even on error.
func (f exitFiles) backup(names ...string) ([]savedFile, error) {
	var backups []savedFile
	for _, name := range names {
		cur := f.path(name)
		if _, err := os.Lstat(cur); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return backups, fmt.Errorf("failed to back up %s: %w", name, err)
		}
		saved := f.path("." + name + ".bak")
		_ = os.RemoveAll(saved) //nolint:errcheck // stale backup from an interrupted save
		if err := f.move(cur, saved); err != nil {
			return backups, fmt.Errorf("failed to back up %s: %w", name, err)
		}
		backups = append(backups, savedFile{name: name, saved: saved})
	}
	return backups, nil
}

// restore moves backups back in reverse order, so the timestamp returns
// only after the lists it validates.
func (f exitFiles) restore(backups []savedFile) error {
	var errs []error
	for i := len(backups) - 1; i >= 0; i-- {
		b := backups[i]
		if err := f.move(b.saved, f.path(b.name)); err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %s: %w", b.name, err))
		}
	}
	return errors.Join(errs...)
}

// writeTemp writes data to a new temporary file next to name and syncs it.
func writeTemp(dir, name string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file for %s: %w", name, err)
	}
	path := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()      //nolint:errcheck // already failing
		_ = os.Remove(path) //nolint:errcheck // best effort cleanup
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()      //nolint:errcheck // already failing
		_ = os.Remove(path) //nolint:errcheck // best effort cleanup
		return "", fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(path) //nolint:errcheck // best effort cleanup
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Chmod(path, 0o644); err != nil { //nolint:gosec // the exit list is public data
		_ = os.Remove(path) //nolint:errcheck // best effort cleanup
		return "", fmt.Errorf("failed to chmod %s: %w", name, err)
	}
	return path, nil
}

// formatTimestamp renders seconds since the epoch with microsecond precision.
func formatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}

// parseTimestamp accepts the decimal seconds written by formatTimestamp,
// including integer values. Plain decimals are parsed digit by digit so the
// microseconds survive; other float forms fall back to ParseFloat.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, ok := parseDecimalSeconds(s); ok {
		return t, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).Truncate(time.Microsecond), nil
}

// parseDecimalSeconds parses "SECONDS[.FRACTION]" made of ASCII digits only.
func parseDecimalSeconds(s string) (time.Time, bool) {
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || !allDigits(whole) || !allDigits(frac) {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	const microDigits = 6
	if len(frac) > microDigits {
		frac = frac[:microDigits]
	}
	frac += strings.Repeat("0", microDigits-len(frac))
	usec, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, usec*int64(time.Microsecond)), true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// nonEmptyLines splits data into trimmed, non-empty lines.
func nonEmptyLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// parseAnnotated reads "IP # Last seen: TIMESTAMP" lines.
func parseAnnotated(data []byte) []model.ExitAddress {
	lines := nonEmptyLines(data)
	addrs := make([]model.ExitAddress, len(lines))
	for i, line := range lines {
		ip, seen, _ := strings.Cut(line, strings.TrimSpace(lastSeenSeparator))
		addrs[i] = model.ExitAddress{
			IP:       strings.TrimSpace(ip),
			LastSeen: strings.TrimSpace(seen),
		}
	}
	return addrs
}

func sameIPs(a, b []model.ExitAddress) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].IP != b[i].IP {
			return false
		}
	}
	return true
}

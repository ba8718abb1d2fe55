package source

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/nao1215/tornodes/internal/model"
)

// exitAddressKeyword starts every address line of the exit list:
//
//	ExitAddress 1.2.3.4 2024-01-01 00:00:00
const exitAddressKeyword = "ExitAddress"

// maxExitLineSize bounds a single exit list line.
const maxExitLineSize = 1 << 20

// ParseExitAddresses extracts the ExitAddress lines of an exit list in
// document order. Lines with any other leading token are ignored, and so
// are ExitAddress lines without both an IP and a timestamp.
// The timestamp is every field after the IP joined by a single space.
func ParseExitAddresses(body []byte) ([]model.ExitAddress, error) {
	addrs := make([]model.ExitAddress, 0)

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), maxExitLineSize)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[0] != exitAddressKeyword {
			continue
		}
		addrs = append(addrs, model.ExitAddress{
			IP:       fields[1],
			LastSeen: strings.Join(fields[2:], " "),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: exit list: %w", ErrParse, err)
	}

	return addrs, nil
}

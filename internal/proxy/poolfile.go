package proxy

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	"lukechampine.com/blake3"
)

// Pool is a loaded proxy list plus the checksum it was loaded under, so a
// later reload can detect a no-op refresh and skip resetting the rotation
// cursor.
type Pool struct {
	Proxies  []string
	checksum [32]byte
}

// LoadPoolFile reads one proxy URL per line from path, skipping blank
// lines and '#'-prefixed comments.
func LoadPoolFile(path string) (Pool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pool{}, err
	}
	return parsePool(raw), nil
}

func parsePool(raw []byte) Pool {
	var proxies []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
	}
	return Pool{Proxies: proxies, checksum: blake3.Sum256(raw)}
}

// Changed reports whether reloading path would produce a pool with a
// different checksum than p — a cheap way to skip a cursor reset on a
// no-op config refresh.
func (p Pool) Changed(path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return blake3.Sum256(raw) != p.checksum, nil
}

package system

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

var CPUInfoFile = "/proc/cpuinfo"

// HasCPUFlag reports whether every processor listed in /proc/cpuinfo
// advertises the given feature flag (e.g. "avx").
func HasCPUFlag(flag string) (bool, error) {
	file, err := os.Open(CPUInfoFile)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", CPUInfoFile, err)
	}
	defer file.Close()

	seen := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "flags") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		seen = true

		found := false
		for _, f := range strings.Fields(parts[1]) {
			if f == flag {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("error reading %s: %w", CPUInfoFile, err)
	}
	if !seen {
		return false, fmt.Errorf("no CPU flags found in %s", CPUInfoFile)
	}
	return true, nil
}

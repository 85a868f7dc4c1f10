package system

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/omada-community/omada-bootstrap/internal/utils/logger"
)

var OsReleaseFile = "/etc/os-release"

// OsRelease contains information about the Linux OS distribution,
// parsed from /etc/os-release.
type OsRelease struct {
	Name       string   // Distribution name (e.g. "Ubuntu")
	PrettyName string   // Full name with version (e.g. "Ubuntu 22.04.3 LTS")
	Version    string   // VERSION_ID (e.g. "22.04")
	ID         string   // Distribution ID (e.g. "ubuntu")
	IDLike     []string // Related distributions (e.g. ["debian"])
}

// DetectOsDistribution detects the underlying Linux OS distribution by
// parsing /etc/os-release.
func DetectOsDistribution() (*OsRelease, error) {
	if _, err := os.Stat(OsReleaseFile); err != nil {
		return nil, fmt.Errorf("file %s not found: %w", OsReleaseFile, err)
	}

	file, err := os.Open(OsReleaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", OsReleaseFile, err)
	}
	defer file.Close()

	osInfo := &OsRelease{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")

		switch key {
		case "NAME":
			osInfo.Name = value
		case "PRETTY_NAME":
			osInfo.PrettyName = value
		case "VERSION_ID":
			osInfo.Version = value
		case "ID":
			osInfo.ID = strings.ToLower(value)
		case "ID_LIKE":
			osInfo.IDLike = strings.Fields(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", OsReleaseFile, err)
	}

	logger.Logger().Infof("Detected OS distribution: %s (ID: %s, Version: %s)",
		osInfo.PrettyName, osInfo.ID, osInfo.Version)

	return osInfo, nil
}

// IsPrivileged reports whether the process runs with root privileges.
func IsPrivileged() bool {
	return os.Geteuid() == 0
}

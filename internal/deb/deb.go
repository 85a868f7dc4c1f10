// Package deb drives dpkg and apt against the host package database.
package deb

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/omada-community/omada-bootstrap/internal/utils/logger"
	"github.com/omada-community/omada-bootstrap/internal/utils/shell"
)

// FindInstaller scans the top level of dir for exactly one file matching
// glob. Zero matches is an error, and so is more than one: picking an
// arbitrary installer from an ambiguous archive is worse than failing.
func FindInstaller(dir, glob string) (string, error) {
	log := logger.Logger()

	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return "", fmt.Errorf("bad installer pattern %q: %w", glob, err)
	}

	// Globbing also matches directories; keep regular files only.
	files := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}

	switch len(files) {
	case 1:
		log.Infof("Found installer %s", files[0])
		return files[0], nil
	case 0:
		listDirContents(dir)
		return "", fmt.Errorf("no installer matching %q found in %s", glob, dir)
	default:
		return "", fmt.Errorf("multiple installers matching %q found in %s: %v", glob, dir, files)
	}
}

// listDirContents logs the directory listing so a failed discovery leaves
// enough diagnostics to see what the archive actually contained.
func listDirContents(dir string) {
	log := logger.Logger()
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Errorf("Failed to list %s: %v", dir, err)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	log.Errorf("Contents of %s: %s", dir, strings.Join(names, " "))
}

var versionPattern = regexp.MustCompile(`v\d+(\.\d+)+`)

// ExtractVersion derives a human-readable version token from the installer
// filename, e.g. "v5.15.24.14" from
// "omada_v5.15.24.14_linux_x64_20250512094910.deb". The value is used only
// in log output, so parse failure yields "unknown" rather than an error.
func ExtractVersion(filename string) string {
	base := filepath.Base(filename)

	if m := versionPattern.FindString(base); m != "" {
		return m
	}

	// Positional fallback: vendor filenames put the version in the second
	// underscore-separated field.
	fields := strings.Split(strings.TrimSuffix(base, filepath.Ext(base)), "_")
	if len(fields) >= 2 && fields[1] != "" {
		return fields[1]
	}

	return "unknown"
}

// InstallPackage installs a single package from the configured
// repositories, assuming an unattended run.
func InstallPackage(name string) error {
	env := []string{"DEBIAN_FRONTEND=noninteractive"}
	if _, err := shell.ExecCmdWithStream(fmt.Sprintf("apt-get install -y %s", name), env); err != nil {
		return fmt.Errorf("failed to install %s: %w", name, err)
	}
	return nil
}

// InstallPrerequisites installs the helper tools that do not already
// resolve on PATH. The first attempt runs quietly; if it fails, one verbose
// retry surfaces apt's own diagnostics before the failure is reported.
func InstallPrerequisites(tools []string) error {
	log := logger.Logger()

	missing := make([]string, 0, len(tools))
	for _, tool := range tools {
		if shell.IsCommandExist(tool) {
			log.Debugf("Prerequisite %s already present", tool)
			continue
		}
		missing = append(missing, tool)
	}
	if len(missing) == 0 {
		log.Infof("All prerequisite tools already installed")
		return nil
	}

	env := []string{"DEBIAN_FRONTEND=noninteractive"}
	cmd := fmt.Sprintf("apt-get install -y %s", strings.Join(missing, " "))

	if _, err := shell.ExecCmdSilent(cmd, env); err == nil {
		return nil
	}

	log.Warnf("Prerequisite install failed, retrying with verbose output")
	if _, err := shell.ExecCmdWithStream(cmd, env); err != nil {
		return fmt.Errorf("failed to install prerequisite tools %v: %w", missing, err)
	}
	return nil
}

// InstallDeb invokes dpkg directly on a package file, bypassing dependency
// resolution.
func InstallDeb(file string) error {
	if _, err := shell.ExecCmdWithStream(fmt.Sprintf("dpkg -i %s", file), nil); err != nil {
		return fmt.Errorf("failed to install %s: %w", file, err)
	}
	return nil
}

// RepairDependencies asks apt to install whatever dependencies a
// partially-installed package left unsatisfied.
func RepairDependencies() error {
	env := []string{"DEBIAN_FRONTEND=noninteractive"}
	if _, err := shell.ExecCmdWithStream("apt-get install -f -y", env); err != nil {
		return fmt.Errorf("failed to repair dependencies: %w", err)
	}
	return nil
}

// InstallWithRepair performs the primary install. When the direct dpkg
// invocation fails, it attempts a dependency repair and, only if the repair
// succeeds, retries the install exactly once.
func InstallWithRepair(file string) error {
	log := logger.Logger()

	err := InstallDeb(file)
	if err == nil {
		return nil
	}

	log.Warnf("Primary install failed (%v), attempting dependency repair", err)
	if repairErr := RepairDependencies(); repairErr != nil {
		return fmt.Errorf("install failed and dependency repair did not recover: %w", repairErr)
	}

	if err := InstallDeb(file); err != nil {
		return fmt.Errorf("install failed after dependency repair: %w", err)
	}
	return nil
}

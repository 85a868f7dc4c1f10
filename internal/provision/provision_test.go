package provision

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/omada-community/omada-bootstrap/internal/config"
	"github.com/omada-community/omada-bootstrap/internal/utils/shell"
	"github.com/omada-community/omada-bootstrap/internal/utils/system"
)

// harness replaces every collaborator seam with a recording fake. Individual
// tests override single fields to inject failures.
type harness struct {
	calls []string
	osID  string
	osVer string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{osID: "ubuntu", osVer: "22.04"}

	origPriv, origCPU, origOS := isPrivileged, hasCPUFlag, detectOS
	origIP, origDL, origExtract := primaryIP, downloadFile, extractArchive
	origKey, origSources, origRefresh := importSigningKey, writeSourcesList, refreshIndex
	origPrereq, origPkg, origFind, origRepair := installPrereqs, installPackage, findInstaller, installWithRepair
	origSilent := shell.ExecCmdSilent
	t.Cleanup(func() {
		isPrivileged, hasCPUFlag, detectOS = origPriv, origCPU, origOS
		primaryIP, downloadFile, extractArchive = origIP, origDL, origExtract
		importSigningKey, writeSourcesList, refreshIndex = origKey, origSources, origRefresh
		installPrereqs, installPackage, findInstaller, installWithRepair = origPrereq, origPkg, origFind, origRepair
		shell.ExecCmdSilent = origSilent
	})

	isPrivileged = func() bool { h.record("privilege"); return true }
	hasCPUFlag = func(flag string) (bool, error) { h.record("cpuflag " + flag); return true, nil }
	detectOS = func() (*system.OsRelease, error) {
		h.record("detect-os")
		return &system.OsRelease{
			Name:       "Ubuntu",
			PrettyName: "Ubuntu 22.04.3 LTS",
			ID:         h.osID,
			Version:    h.osVer,
		}, nil
	}
	primaryIP = func() (string, error) { h.record("primary-ip"); return "192.0.2.10", nil }
	downloadFile = func(url, dest string) error {
		h.record("download " + url)
		return os.WriteFile(dest, []byte("archive"), 0644)
	}
	extractArchive = func(archivePath, destDir string) error {
		h.record("extract")
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(destDir, "omada_v5.15.24.14_linux_x64_20250512094910.deb"), []byte("deb"), 0644)
	}
	importSigningKey = func(repo config.Repository) error { h.record("import-key"); return nil }
	writeSourcesList = func(repo config.Repository, codename string) error {
		h.record("write-sources " + codename)
		return nil
	}
	refreshIndex = func() error { h.record("refresh-index"); return nil }
	installPrereqs = func(tools []string) error { h.record("prereqs"); return nil }
	installPackage = func(name string) error { h.record("install " + name); return nil }
	findInstaller = func(dir, glob string) (string, error) {
		h.record("find-installer")
		matches, _ := filepath.Glob(filepath.Join(dir, glob))
		if len(matches) == 0 {
			return "", fmt.Errorf("no installer found")
		}
		return matches[0], nil
	}
	installWithRepair = func(file string) error { h.record("install-controller"); return nil }
	shell.ExecCmdSilent = func(cmdStr string, env []string) (string, error) {
		h.record("exec " + cmdStr)
		return "enabled\n", nil
	}

	return h
}

func (h *harness) record(call string) { h.calls = append(h.calls, call) }

func (h *harness) called(prefix string) bool {
	for _, c := range h.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ScratchRoot = t.TempDir()
	return cfg
}

func runQuiet(cfg *config.Config) (string, error) {
	var buf bytes.Buffer
	err := Run(cfg, Options{Reporter: NewReporterTo(&buf)})
	return buf.String(), err
}

func TestRunSuccess(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig(t)

	out, err := runQuiet(cfg)
	if err != nil {
		t.Fatalf("Run failed: %v\noutput:\n%s", err, out)
	}

	if !h.called("write-sources jammy") {
		t.Errorf("expected jammy codename in repository registration, calls: %v", h.calls)
	}
	if !strings.Contains(out, "v5.15.24.14") {
		t.Errorf("expected extracted version in output:\n%s", out)
	}
	if !strings.Contains(out, "https://192.0.2.10:8043") {
		t.Errorf("expected setup wizard URL in output:\n%s", out)
	}

	// Artifacts must be gone after a successful run.
	entries, err := os.ReadDir(cfg.ScratchRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch root not cleaned, found: %v", entries)
	}
}

func TestRunStepOrder(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig(t)

	if _, err := runQuiet(cfg); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{
		"privilege",
		"cpuflag avx",
		"detect-os",
		"prereqs",
		"import-key",
		"write-sources jammy",
		"refresh-index",
		"download " + cfg.DownloadURL,
		"extract",
		"find-installer",
		"install mongodb-org",
		"install openjdk-21-jre-headless",
		"install jsvc",
		"install-controller",
	}
	idx := 0
	for _, call := range h.calls {
		if idx < len(want) && call == want[idx] {
			idx++
		}
	}
	if idx != len(want) {
		t.Errorf("calls out of order, matched %d of %d:\ngot:  %v\nwant subsequence: %v", idx, len(want), h.calls, want)
	}
}

func TestRunPrivilegeFailureStopsEverything(t *testing.T) {
	h := newHarness(t)
	isPrivileged = func() bool { return false }

	if _, err := runQuiet(testConfig(t)); err == nil {
		t.Fatal("expected error when not privileged")
	}
	if len(h.calls) != 0 {
		t.Errorf("no collaborator may run after privilege failure, got: %v", h.calls)
	}
}

func TestRunCPUFailureStopsBeforeOSDetection(t *testing.T) {
	h := newHarness(t)
	hasCPUFlag = func(flag string) (bool, error) { return false, nil }

	_, err := runQuiet(testConfig(t))
	if err == nil {
		t.Fatal("expected error for missing CPU flag")
	}
	if !strings.Contains(err.Error(), "cpu capability check") {
		t.Errorf("unexpected error: %v", err)
	}
	if h.called("detect-os") || h.called("prereqs") {
		t.Errorf("later steps must not run, got: %v", h.calls)
	}
}

func TestRunUnsupportedReleaseStopsBeforeMutation(t *testing.T) {
	h := newHarness(t)
	h.osVer = "18.04"

	if _, err := runQuiet(testConfig(t)); err == nil {
		t.Fatal("expected error for unsupported release")
	}
	for _, forbidden := range []string{"prereqs", "import-key", "write-sources", "refresh-index", "download", "install"} {
		if h.called(forbidden) {
			t.Errorf("%q must not run for an unsupported release, calls: %v", forbidden, h.calls)
		}
	}
}

func TestRunUnsupportedDistributionStopsBeforeMutation(t *testing.T) {
	h := newHarness(t)
	h.osID = "debian"
	h.osVer = "12"

	if _, err := runQuiet(testConfig(t)); err == nil {
		t.Fatal("expected error for unsupported distribution")
	}
	if h.called("prereqs") || h.called("download") {
		t.Errorf("mutating steps must not run, calls: %v", h.calls)
	}
}

func TestRunExtractionFailureCleansArtifacts(t *testing.T) {
	newHarness(t)
	cfg := testConfig(t)
	extractArchive = func(archivePath, destDir string) error {
		// Leave a partial extraction behind to prove cleanup removes it.
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return err
		}
		os.WriteFile(filepath.Join(destDir, "partial"), []byte("x"), 0644)
		return fmt.Errorf("unexpected end of archive")
	}

	if _, err := runQuiet(cfg); err == nil {
		t.Fatal("expected extraction error")
	}

	entries, err := os.ReadDir(cfg.ScratchRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("archive and extraction directory must be removed, found: %v", entries)
	}
}

func TestRunDependencyInstallFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	installPackage = func(name string) error {
		h.record("install " + name)
		if name == "mongodb-org" {
			return fmt.Errorf("unable to locate package")
		}
		return nil
	}

	if _, err := runQuiet(testConfig(t)); err == nil {
		t.Fatal("expected error for failed dependency install")
	}
	if h.called("install openjdk") || h.called("install-controller") {
		t.Errorf("no further installs after a dependency failure, calls: %v", h.calls)
	}
}

func TestRunKeepArtifacts(t *testing.T) {
	newHarness(t)
	cfg := testConfig(t)

	var buf bytes.Buffer
	if err := Run(cfg, Options{KeepArtifacts: true, Reporter: NewReporterTo(&buf)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entries, err := os.ReadDir(cfg.ScratchRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Error("expected artifacts to remain with KeepArtifacts")
	}
}

func TestRunDownloadFailureCleansArchive(t *testing.T) {
	newHarness(t)
	cfg := testConfig(t)
	downloadFile = func(url, dest string) error {
		return fmt.Errorf("transfer closed with outstanding data")
	}

	if _, err := runQuiet(cfg); err == nil {
		t.Fatal("expected download error")
	}
	entries, _ := os.ReadDir(cfg.ScratchRoot)
	if len(entries) != 0 {
		t.Errorf("scratch root not cleaned, found: %v", entries)
	}
}

package system

import (
	"os"
	"path/filepath"
	"testing"
)

const ubuntuJammyOsRelease = `PRETTY_NAME="Ubuntu 22.04.3 LTS"
NAME="Ubuntu"
VERSION_ID="22.04"
VERSION="22.04.3 LTS (Jammy Jellyfish)"
VERSION_CODENAME=jammy
ID=ubuntu
ID_LIKE=debian
HOME_URL="https://www.ubuntu.com/"
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestDetectOsDistribution(t *testing.T) {
	prev := OsReleaseFile
	OsReleaseFile = writeTempFile(t, "os-release", ubuntuJammyOsRelease)
	t.Cleanup(func() { OsReleaseFile = prev })

	osInfo, err := DetectOsDistribution()
	if err != nil {
		t.Fatalf("DetectOsDistribution failed: %v", err)
	}
	if osInfo.Name != "Ubuntu" {
		t.Errorf("Name = %q, want Ubuntu", osInfo.Name)
	}
	if osInfo.PrettyName != "Ubuntu 22.04.3 LTS" {
		t.Errorf("PrettyName = %q, want Ubuntu 22.04.3 LTS", osInfo.PrettyName)
	}
	if osInfo.Version != "22.04" {
		t.Errorf("Version = %q, want 22.04", osInfo.Version)
	}
	if osInfo.ID != "ubuntu" {
		t.Errorf("ID = %q, want ubuntu", osInfo.ID)
	}
	if len(osInfo.IDLike) != 1 || osInfo.IDLike[0] != "debian" {
		t.Errorf("IDLike = %v, want [debian]", osInfo.IDLike)
	}
}

func TestDetectOsDistributionMissingFile(t *testing.T) {
	prev := OsReleaseFile
	OsReleaseFile = filepath.Join(t.TempDir(), "nope")
	t.Cleanup(func() { OsReleaseFile = prev })

	if _, err := DetectOsDistribution(); err == nil {
		t.Fatal("expected error for missing os-release file")
	}
}

func TestHasCPUFlag(t *testing.T) {
	cpuinfo := `processor	: 0
vendor_id	: GenuineIntel
flags		: fpu vme sse sse2 avx avx2 aes

processor	: 1
vendor_id	: GenuineIntel
flags		: fpu vme sse sse2 avx avx2 aes
`
	prev := CPUInfoFile
	CPUInfoFile = writeTempFile(t, "cpuinfo", cpuinfo)
	t.Cleanup(func() { CPUInfoFile = prev })

	got, err := HasCPUFlag("avx")
	if err != nil {
		t.Fatalf("HasCPUFlag failed: %v", err)
	}
	if !got {
		t.Error("expected avx flag to be present")
	}

	got, err = HasCPUFlag("avx512f")
	if err != nil {
		t.Fatalf("HasCPUFlag failed: %v", err)
	}
	if got {
		t.Error("expected avx512f flag to be absent")
	}
}

func TestHasCPUFlagPartialSupport(t *testing.T) {
	// One core without the flag means the host does not support it.
	cpuinfo := `flags		: fpu sse avx
flags		: fpu sse
`
	prev := CPUInfoFile
	CPUInfoFile = writeTempFile(t, "cpuinfo", cpuinfo)
	t.Cleanup(func() { CPUInfoFile = prev })

	got, err := HasCPUFlag("avx")
	if err != nil {
		t.Fatalf("HasCPUFlag failed: %v", err)
	}
	if got {
		t.Error("expected avx to be unsupported when a core lacks it")
	}
}

func TestHasCPUFlagNoFlagsLines(t *testing.T) {
	prev := CPUInfoFile
	CPUInfoFile = writeTempFile(t, "cpuinfo", "processor : 0\n")
	t.Cleanup(func() { CPUInfoFile = prev })

	if _, err := HasCPUFlag("avx"); err == nil {
		t.Fatal("expected error when cpuinfo has no flags lines")
	}
}

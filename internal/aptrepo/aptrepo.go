// Package aptrepo registers a third-party apt repository: signing key,
// source descriptor and package index.
package aptrepo

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/omada-community/omada-bootstrap/internal/config"
	"github.com/omada-community/omada-bootstrap/internal/utils/logger"
	"github.com/omada-community/omada-bootstrap/internal/utils/network"
	"github.com/omada-community/omada-bootstrap/internal/utils/shell"
)

// ImportSigningKey fetches the repository's ASCII-armored signing key,
// verifies that it parses into at least one key, and writes the dearmored
// keyring to the configured path. An existing keyring is overwritten, so
// re-running the installer never duplicates trust entries.
func ImportSigningKey(repo config.Repository) error {
	log := logger.Logger()
	log.Infof("Fetching repository signing key from %s", repo.KeyURL)

	resp, err := network.Client.Get(repo.KeyURL)
	if err != nil {
		return fmt.Errorf("failed to fetch signing key %s: %w", repo.KeyURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch signing key %s: bad status: %s", repo.KeyURL, resp.Status)
	}

	keyring, err := DearmorKey(resp.Body)
	if err != nil {
		return fmt.Errorf("signing key from %s is not usable: %w", repo.KeyURL, err)
	}

	if err := os.MkdirAll(filepath.Dir(repo.KeyringPath), 0755); err != nil {
		return fmt.Errorf("failed to create keyring directory: %w", err)
	}
	if err := os.WriteFile(repo.KeyringPath, keyring, 0644); err != nil {
		return fmt.Errorf("failed to write keyring %s: %w", repo.KeyringPath, err)
	}

	log.Infof("Wrote repository keyring to %s", repo.KeyringPath)
	return nil
}

// DearmorKey parses an ASCII-armored public keyring and returns its binary
// form, the format apt expects under /usr/share/keyrings.
func DearmorKey(r io.Reader) ([]byte, error) {
	entities, err := openpgp.ReadArmoredKeyRing(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse armored keyring: %w", err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("armored input contains no keys")
	}

	var buf bytes.Buffer
	for _, entity := range entities {
		if err := entity.Serialize(&buf); err != nil {
			return nil, fmt.Errorf("failed to serialize key %X: %w", entity.PrimaryKey.Fingerprint, err)
		}
	}
	return buf.Bytes(), nil
}

// SourcesLine renders the one-line source entry referencing the resolved
// codename and the signed-by keyring.
func SourcesLine(repo config.Repository, codename string) string {
	opts := fmt.Sprintf("signed-by=%s", repo.KeyringPath)
	if len(repo.Architectures) > 0 {
		opts = fmt.Sprintf("arch=%s %s", strings.Join(repo.Architectures, ","), opts)
	}
	suite := fmt.Sprintf(repo.SuiteTemplate, codename)
	line := fmt.Sprintf("deb [ %s ] %s %s", opts, repo.URL, suite)
	if repo.Component != "" {
		line += " " + repo.Component
	}
	return line
}

// WriteSourcesList writes the repository-source descriptor, replacing any
// previous version of the file.
func WriteSourcesList(repo config.Repository, codename string) error {
	log := logger.Logger()
	line := SourcesLine(repo, codename) + "\n"

	if err := os.MkdirAll(filepath.Dir(repo.SourcesListPath), 0755); err != nil {
		return fmt.Errorf("failed to create sources directory: %w", err)
	}
	if err := os.WriteFile(repo.SourcesListPath, []byte(line), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", repo.SourcesListPath, err)
	}

	log.Infof("Wrote repository source %s", repo.SourcesListPath)
	return nil
}

// RefreshIndex updates the package index. Every later install depends on a
// correct index, so a refresh failure is an error, not a warning.
func RefreshIndex() error {
	if _, err := shell.ExecCmd("apt-get update", nil); err != nil {
		return fmt.Errorf("failed to refresh package index: %w", err)
	}
	return nil
}

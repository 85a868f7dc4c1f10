package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/omada-community/omada-bootstrap/internal/config/validate"
)

//go:embed schema.json
var configSchema []byte

// Repository describes the third-party apt repository the database engine
// is installed from.
type Repository struct {
	// KeyURL is where the ASCII-armored signing key is fetched from.
	KeyURL string `yaml:"keyUrl" json:"keyUrl"`
	// KeyringPath is where the dearmored keyring is written.
	KeyringPath string `yaml:"keyringPath" json:"keyringPath"`
	// SourcesListPath is the repository-source descriptor under
	// /etc/apt/sources.list.d.
	SourcesListPath string `yaml:"sourcesListPath" json:"sourcesListPath"`
	// URL is the repository base URL.
	URL string `yaml:"url" json:"url"`
	// SuiteTemplate builds the suite path; the %s slot receives the
	// distribution codename (e.g. "%s/mongodb-org/8.0").
	SuiteTemplate string `yaml:"suiteTemplate" json:"suiteTemplate"`
	// Component is the repository component (e.g. "multiverse").
	Component string `yaml:"component" json:"component"`
	// Architectures restricts the source entry, empty means unrestricted.
	Architectures []string `yaml:"architectures,omitempty" json:"architectures,omitempty"`
}

// Config holds everything the provisioning run needs. Compiled-in defaults
// track the current controller release train; a YAML file can override any
// field for fleets that pin mirrors or package versions.
type Config struct {
	// DownloadURL is the vendor archive containing the controller installer.
	DownloadURL string `yaml:"downloadUrl" json:"downloadUrl"`
	// InstallerGlob matches the installer file inside the extracted archive.
	InstallerGlob string `yaml:"installerGlob" json:"installerGlob"`
	// ScratchRoot is where the archive and extraction directory live during
	// the run. Both are removed before exit.
	ScratchRoot string `yaml:"scratchRoot" json:"scratchRoot"`
	// RequiredCPUFlag must be advertised by every core; the database engine
	// will not start without it.
	RequiredCPUFlag string `yaml:"requiredCpuFlag" json:"requiredCpuFlag"`
	// PrerequisiteTools are installed up front via the package manager.
	PrerequisiteTools []string `yaml:"prerequisiteTools" json:"prerequisiteTools"`
	// DependencyPackages are installed in order before the controller itself.
	DependencyPackages []string `yaml:"dependencyPackages" json:"dependencyPackages"`
	// Repository is the apt repository carrying the database engine.
	Repository Repository `yaml:"repository" json:"repository"`
	// Distributions maps a supported VERSION_ID to its codename token.
	Distributions map[string]string `yaml:"distributions" json:"distributions"`
	// ControllerPort is the HTTPS port of the web setup wizard.
	ControllerPort int `yaml:"controllerPort" json:"controllerPort"`
	// ServiceName is the systemd unit the controller package registers.
	ServiceName string `yaml:"serviceName" json:"serviceName"`
}

// Default returns the compiled-in configuration for the Omada 5.15
// release train on Ubuntu LTS hosts.
func Default() *Config {
	return &Config{
		DownloadURL:       "https://static.tp-link.com/upload/software/2025/202505/20250512/omada_v5.15.24.14_linux_x64_20250512094910.tar.gz",
		InstallerGlob:     "omada*.deb",
		ScratchRoot:       os.TempDir(),
		RequiredCPUFlag:   "avx",
		PrerequisiteTools: []string{"curl", "gnupg"},
		DependencyPackages: []string{
			"mongodb-org",
			"openjdk-21-jre-headless",
			"jsvc",
		},
		Repository: Repository{
			KeyURL:          "https://www.mongodb.org/static/pgp/server-8.0.asc",
			KeyringPath:     "/usr/share/keyrings/mongodb-server-8.0.gpg",
			SourcesListPath: "/etc/apt/sources.list.d/mongodb-org-8.0.list",
			URL:             "https://repo.mongodb.org/apt/ubuntu",
			SuiteTemplate:   "%s/mongodb-org/8.0",
			Component:       "multiverse",
			Architectures:   []string{"amd64", "arm64"},
		},
		Distributions: map[string]string{
			"20.04": "focal",
			"22.04": "jammy",
			"24.04": "noble",
		},
		ControllerPort: 8043,
		ServiceName:    "tpeap",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults unchanged. The merged result is validated
// against the embedded schema.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := validate.ValidateAgainstSchema("config", configSchema, data); err != nil {
			return nil, fmt.Errorf("config %s is invalid: %w", path, err)
		}
		// yaml.v3 merges into a pre-populated map, which would only ever let
		// a file add releases. Clear the allow-list when the file carries one
		// so it replaces the defaults, the same way the slice fields do.
		var overrides struct {
			Distributions map[string]string `yaml:"distributions"`
		}
		if err := yaml.Unmarshal(data, &overrides); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if overrides.Distributions != nil {
			cfg.Distributions = nil
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveCodename maps a distribution ID and VERSION_ID to the repository
// codename token. Only the configured allow-list is accepted.
func (c *Config) ResolveCodename(id, version string) (string, error) {
	if id != "ubuntu" {
		return "", fmt.Errorf("unsupported distribution %q (only ubuntu is supported)", id)
	}
	codename, ok := c.Distributions[version]
	if !ok {
		return "", fmt.Errorf("unsupported ubuntu release %q (supported: %v)", version, c.supportedVersions())
	}
	return codename, nil
}

func (c *Config) supportedVersions() []string {
	versions := make([]string, 0, len(c.Distributions))
	for v := range c.Distributions {
		versions = append(versions, v)
	}
	return versions
}

func (c *Config) check() error {
	if c.DownloadURL == "" {
		return fmt.Errorf("downloadUrl must not be empty")
	}
	if c.InstallerGlob == "" {
		return fmt.Errorf("installerGlob must not be empty")
	}
	if len(c.Distributions) == 0 {
		return fmt.Errorf("distributions allow-list must not be empty")
	}
	if c.Repository.SuiteTemplate == "" || c.Repository.URL == "" {
		return fmt.Errorf("repository url and suiteTemplate must not be empty")
	}
	return nil
}

package provision

import (
	"fmt"
	"strings"

	"github.com/omada-community/omada-bootstrap/internal/aptrepo"
	"github.com/omada-community/omada-bootstrap/internal/archive"
	"github.com/omada-community/omada-bootstrap/internal/deb"
	"github.com/omada-community/omada-bootstrap/internal/utils/logger"
	"github.com/omada-community/omada-bootstrap/internal/utils/network"
	"github.com/omada-community/omada-bootstrap/internal/utils/shell"
	"github.com/omada-community/omada-bootstrap/internal/utils/system"
)

// Collaborator seams. Tests substitute these to drive the sequence without
// touching the host.
var (
	isPrivileged      = system.IsPrivileged
	hasCPUFlag        = system.HasCPUFlag
	detectOS          = system.DetectOsDistribution
	primaryIP         = system.PrimaryIP
	downloadFile      = network.DownloadFile
	extractArchive    = archive.Extract
	importSigningKey  = aptrepo.ImportSigningKey
	writeSourcesList  = aptrepo.WriteSourcesList
	refreshIndex      = aptrepo.RefreshIndex
	installPrereqs    = deb.InstallPrerequisites
	installPackage    = deb.InstallPackage
	findInstaller     = deb.FindInstaller
	installWithRepair = deb.InstallWithRepair
)

// Steps returns the provisioning sequence in execution order. Each step is
// a precondition for the next.
func Steps() []Step {
	return []Step{
		{"privilege check", stepPrivilegeCheck},
		{"cpu capability check", stepCPUCheck},
		{"os identification", stepIdentifyOS},
		{"prerequisite tools", stepPrerequisites},
		{"repository registration", stepRegisterRepository},
		{"artifact download", stepDownload},
		{"artifact extraction", stepExtract},
		{"installer discovery", stepDiscoverInstaller},
		{"dependency installs", stepInstallDependencies},
		{"version extraction", stepExtractVersion},
		{"controller install", stepInstallController},
		{"completion report", stepReportCompletion},
	}
}

func stepPrivilegeCheck(c *Context) error {
	if !isPrivileged() {
		return fmt.Errorf("administrative privileges are required, re-run as root")
	}
	return nil
}

func stepCPUCheck(c *Context) error {
	c.report.Action("Checking CPU for required %s support", c.Config.RequiredCPUFlag)
	ok, err := hasCPUFlag(c.Config.RequiredCPUFlag)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("CPU does not support %s, which the database engine requires", c.Config.RequiredCPUFlag)
	}
	return nil
}

func stepIdentifyOS(c *Context) error {
	c.report.Action("Identifying host operating system")
	osInfo, err := detectOS()
	if err != nil {
		return err
	}

	codename, err := c.Config.ResolveCodename(osInfo.ID, osInfo.Version)
	if err != nil {
		return err
	}

	c.OS = osInfo
	c.Codename = codename
	c.report.Info("Detected %s, using repository codename %s", osInfo.PrettyName, codename)
	return nil
}

func stepPrerequisites(c *Context) error {
	c.report.Action("Installing prerequisite tools %v", c.Config.PrerequisiteTools)
	return installPrereqs(c.Config.PrerequisiteTools)
}

func stepRegisterRepository(c *Context) error {
	c.report.Action("Registering %s repository for %s", c.Config.Repository.URL, c.Codename)
	if err := importSigningKey(c.Config.Repository); err != nil {
		return err
	}
	if err := writeSourcesList(c.Config.Repository, c.Codename); err != nil {
		return err
	}
	c.report.Action("Refreshing package index")
	return refreshIndex()
}

func stepDownload(c *Context) error {
	c.scratchPaths()
	c.report.Action("Downloading controller archive")
	return downloadFile(c.Config.DownloadURL, c.ArchivePath)
}

func stepExtract(c *Context) error {
	c.report.Action("Extracting archive to %s", c.ExtractDir)
	return extractArchive(c.ArchivePath, c.ExtractDir)
}

func stepDiscoverInstaller(c *Context) error {
	installer, err := findInstaller(c.ExtractDir, c.Config.InstallerGlob)
	if err != nil {
		return err
	}
	c.InstallerPath = installer
	return nil
}

func stepInstallDependencies(c *Context) error {
	for _, pkg := range c.Config.DependencyPackages {
		c.report.Action("Installing %s", pkg)
		if err := installPackage(pkg); err != nil {
			return err
		}
	}
	return nil
}

func stepExtractVersion(c *Context) error {
	c.Version = deb.ExtractVersion(c.InstallerPath)
	c.report.Info("Controller version %s", c.Version)
	return nil
}

func stepInstallController(c *Context) error {
	c.report.Action("Installing controller package %s", c.InstallerPath)
	return installWithRepair(c.InstallerPath)
}

func stepReportCompletion(c *Context) error {
	log := logger.Logger()

	checkService(c)

	ip, err := primaryIP()
	if err != nil {
		// The install itself succeeded; a missing address only degrades
		// the final hint.
		log.Warnf("Could not determine primary IP: %v", err)
		ip = "<host-address>"
	}

	c.report.Action("Omada controller %s installed successfully", c.Version)
	c.report.Info("Finish setup at https://%s:%d", ip, c.Config.ControllerPort)
	return nil
}

// checkService reports whether the controller service ended up enabled.
// Informational only: service management belongs to the installed package.
func checkService(c *Context) {
	if c.Config.ServiceName == "" {
		return
	}
	out, err := shell.ExecCmdSilent(fmt.Sprintf("systemctl is-enabled %s", c.Config.ServiceName), nil)
	if err != nil {
		c.report.Info("Service %s is not reporting enabled yet", c.Config.ServiceName)
		return
	}
	c.report.Info("Service %s is %s", c.Config.ServiceName, strings.TrimSpace(out))
}

// Package provision runs the ordered installation sequence for the
// controller: host checks, repository registration, artifact handling and
// the package installs themselves.
package provision

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/omada-community/omada-bootstrap/internal/config"
	"github.com/omada-community/omada-bootstrap/internal/utils/logger"
	"github.com/omada-community/omada-bootstrap/internal/utils/system"
)

// Context is the provisioning state threaded through every step. Steps
// read and write named fields; nothing is kept in ambient state.
type Context struct {
	Config *config.Config

	// Host profile, immutable after the identification step.
	OS       *system.OsRelease
	Codename string

	// Package artifact, populated during download/extract and removed
	// from disk on every exit path.
	ArchivePath   string
	ExtractDir    string
	InstallerPath string
	Version       string

	// KeepArtifacts disables cleanup, for debugging a failed run.
	KeepArtifacts bool

	report *Reporter
}

// Step is a named stage of the provisioning sequence. A returned error
// aborts the run.
type Step struct {
	Name string
	Run  func(*Context) error
}

// Options adjusts a provisioning run.
type Options struct {
	// KeepArtifacts leaves the downloaded archive and extraction directory
	// on disk after the run.
	KeepArtifacts bool
	// Reporter overrides the stdout reporter, used by tests.
	Reporter *Reporter
}

// Run executes the provisioning sequence against the local host. It stops
// at the first failing step and always removes the download/extraction
// artifacts before returning, on success and failure alike.
func Run(cfg *config.Config, opts Options) (err error) {
	ctx := &Context{
		Config:        cfg,
		KeepArtifacts: opts.KeepArtifacts,
		report:        opts.Reporter,
	}
	if ctx.report == nil {
		ctx.report = NewReporter()
	}

	defer func() {
		if cleanupErr := ctx.cleanup(); cleanupErr != nil {
			err = multierr.Append(err, cleanupErr)
		}
	}()

	for _, step := range Steps() {
		if stepErr := step.Run(ctx); stepErr != nil {
			ctx.report.Error("%s failed: %v", step.Name, stepErr)
			return fmt.Errorf("%s: %w", step.Name, stepErr)
		}
	}
	return nil
}

// scratchPaths reserves per-run archive and extraction locations under the
// scratch root. The uuid suffix keeps concurrent stale leftovers from
// colliding with this run.
func (c *Context) scratchPaths() {
	runID := uuid.NewString()
	c.ExtractDir = filepath.Join(c.Config.ScratchRoot, "omada-bootstrap-"+runID)
	c.ArchivePath = filepath.Join(c.Config.ScratchRoot, "omada-bootstrap-"+runID+"-"+path.Base(c.Config.DownloadURL))
}

// cleanup removes the archive and the extraction directory. It tolerates
// paths that were never created.
func (c *Context) cleanup() error {
	if c.KeepArtifacts {
		if c.ArchivePath != "" || c.ExtractDir != "" {
			c.report.Info("Keeping artifacts: %s %s", c.ArchivePath, c.ExtractDir)
		}
		return nil
	}

	log := logger.Logger()
	var err error
	if c.ArchivePath != "" {
		if rmErr := os.Remove(c.ArchivePath); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Append(err, fmt.Errorf("failed to remove archive %s: %w", c.ArchivePath, rmErr))
		}
	}
	if c.ExtractDir != "" {
		if rmErr := os.RemoveAll(c.ExtractDir); rmErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to remove extraction directory %s: %w", c.ExtractDir, rmErr))
		}
	}
	if err == nil && (c.ArchivePath != "" || c.ExtractDir != "") {
		log.Debugf("Removed temporary artifacts")
	}
	return err
}

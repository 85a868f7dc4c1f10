package shell

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/omada-community/omada-bootstrap/internal/utils/logger"
)

// ExecFunc is the signature shared by all command runners in this package.
type ExecFunc func(cmdStr string, env []string) (string, error)

// The runners are package-level variables so tests can substitute them.
var (
	// ExecCmd runs a command, captures combined output and logs it.
	ExecCmd ExecFunc = execCmd

	// ExecCmdSilent runs a command and captures combined output without
	// logging it, for commands whose output is only interesting on failure.
	ExecCmdSilent ExecFunc = execCmdSilent

	// ExecCmdWithStream runs a command and streams its output line by line
	// through the logger as it is produced.
	ExecCmdWithStream ExecFunc = execCmdWithStream

	// IsCommandExist reports whether cmd resolves to an executable on PATH.
	IsCommandExist = isCommandExist
)

// getShell returns the preferred shell, falling back to /bin/sh.
func getShell() string {
	shells := []string{"/bin/bash", "/usr/bin/bash", "/bin/sh"}
	for _, sh := range shells {
		if _, err := os.Stat(sh); err == nil {
			return sh
		}
	}
	return "/bin/sh"
}

func isCommandExist(cmd string) bool {
	output, _ := exec.Command(getShell(), "-c", "command -v "+cmd).Output()
	return len(bytes.TrimSpace(output)) > 0
}

func buildCmd(cmdStr string, env []string) *exec.Cmd {
	cmd := exec.Command(getShell(), "-c", cmdStr)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	return cmd
}

func execCmd(cmdStr string, env []string) (string, error) {
	log := logger.Logger()
	log.Debugf("Exec: [%s]", cmdStr)

	output, err := buildCmd(cmdStr, env).CombinedOutput()
	outputStr := string(output)

	if err != nil {
		if outputStr != "" {
			log.Infof(outputStr)
		}
		return outputStr, fmt.Errorf("failed to exec %s: %w", cmdStr, err)
	}
	if outputStr != "" {
		log.Debugf(outputStr)
	}
	return outputStr, nil
}

func execCmdSilent(cmdStr string, env []string) (string, error) {
	log := logger.Logger()
	log.Debugf("Exec (silent): [%s]", cmdStr)

	output, err := buildCmd(cmdStr, env).CombinedOutput()
	outputStr := string(output)
	if err != nil {
		return outputStr, fmt.Errorf("failed to exec %s: %w", cmdStr, err)
	}
	return outputStr, nil
}

func execCmdWithStream(cmdStr string, env []string) (string, error) {
	log := logger.Logger()
	log.Debugf("Exec (stream): [%s]", cmdStr)

	cmd := buildCmd(cmdStr, env)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stdout pipe for command %s: %w", cmdStr, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stderr pipe for command %s: %w", cmdStr, err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start command %s: %w", cmdStr, err)
	}

	var outputStr strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				outputStr.WriteString(str + "\n")
				log.Infof(str)
			}
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				outputStr.WriteString(str + "\n")
				log.Infof(str)
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return outputStr.String(), fmt.Errorf("failed to wait for command %s: %w", cmdStr, err)
	}
	return outputStr.String(), nil
}

package supervisor

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Exec replaces the launcher's process image with the service's command.
// No PID file is written and stdio is inherited. It only returns on failure.
func Exec(svc Service) error {
	if len(svc.Command) == 0 {
		return &LaunchError{Service: svc.Name, Err: ErrNoCommand}
	}

	if svc.Dir != "" {
		if err := os.Chdir(svc.Dir); err != nil {
			return &LaunchError{Service: svc.Name, Command: svc.Command, Err: err}
		}
	}

	path, err := exec.LookPath(svc.Command[0])
	if err != nil {
		return &LaunchError{Service: svc.Name, Command: svc.Command, Err: err}
	}

	env := svc.environ()
	if env == nil {
		env = os.Environ()
	}

	err = unix.Exec(path, svc.Command, env)
	return &LaunchError{Service: svc.Name, Command: svc.Command, Err: fmt.Errorf("execve %s: %w", path, err)}
}

package hardware

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

func readSysfsInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return -1, fmt.Errorf("failed reading %s: %w", path, err)
	}

	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return -1, fmt.Errorf("failed parsing %s: %w", path, err)
	}

	return value, nil
}

func writeSysfs(path, value string) error {
	if err := os.WriteFile(path, []byte(value), 0); err != nil {
		return fmt.Errorf("failed writing %q to %s: %w", value, path, err)
	}
	return nil
}

// CommandRebooter hands control to the firmware updater by running an
// external command, e.g. a script that arms the bootloader and reboots.
type CommandRebooter struct {
	Argv []string
}

func (r CommandRebooter) RebootToBootloader() error {
	if len(r.Argv) == 0 {
		return fmt.Errorf("no bootloader command configured")
	}
	out, err := exec.Command(r.Argv[0], r.Argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", r.Argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// RebootHost restarts the whole board.
func RebootHost() error {
	if err := exec.Command("systemctl", "reboot").Run(); err != nil {
		return fmt.Errorf("failed to reboot: %w", err)
	}
	return nil
}

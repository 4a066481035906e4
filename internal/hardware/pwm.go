package hardware

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// SysfsPWM drives one channel of a kernel PWM chip. Duty is given on the
// full 16-bit scale and mapped onto the configured period.
type SysfsPWM struct {
	chip     int
	channel  int
	periodNs int
	dutyFd   int
	lastDuty uint16
	enabled  bool
}

func NewSysfsPWM(chip, channel, periodNs int) *SysfsPWM {
	if periodNs <= 0 {
		periodNs = DefaultPWMPeriodNs
	}
	return &SysfsPWM{chip: chip, channel: channel, periodNs: periodNs, dutyFd: -1}
}

func (p *SysfsPWM) chipPath() string {
	return fmt.Sprintf("%s/pwmchip%d", PWMSysfsRoot, p.chip)
}

func (p *SysfsPWM) channelDir() string {
	return fmt.Sprintf("%s/pwm%d", p.chipPath(), p.channel)
}

func (p *SysfsPWM) channelPath(attr string) string {
	return p.channelDir() + "/" + attr
}

func (p *SysfsPWM) Init() error {
	if _, err := os.Stat(p.channelDir()); os.IsNotExist(err) {
		if err := writeSysfs(p.chipPath()+"/export", strconv.Itoa(p.channel)); err != nil {
			return err
		}
		// udev needs a moment to fix up permissions on the new channel.
		time.Sleep(50 * time.Millisecond)
	}

	// The duty cycle may never exceed the period, so clear it first.
	if err := writeSysfs(p.channelPath("duty_cycle"), "0"); err != nil {
		return err
	}
	if err := writeSysfs(p.channelPath("period"), strconv.Itoa(p.periodNs)); err != nil {
		return err
	}
	if got, err := readSysfsInt(p.channelPath("period")); err == nil && got != p.periodNs {
		return fmt.Errorf("PWM period is %dns, wanted %dns", got, p.periodNs)
	}
	if err := writeSysfs(p.channelPath("enable"), "1"); err != nil {
		return err
	}
	p.enabled = true

	fd, err := unix.Open(p.channelPath("duty_cycle"), unix.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open duty_cycle: %w", err)
	}
	p.dutyFd = fd
	return nil
}

// DutyNs maps a 16-bit duty onto the period.
func (p *SysfsPWM) DutyNs(duty uint16) int {
	return int(uint64(p.periodNs) * uint64(duty) / math.MaxUint16)
}

func (p *SysfsPWM) SetDuty(duty uint16) error {
	if p.dutyFd < 0 {
		return fmt.Errorf("PWM channel %d not initialized", p.channel)
	}
	if _, err := unix.Pwrite(p.dutyFd, []byte(strconv.Itoa(p.DutyNs(duty))), 0); err != nil {
		return fmt.Errorf("failed to set duty %d: %w", duty, err)
	}
	p.lastDuty = duty
	return nil
}

func (p *SysfsPWM) Duty() uint16 {
	return p.lastDuty
}

// Close stops the motor and disables the channel.
func (p *SysfsPWM) Close() error {
	if p.dutyFd >= 0 {
		p.SetDuty(0)
		unix.Close(p.dutyFd)
		p.dutyFd = -1
	}
	if !p.enabled {
		return nil
	}
	p.enabled = false
	return writeSysfs(p.channelPath("enable"), "0")
}

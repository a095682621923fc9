package port

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
)

var ErrNoMatchingPort = errors.New("no matching USB serial port")

// Swapped out in tests
var listPorts = enumerator.GetDetailedPortsList

// USBPort describes one enumerated USB serial port. Index counts
// ports sharing the same VID:PID pair, in enumeration order.
type USBPort struct {
	VID         string
	PID         string
	Index       int
	Device      string
	Description string
}

func (p USBPort) String() string {
	return fmt.Sprintf("%s:%s:%d (%s) - %s", p.VID, p.PID, p.Index, p.Device, p.Description)
}

// ListUSB enumerates all USB serial ports on the host
func ListUSB() ([]USBPort, error) {
	details, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("port enumeration failed : %w", err)
	}
	counts := map[string]int{}
	var ports []USBPort
	for _, d := range details {
		if !d.IsUSB {
			continue
		}
		vid := strings.ToLower(d.VID)
		pid := strings.ToLower(d.PID)
		key := vid + ":" + pid
		ports = append(ports, USBPort{
			VID:         vid,
			PID:         pid,
			Index:       counts[key],
			Device:      d.Name,
			Description: d.Product,
		})
		counts[key]++
	}
	return ports, nil
}

// Selectors look like "2fe3:0004" or "2fe3:0004:1". Anything that does
// not parse as one is treated as a regular expression matched against
// the rendered port line.
var vidPidRe = regexp.MustCompile(`^([0-9a-fA-F]{4}):([0-9a-fA-F]{4})(?::(\d+))?$`)

// FindUSB resolves a selector to a single USB serial port
func FindUSB(selector string) (USBPort, error) {
	ports, err := ListUSB()
	if err != nil {
		return USBPort{}, err
	}
	if m := vidPidRe.FindStringSubmatch(selector); m != nil {
		vid := strings.ToLower(m[1])
		pid := strings.ToLower(m[2])
		index := 0
		if m[3] != "" {
			index, _ = strconv.Atoi(m[3])
		}
		for _, p := range ports {
			if p.VID == vid && p.PID == pid && p.Index == index {
				return p, nil
			}
		}
		return USBPort{}, fmt.Errorf("%w : %v", ErrNoMatchingPort, selector)
	}
	re, err := regexp.Compile(selector)
	if err != nil {
		return USBPort{}, fmt.Errorf("invalid port selector %q : %w", selector, err)
	}
	for _, p := range ports {
		if re.MatchString(p.String()) {
			return p, nil
		}
	}
	return USBPort{}, fmt.Errorf("%w : %v", ErrNoMatchingPort, selector)
}

// OpenUSB opens the serial port selected by a VID:PID[:index] or
// regex selector
func OpenUSB(selector string, baudRate int) (Port, error) {
	p, err := FindUSB(selector)
	if err != nil {
		return nil, err
	}
	return Open(p.Device, baudRate)
}

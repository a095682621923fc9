package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mcutools/gosmp/pkg/client"
	"github.com/mcutools/gosmp/pkg/config"
	"github.com/mcutools/gosmp/pkg/port"
	"github.com/mcutools/gosmp/pkg/transport"
	log "github.com/sirupsen/logrus"
)

const usage = `usage: smpmgr [options] <command> [args]

commands:
  echo <text>                      round trip a string
  reset                            reboot the device
  taskstats                        per task runtime statistics
  params                           device mcumgr transport parameters
  info [format]                    os / application / bootloader info
  datetime [value]                 read or set the device clock
  list-ports                       enumerate USB serial ports
  image list                       image slot states
  image upload <file> [slot]       upload a firmware image
  image confirm [hash]             confirm the running or given image
  image test <hash>                mark an image for one test boot
  image erase [slot]               erase an image slot
  image slotinfo                   slot layout
  image parse <file>               parse an MCUboot image file
  fs upload <src> <remote>         upload a file
  fs download <remote> <dst>       download a file
  fs stat <name>                   file size
  fs hash <name> [type]            file checksum
  fs supported                     supported checksum types
  fs close                         close an open file
  shell <argv...>                  run a shell command
  stat list                        statistics group names
  stat show <name>                 one statistics group
  zephyr erase-storage             wipe the storage partition
`

func main() {
	serialPath := flag.String("serial", "", "serial port path, e.g. /dev/ttyACM0")
	usbSerial := flag.String("usb-serial", "", "USB serial selector VID:PID[:index] or regex, empty lists ports")
	usbSerialSet := false
	baud := flag.Int("baud", 0, "baud rate")
	device := flag.String("device", "", "named device profile from the configuration file")
	conf := flag.String("conf", defaultConfPath(), "configuration file")
	timeoutMs := flag.Int("timeout", 0, "response timeout in milliseconds")
	frameSize := flag.Int("mtu", 0, "frame size in bytes, 0 keeps the configured size (a configured 0 negotiates with the device)")
	quiet := flag.Bool("quiet", false, "disable progress output")
	verbose := flag.Bool("verbose", false, "verbose output")
	jsonOut := flag.Bool("json", false, "structured JSON output")
	// A bare --usb-serial at the end of the command line carries an
	// empty selector
	if last := os.Args[len(os.Args)-1]; len(os.Args) > 1 && (last == "--usb-serial" || last == "-usb-serial") {
		os.Args = append(os.Args, "")
	}
	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "usb-serial" {
			usbSerialSet = true
		}
	})

	log.SetLevel(log.WarnLevel)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if *serialPath != "" && usbSerialSet {
		log.Error("--serial and --usb-serial are mutually exclusive")
		os.Exit(2)
	}

	// An explicit --usb-serial with no selector lists matching ports,
	// mirroring list-ports
	if usbSerialSet && *usbSerial == "" {
		os.Exit(runListPorts(*jsonOut))
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.Errorf("configuration : %v", err)
		os.Exit(1)
	}
	applyFlags(cfg, *serialPath, *usbSerial, usbSerialSet, *device, *baud, *timeoutMs, *frameSize)

	// Commands that need no device connection
	switch args[0] {
	case "list-ports":
		os.Exit(runListPorts(*jsonOut))
	case "image":
		if len(args) >= 2 && args[1] == "parse" {
			os.Exit(runImageParse(args[2:], *jsonOut))
		}
	}

	c, err := connect(cfg)
	if err != nil {
		log.Errorf("connect : %v", err)
		os.Exit(1)
	}
	defer c.Close()

	if cfg.FrameSize == 0 {
		if err := c.Transport().UseAutoFrameSize(); err != nil {
			log.Warnf("frame size negotiation failed, using default : %v", err)
		}
	}

	code := runCommand(c, args, output{json: *jsonOut, quiet: *quiet})
	os.Exit(code)
}

func defaultConfPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.config/smpmgr.conf"
}

// applyFlags overlays command line flags onto the loaded configuration
func applyFlags(cfg *config.Config, serialPath, usbSelector string, usbSet bool, device string, baud, timeoutMs, frameSize int) {
	if device != "" {
		if dev, err := cfg.Device(device); err == nil {
			cfg.Port = dev.Port
			cfg.USBSelector = dev.USBSelector
			cfg.BaudRate = dev.BaudRate
		} else {
			log.Errorf("%v", err)
			os.Exit(2)
		}
	}
	if serialPath != "" {
		cfg.Port = serialPath
		cfg.USBSelector = ""
	}
	if usbSet {
		cfg.USBSelector = usbSelector
		cfg.Port = ""
	}
	if baud != 0 {
		cfg.BaudRate = baud
	}
	if timeoutMs != 0 {
		cfg.TimeoutMs = timeoutMs
	}
	if frameSize != 0 {
		cfg.FrameSize = frameSize
	}
}

func connect(cfg *config.Config) (*client.Client, error) {
	var p port.Port
	var err error
	switch {
	case cfg.Port != "":
		p, err = port.Open(cfg.Port, cfg.BaudRate)
	case cfg.USBSelector != "":
		p, err = port.OpenUSB(cfg.USBSelector, cfg.BaudRate)
	default:
		return nil, fmt.Errorf("no serial port given, use --serial or --usb-serial")
	}
	if err != nil {
		return nil, err
	}
	tr := transport.New(p, nil)
	tr.SetTimeout(time.Duration(cfg.TimeoutMs) * time.Millisecond)
	if cfg.FrameSize != 0 {
		if err := tr.SetFrameSize(cfg.FrameSize); err != nil {
			tr.Close()
			return nil, err
		}
	}
	c := client.New(tr, nil)
	if err := c.Transport().CheckConnection(); err != nil {
		c.Close()
		return nil, fmt.Errorf("device not answering : %w", err)
	}
	return c, nil
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	log.Errorf("%v", err)
	return 1
}

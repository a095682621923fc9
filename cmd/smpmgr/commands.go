package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mcutools/gosmp/pkg/client"
	"github.com/mcutools/gosmp/pkg/mcuboot"
	"github.com/mcutools/gosmp/pkg/port"
	log "github.com/sirupsen/logrus"
)

type output struct {
	json  bool
	quiet bool
}

// emit prints a result either as JSON or using the plain renderer
func (o output) emit(v any, plain func()) {
	if o.json {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			log.Errorf("%v", err)
			return
		}
		fmt.Println(string(data))
		return
	}
	plain()
}

// progress returns a callback rendering transfer progress, nil when
// quiet
func (o output) progress() client.ProgressFunc {
	if o.quiet || o.json {
		return nil
	}
	return func(done, total int) {
		if total > 0 {
			fmt.Printf("\r%3d%% (%d/%d bytes)", done*100/total, done, total)
		} else {
			fmt.Printf("\r%d bytes", done)
		}
		if done >= total {
			fmt.Println()
		}
	}
}

func runCommand(c *client.Client, args []string, out output) int {
	switch args[0] {
	case "echo":
		if len(args) < 2 {
			return usageError("echo <text>")
		}
		r, err := c.Echo(args[1])
		if err != nil {
			return exitCode(err)
		}
		out.emit(map[string]string{"r": r}, func() { fmt.Println(r) })
		return 0

	case "reset":
		return exitCode(c.Reset())

	case "taskstats":
		stats, err := c.TaskStats()
		if err != nil {
			return exitCode(err)
		}
		out.emit(stats, func() {
			for name, s := range stats {
				fmt.Printf("%-16s prio %3d state %d stack %d/%d runtime %d\n",
					name, s.Priority, s.State, s.StackUse, s.StackSize, s.Runtime)
			}
		})
		return 0

	case "params":
		params, err := c.McuMgrParams()
		if err != nil {
			return exitCode(err)
		}
		out.emit(params, func() {
			fmt.Printf("buffer size %d, count %d\n", params.BufSize, params.BufCount)
		})
		return 0

	case "info":
		format := ""
		if len(args) > 1 {
			format = args[1]
		}
		info, err := c.Info(format)
		if err != nil {
			return exitCode(err)
		}
		out.emit(map[string]string{"output": info}, func() { fmt.Println(info) })
		return 0

	case "datetime":
		if len(args) > 1 {
			return exitCode(c.DatetimeSet(args[1]))
		}
		dt, err := c.DatetimeGet()
		if err != nil {
			return exitCode(err)
		}
		out.emit(map[string]string{"datetime": dt}, func() { fmt.Println(dt) })
		return 0

	case "image":
		return runImage(c, args[1:], out)

	case "fs":
		return runFs(c, args[1:], out)

	case "shell":
		if len(args) < 2 {
			return usageError("shell <argv...>")
		}
		o, err := c.ShellExec(args[1:])
		if o != "" {
			fmt.Println(o)
		}
		return exitCode(err)

	case "stat":
		return runStat(c, args[1:], out)

	case "zephyr":
		if len(args) < 2 || args[1] != "erase-storage" {
			return usageError("zephyr erase-storage")
		}
		return exitCode(c.ZephyrEraseStorage())
	}
	return usageError(args[0])
}

func runImage(c *client.Client, args []string, out output) int {
	if len(args) == 0 {
		return usageError("image <list|upload|confirm|test|erase|slotinfo|parse>")
	}
	switch args[0] {
	case "list":
		images, err := c.ImageList()
		if err != nil {
			return exitCode(err)
		}
		out.emit(images, func() {
			for _, img := range images {
				state := ""
				if img.Active {
					state += " active"
				}
				if img.Confirmed {
					state += " confirmed"
				}
				if img.Pending {
					state += " pending"
				}
				fmt.Printf("slot %d : %s%s hash %x\n", img.Slot, img.Version, state, img.Hash)
			}
		})
		return 0

	case "upload":
		if len(args) < 2 {
			return usageError("image upload <file> [slot]")
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return exitCode(err)
		}
		slot := 0
		if len(args) > 2 {
			if slot, err = strconv.Atoi(args[2]); err != nil {
				return usageError("image upload <file> [slot]")
			}
		}
		if info, err := mcuboot.Parse(data); err == nil {
			log.Infof("uploading image %v (%v bytes)", info.VersionString(), len(data))
		} else {
			log.Warnf("file does not parse as an MCUboot image : %v", err)
		}
		return exitCode(c.ImageUpload(uint32(slot), data, false, out.progress()))

	case "confirm":
		var hash []byte
		if len(args) > 1 {
			h, err := hex.DecodeString(args[1])
			if err != nil {
				return usageError("image confirm [hex hash]")
			}
			hash = h
		}
		images, err := c.ImageConfirm(hash)
		if err != nil {
			return exitCode(err)
		}
		out.emit(images, func() { fmt.Println("confirmed") })
		return 0

	case "test":
		if len(args) < 2 {
			return usageError("image test <hex hash>")
		}
		hash, err := hex.DecodeString(args[1])
		if err != nil {
			return usageError("image test <hex hash>")
		}
		images, err := c.ImageTest(hash)
		if err != nil {
			return exitCode(err)
		}
		out.emit(images, func() { fmt.Println("marked for test boot") })
		return 0

	case "erase":
		slot := 0
		if len(args) > 1 {
			var err error
			if slot, err = strconv.Atoi(args[1]); err != nil {
				return usageError("image erase [slot]")
			}
		}
		return exitCode(c.ImageErase(uint32(slot)))

	case "slotinfo":
		info, err := c.SlotInfo()
		if err != nil {
			return exitCode(err)
		}
		out.emit(info, func() {
			for _, img := range info {
				for _, slot := range img.Slots {
					fmt.Printf("image %d slot %d : %d bytes\n", img.Image, slot.Slot, slot.Size)
				}
			}
		})
		return 0
	}
	return usageError("image " + args[0])
}

func runFs(c *client.Client, args []string, out output) int {
	if len(args) == 0 {
		return usageError("fs <upload|download|stat|hash|close>")
	}
	switch args[0] {
	case "upload":
		if len(args) < 3 {
			return usageError("fs upload <src> <remote>")
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return exitCode(err)
		}
		return exitCode(c.FsUpload(args[2], data, out.progress()))

	case "download":
		if len(args) < 3 {
			return usageError("fs download <remote> <dst>")
		}
		data, err := c.FsDownload(args[1], out.progress())
		if err != nil {
			return exitCode(err)
		}
		dst := args[2]
		// A directory destination keeps the source file name
		if stat, err := os.Stat(dst); err == nil && stat.IsDir() {
			dst = filepath.Join(dst, filepath.Base(args[1]))
		}
		return exitCode(os.WriteFile(dst, data, 0644))

	case "stat":
		if len(args) < 2 {
			return usageError("fs stat <name>")
		}
		size, err := c.FsStatus(args[1])
		if err != nil {
			return exitCode(err)
		}
		out.emit(map[string]uint32{"len": size}, func() { fmt.Printf("%d bytes\n", size) })
		return 0

	case "hash":
		if len(args) < 2 {
			return usageError("fs hash <name> [type]")
		}
		hashType := ""
		if len(args) > 2 {
			hashType = args[2]
		}
		rsp, err := c.FsHash(args[1], hashType)
		if err != nil {
			return exitCode(err)
		}
		out.emit(rsp, func() { fmt.Printf("%s %x (%d bytes)\n", rsp.Type, rsp.Output, rsp.Len) })
		return 0

	case "supported":
		types, err := c.FsSupportedHashes()
		if err != nil {
			return exitCode(err)
		}
		out.emit(types, func() {
			for name, typ := range types {
				fmt.Printf("%s : %d bytes\n", name, typ.Size)
			}
		})
		return 0

	case "close":
		return exitCode(c.FsClose())
	}
	return usageError("fs " + args[0])
}

func runStat(c *client.Client, args []string, out output) int {
	if len(args) == 0 {
		return usageError("stat <list|show>")
	}
	switch args[0] {
	case "list":
		names, err := c.StatList()
		if err != nil {
			return exitCode(err)
		}
		out.emit(names, func() {
			for _, name := range names {
				fmt.Println(name)
			}
		})
		return 0

	case "show":
		if len(args) < 2 {
			return usageError("stat show <name>")
		}
		rsp, err := c.StatShow(args[1])
		if err != nil {
			return exitCode(err)
		}
		out.emit(rsp, func() {
			for field, value := range rsp.Fields {
				fmt.Printf("%s : %d\n", field, value)
			}
		})
		return 0
	}
	return usageError("stat " + args[0])
}

func runListPorts(jsonOut bool) int {
	ports, err := port.ListUSB()
	if err != nil {
		return exitCode(err)
	}
	if jsonOut {
		data, err := json.MarshalIndent(ports, "", "  ")
		if err != nil {
			return exitCode(err)
		}
		fmt.Println(string(data))
		return 0
	}
	for _, p := range ports {
		fmt.Println(p.String())
	}
	return 0
}

func runImageParse(args []string, jsonOut bool) int {
	if len(args) < 1 {
		return usageError("image parse <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return exitCode(err)
	}
	info, err := mcuboot.Parse(data)
	if err != nil {
		return exitCode(err)
	}
	if jsonOut {
		out, err := json.MarshalIndent(map[string]any{
			"version":    info.VersionString(),
			"hash":       hex.EncodeToString(info.Hash),
			"signature":  info.SignatureAlgo,
			"image_size": info.ImageSize,
			"flags":      info.Flags,
			"encrypted":  info.Encrypted(),
		}, "", "  ")
		if err != nil {
			return exitCode(err)
		}
		fmt.Println(string(out))
		return 0
	}
	fmt.Printf("version   : %s\n", info.VersionString())
	fmt.Printf("hash      : %x\n", info.Hash)
	if info.SignatureAlgo != "" {
		fmt.Printf("signature : %s\n", info.SignatureAlgo)
	}
	fmt.Printf("size      : %d bytes (header %d)\n", info.ImageSize, info.HeaderSize)
	fmt.Printf("flags     : 0x%08x\n", info.Flags)
	return 0
}

func usageError(what string) int {
	log.Errorf("invalid usage : %v", what)
	fmt.Fprint(os.Stderr, usage)
	return 2
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/devblok/koruxr/device"
	"github.com/devblok/koruxr/playback"
)

var (
	recording = flag.String("recording", "", "describe a tracking recording")
	devices   = flag.Bool("devices", false, "list the vulkan physical devices and swapchain formats")
)

type recordingInfo struct {
	File      string
	Runtime   string
	Author    string
	FrameRate int
	Frames    int
	Views     int
	Devices   []string
}

func describe(path string) (interface{}, error) {
	rec, err := playback.LoadFile(path)
	if err != nil {
		return nil, err
	}
	info := recordingInfo{
		File:      path,
		Runtime:   rec.Header.Runtime,
		Author:    rec.Header.Author,
		FrameRate: rec.Header.FrameRate,
		Frames:    len(rec.Frames),
		Views:     len(rec.Header.Views),
	}
	for _, d := range rec.Devices() {
		info.Devices = append(info.Devices, d.String())
	}
	return info, nil
}

type devicesInfo struct {
	Devices []device.PhysicalDeviceInfo

	// Formats maps swapchain format names to their Vulkan values
	Formats map[string]int32
}

func physicalDevices() (interface{}, error) {
	dev, err := device.NewVulkanDevice(device.DefaultVulkanApplicationInfo)
	if err != nil {
		return nil, err
	}
	defer dev.Destroy()

	info := devicesInfo{
		Devices: dev.PhysicalDevices(),
		Formats: make(map[string]int32),
	}
	for _, f := range device.Formats() {
		vf, err := device.VulkanFormat(f)
		if err != nil {
			return nil, err
		}
		info.Formats[f.String()] = int32(vf)
	}
	return info, nil
}

func main() {
	flag.Parse()

	var out interface{}
	var err error
	switch {
	case *recording != "":
		out, err = describe(*recording)
	case *devices:
		out, err = physicalDevices()
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Fatal("korucli: failed")
	}

	bytes, err := json.Marshal(out)
	if err != nil {
		log.WithError(err).Fatal("korucli: failed")
	}
	fmt.Printf("%s\n", bytes)
}

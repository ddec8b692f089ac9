package vksgfx

import (
	"fmt"

	"github.com/ibd1279/vks"
	"github.com/xlab/tablewriter"
)

// Describe renders the selected physical device and what its surface
// supports as a table.
func (d *Device) Describe() string {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	props := vks.CPtr(arp, &vks.PhysicalDeviceProperties2{},
		vks.SetDefaultSType,
	)
	d.physicalDevice.GetPhysicalDeviceProperties2(props)

	table := tablewriter.CreateTable()
	table.UTF8Box()
	table.AddTitle("PHYSICAL DEVICE AND SURFACE")
	table.AddRow("Device name", vks.ToString(props.Properties().DeviceName()))
	table.AddRow("Device type", fmt.Sprint(props.Properties().DeviceType()))
	table.AddRow("API version", fmt.Sprint(vks.ApiVersion(props.Properties().ApiVersion())))
	table.AddRow("Driver version", fmt.Sprint(vks.ApiVersion(props.Properties().DriverVersion())))
	table.AddRow("Graphics queue family", d.graphicIndex)
	table.AddRow("Present queue family", d.presentIndex)

	if caps, err := d.Capabilities(); err == nil {
		table.AddSeparator()
		table.AddRow("Image count", fmt.Sprintf("%d - %d", caps.MinImageCount, caps.MaxImageCount))
		table.AddRow("Image size (current)", fmt.Sprintf("%dx%d",
			caps.CurrentExtent.Width, caps.CurrentExtent.Height))
		table.AddRow("Image size (extent)", fmt.Sprintf("%dx%d - %dx%d",
			caps.MinImageExtent.Width, caps.MinImageExtent.Height,
			caps.MaxImageExtent.Width, caps.MaxImageExtent.Height))
	}
	if formats, err := d.Formats(); err == nil {
		table.AddRow("Surface formats", len(formats))
	}
	if modes, err := d.PresentModes(); err == nil {
		table.AddRow("Present modes", fmt.Sprint(modes))
	}
	return table.Render()
}

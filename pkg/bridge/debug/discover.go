package debug

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// AdapterInfo describes a USB serial adapter that can carry the debug UART.
type AdapterInfo struct {
	Description string
	VendorID    uint16
	ProductID   uint16
	Bus         int
	Address     int
}

// Label returns a user-friendly description for the adapter.
func (a AdapterInfo) Label() string {
	if a.Description != "" {
		return a.Description
	}
	return fmt.Sprintf("USB serial %04X:%04X", a.VendorID, a.ProductID)
}

type knownUSBSerial struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownUSBSerials = []knownUSBSerial{
	{VendorID: 0x0403, ProductID: 0x6001, Description: "FTDI FT232R"},
	{VendorID: 0x0403, ProductID: 0x6010, Description: "FTDI FT2232"},
	{VendorID: 0x0403, ProductID: 0x6014, Description: "FTDI FT232H"},
	{VendorID: 0x0403, ProductID: 0x6015, Description: "FTDI FT-X"},
	{VendorID: 0x10c4, ProductID: 0xea60, Description: "Silicon Labs CP210x"},
	{VendorID: 0x067b, ProductID: 0x2303, Description: "Prolific PL2303"},
	{VendorID: 0x1a86, ProductID: 0x7523, Description: "WCH CH340"},
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (AdapterInfo, bool) {
	for _, known := range knownUSBSerials {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return AdapterInfo{
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
				Bus:         desc.Bus,
				Address:     desc.Address,
			}, true
		}
	}
	return AdapterInfo{}, false
}

// DiscoverAdapters enumerates connected USB serial adapters that match known
// VID/PID pairs. No device is opened.
func DiscoverAdapters(ctx context.Context) ([]AdapterInfo, error) {
	var results []AdapterInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}
	return results, nil
}

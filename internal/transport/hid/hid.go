// Package hid implements a concrete keyboard.Transport: it opens a USB
// link to a paired accessory device and registers one HID report
// descriptor per sink (keyboard, NKRO, mouse, consumer, system,
// joystick), then exposes keyboard.Transport's Send* hooks as vendor
// control transfers against the descriptor's assigned HID id — the
// same AOA2-style register/set-descriptor/send-event handshake the
// teacher's aoa package uses, generalized from one phone-accessory
// link to the five report sinks a keyboard core drives each tick.
package hid

import (
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/HopIT-Hub/AmpCore/internal/keyboard"
)

const (
	// VendorID/ProductID are drawn from the pid.codes open-hardware test
	// allocation (https://pid.codes/1209/), the convention most small-run
	// keyboard firmware claims instead of registering its own USB VID.
	VendorID  = 0x1209
	ProductID = 0x0001

	// AOA-style HID control transfer request codes (bRequest values),
	// matching the teacher's aoa package's reqRegisterHID family; a
	// remote-wakeup request is added past that range for this module's
	// SendRemoteWakeup hook, which AOA2 itself has no equivalent of.
	reqRegisterHID   = 54 // ACCESSORY_REGISTER_HID
	reqUnregisterHID = 55 // ACCESSORY_UNREGISTER_HID
	reqSetHIDDesc    = 56 // ACCESSORY_SET_HID_REPORT_DESC
	reqSendHIDEvent  = 57 // ACCESSORY_SEND_HID_EVENT
	reqRemoteWakeup  = 58 // vendor extension: request a USB remote wakeup

	// bmRequestType for every transfer this package issues: host-to-device
	// (0x00) | vendor (0x40) | device recipient (0x00).
	bmRequestTypeOut = 0x40

	controlTimeout = 1000 * time.Millisecond
)

// Descriptor identifies which HID report descriptor a sink registers.
type Descriptor int

const (
	DescKeyboard Descriptor = iota // 6KRO boot-protocol report
	DescNKRO                       // n-key-rollover report
	DescMouse
	DescConsumer
	DescSystem
	DescJoystick
)

func (d Descriptor) String() string {
	switch d {
	case DescKeyboard:
		return "Keyboard (6KRO)"
	case DescNKRO:
		return "Keyboard (NKRO)"
	case DescMouse:
		return "Mouse"
	case DescConsumer:
		return "Consumer Control"
	case DescSystem:
		return "System Control"
	case DescJoystick:
		return "Joystick"
	default:
		return "Unknown"
	}
}

// keyboardDescriptor: {modifier, reserved, keys[6]} boot-protocol report,
// matching report.SixKRO.Bytes's 8-byte layout.
var keyboardDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x06, // Usage (Keyboard)
	0xA1, 0x01, //   Collection (Application)
	0x05, 0x07, //     Usage Page (Keyboard/Keypad)
	0x19, 0xE0, //     Usage Minimum (Left Control)
	0x29, 0xE7, //     Usage Maximum (Right GUI)
	0x15, 0x00, //     Logical Minimum (0)
	0x25, 0x01, //     Logical Maximum (1)
	0x75, 0x01, //     Report Size (1)
	0x95, 0x08, //     Report Count (8)
	0x81, 0x02, //     Input (Data, Variable, Absolute) — modifier byte
	0x95, 0x01, //     Report Count (1)
	0x75, 0x08, //     Report Size (8)
	0x81, 0x01, //     Input (Constant) — reserved byte
	0x95, 0x06, //     Report Count (6)
	0x75, 0x08, //     Report Size (8)
	0x15, 0x00, //     Logical Minimum (0)
	0x26, 0xFF, 0x00, // Logical Maximum (255)
	0x05, 0x07, //     Usage Page (Keyboard/Keypad)
	0x19, 0x00, //     Usage Minimum (0)
	0x29, 0xFF, //     Usage Maximum (255)
	0x81, 0x00, //     Input (Data, Array)
	0xC0, // End Collection
}

// nkroDescriptor: {modifier, bitmap[30]} report, matching
// report.NKRO.Bytes's 1+NKROBytes layout — 240 usages as a one-bit-per-
// key array instead of the boot-protocol's 6-entry key array.
var nkroDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x06, // Usage (Keyboard)
	0xA1, 0x01, //   Collection (Application)
	0x05, 0x07, //     Usage Page (Keyboard/Keypad)
	0x19, 0xE0, //     Usage Minimum (Left Control)
	0x29, 0xE7, //     Usage Maximum (Right GUI)
	0x15, 0x00, //     Logical Minimum (0)
	0x25, 0x01, //     Logical Maximum (1)
	0x75, 0x01, //     Report Size (1)
	0x95, 0x08, //     Report Count (8)
	0x81, 0x02, //     Input (Data, Variable, Absolute) — modifier byte
	0x19, 0x00, //     Usage Minimum (0)
	0x29, 0xEF, //     Usage Maximum (239)
	0x95, 0xF0, //     Report Count (240)
	0x75, 0x01, //     Report Size (1)
	0x81, 0x02, //     Input (Data, Variable, Absolute) — bitmap
	0xC0, // End Collection
}

// mouseDescriptor: {buttons(32 LE), x(32 LE), y(32 LE), v, h}, matching
// report.Mouse.Bytes's 14-byte layout.
var mouseDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x02, // Usage (Mouse)
	0xA1, 0x01, //   Collection (Application)
	0x09, 0x01, //     Usage (Pointer)
	0xA1, 0x00, //     Collection (Physical)
	0x05, 0x09, //       Usage Page (Button)
	0x19, 0x01, //       Usage Minimum (Button 1)
	0x29, 0x20, //       Usage Maximum (Button 32)
	0x15, 0x00, //       Logical Minimum (0)
	0x25, 0x01, //       Logical Maximum (1)
	0x75, 0x01, //       Report Size (1)
	0x95, 0x20, //       Report Count (32)
	0x81, 0x02, //       Input (Data, Variable, Absolute) — button bitmap
	0x05, 0x01, //       Usage Page (Generic Desktop)
	0x09, 0x30, //       Usage (X)
	0x09, 0x31, //       Usage (Y)
	0x16, 0x00, 0x80, //  Logical Minimum (-32768)
	0x26, 0xFF, 0x7F, //  Logical Maximum (32767)
	0x75, 0x20, //       Report Size (32)
	0x95, 0x02, //       Report Count (2)
	0x81, 0x06, //       Input (Data, Variable, Relative) — x, y
	0x09, 0x38, //       Usage (Wheel)
	0x15, 0x80, //       Logical Minimum (-128)
	0x25, 0x7F, //       Logical Maximum (127)
	0x75, 0x08, //       Report Size (8)
	0x95, 0x01, //       Report Count (1)
	0x81, 0x06, //       Input (Data, Variable, Relative) — vertical wheel
	0x05, 0x0C, //       Usage Page (Consumer)
	0x0A, 0x38, 0x02, //  Usage (AC Pan)
	0x75, 0x08, //       Report Size (8)
	0x95, 0x01, //       Report Count (1)
	0x81, 0x06, //       Input (Data, Variable, Relative) — horizontal wheel
	0xC0, //     End Collection
	0xC0, // End Collection
}

// consumerDescriptor: 16-bit little-endian usage array, matching
// report.ExtraKey.Bytes's 2-byte layout.
var consumerDescriptor = []byte{
	0x05, 0x0C, // Usage Page (Consumer)
	0x09, 0x01, // Usage (Consumer Control)
	0xA1, 0x01, //   Collection (Application)
	0x15, 0x00, //     Logical Minimum (0)
	0x26, 0xFF, 0x0F, // Logical Maximum (4095)
	0x19, 0x00, //     Usage Minimum (0)
	0x2A, 0xFF, 0x0F, // Usage Maximum (4095)
	0x75, 0x10, //     Report Size (16)
	0x95, 0x01, //     Report Count (1)
	0x81, 0x00, //     Input (Data, Array)
	0xC0, // End Collection
}

// systemDescriptor shares consumer's 16-bit usage layout; the report.
// ExtraKey type carries both sinks identically.
var systemDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x80, // Usage (System Control)
	0xA1, 0x01, //   Collection (Application)
	0x15, 0x00, //     Logical Minimum (0)
	0x26, 0xFF, 0x0F, // Logical Maximum (4095)
	0x19, 0x00, //     Usage Minimum (0)
	0x2A, 0xFF, 0x0F, // Usage Maximum (4095)
	0x75, 0x10, //     Report Size (16)
	0x95, 0x01, //     Report Count (1)
	0x81, 0x00, //     Input (Data, Array)
	0xC0, // End Collection
}

// joystickDescriptor: {buttons(8), axes[2](16 LE each)}, matching
// report.Joystick.Bytes's 5-byte layout.
var joystickDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x04, // Usage (Joystick)
	0xA1, 0x01, //   Collection (Application)
	0x05, 0x09, //     Usage Page (Button)
	0x19, 0x01, //     Usage Minimum (Button 1)
	0x29, 0x08, //     Usage Maximum (Button 8)
	0x15, 0x00, //     Logical Minimum (0)
	0x25, 0x01, //     Logical Maximum (1)
	0x75, 0x01, //     Report Size (1)
	0x95, 0x08, //     Report Count (8)
	0x81, 0x02, //     Input (Data, Variable, Absolute) — button bitmap
	0x05, 0x01, //     Usage Page (Generic Desktop)
	0x09, 0x01, //     Usage (Pointer)
	0xA1, 0x00, //     Collection (Physical)
	0x09, 0x30, //       Usage (X)
	0x09, 0x31, //       Usage (Y)
	0x16, 0x81, 0xFF, //  Logical Minimum (-127)
	0x26, 0x7F, 0x00, //  Logical Maximum (127)
	0x75, 0x10, //       Report Size (16)
	0x95, 0x02, //       Report Count (2)
	0x81, 0x02, //       Input (Data, Variable, Absolute) — x, y
	0xC0, //     End Collection
	0xC0, // End Collection
}

// Bytes returns the raw HID descriptor for d.
func (d Descriptor) Bytes() []byte {
	switch d {
	case DescKeyboard:
		return keyboardDescriptor
	case DescNKRO:
		return nkroDescriptor
	case DescMouse:
		return mouseDescriptor
	case DescConsumer:
		return consumerDescriptor
	case DescSystem:
		return systemDescriptor
	case DescJoystick:
		return joystickDescriptor
	default:
		return nil
	}
}

// Device wraps a libusb handle to a paired accessory device with one or
// more HID sinks registered against it, structurally the same
// connection object as the teacher's aoa.Device but generalized to
// register every keyboard report sink instead of one test descriptor
// at a time.
type Device struct {
	ctx       *gousb.Context
	dev       *gousb.Device
	serial    string
	nextHIDID uint16
	ids       map[Descriptor]uint16
}

// Open finds a paired accessory device (matching vendor/product, and
// serial if non-empty) and opens a USB connection. No descriptors are
// registered yet; call Register for each sink the caller wants to
// drive.
func Open(vendorID, productID gousb.ID, serial string) (*Device, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vendorID && desc.Product == productID
	})
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("hid: no device found (VID:0x%04x PID:0x%04x): %w", vendorID, productID, err)
	}

	var dev *gousb.Device
	for _, d := range devs {
		s, _ := d.SerialNumber()
		if serial == "" || s == serial {
			dev = d
		} else {
			d.Close()
		}
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("hid: device with serial %q not found", serial)
	}

	dev.SetAutoDetach(true)

	return &Device{ctx: ctx, dev: dev, serial: serial, nextHIDID: 1, ids: make(map[Descriptor]uint16)}, nil
}

// Register registers d's HID descriptor with the device and records the
// assigned HID id for later Send calls.
func (d *Device) Register(desc Descriptor) error {
	raw := desc.Bytes()
	if raw == nil {
		return fmt.Errorf("hid: unknown descriptor %v", desc)
	}

	id := d.nextHIDID
	d.nextHIDID++

	if err := d.controlTransfer(reqRegisterHID, id, uint16(len(raw)), nil); err != nil {
		return fmt.Errorf("hid: REGISTER_HID (%v) failed: %w", desc, err)
	}
	if err := d.controlTransfer(reqSetHIDDesc, id, 0, raw); err != nil {
		_ = d.controlTransfer(reqUnregisterHID, id, 0, nil)
		return fmt.Errorf("hid: SET_HID_REPORT_DESC (%v) failed: %w", desc, err)
	}

	time.Sleep(300 * time.Millisecond) // let the host enumerate the new sink
	d.ids[desc] = id
	return nil
}

// nkroReportSize is report.NKRO.Bytes's fixed output width
// (1 modifier byte + 30 bitmap bytes): the only thing distinguishing an
// NKRO payload from a 6KRO one at this layer, since both arrive through
// the same SendKeyboard hook.
const nkroReportSize = 31

// selectKeyboardDescriptor picks which registered descriptor a
// SendKeyboard payload belongs to, given the length report.SixKRO/NKRO
// actually produce. Falls back to 6KRO whenever NKRO isn't registered,
// even if asked to send an NKRO-shaped payload — that combination means
// the caller booted NKRO off without unregistering that descriptor's
// slot, which shouldn't happen in practice.
func selectKeyboardDescriptor(nkroRegistered bool, reportLen int) Descriptor {
	if nkroRegistered && reportLen == nkroReportSize {
		return DescNKRO
	}
	return DescKeyboard
}

// Send submits a raw report to an already-registered descriptor.
func (d *Device) Send(desc Descriptor, report []byte) error {
	id, ok := d.ids[desc]
	if !ok {
		return fmt.Errorf("hid: %v not registered", desc)
	}
	return d.controlTransfer(reqSendHIDEvent, id, 0, report)
}

// RemoteWakeup asks the host to resume a suspended USB link.
func (d *Device) RemoteWakeup() error {
	return d.controlTransfer(reqRemoteWakeup, 0, 0, nil)
}

// Ping checks the link is still alive by reading the device's serial
// number, matching aoa.Device.Ping.
func (d *Device) Ping() error {
	_, err := d.dev.SerialNumber()
	return err
}

// Close unregisters every descriptor and releases USB resources.
func (d *Device) Close() {
	for desc, id := range d.ids {
		_ = d.controlTransfer(reqUnregisterHID, id, 0, nil)
		delete(d.ids, desc)
	}
	d.dev.Close()
	d.ctx.Close()
}

func (d *Device) controlTransfer(bRequest uint8, wValue, wIndex uint16, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := d.dev.Control(bmRequestTypeOut, bRequest, wValue, wIndex, data)
	if err != nil {
		return fmt.Errorf("control transfer (req=%d wValue=%d wIndex=%d): %w", bRequest, wValue, wIndex, err)
	}
	return nil
}

// Transport builds a keyboard.Transport whose hooks drive d. SendSharedEP
// and SendMIDI are left unset — neither has a registered descriptor
// here (6KRO/NKRO already cover the shared endpoint's two shapes, and
// this package defines no MIDI descriptor; see DESIGN.md) — so the core
// treats them as no-ops, same as any other nil hook.
func (d *Device) Transport() keyboard.Transport {
	return keyboard.Transport{
		SendKeyboard: func(report []byte) error {
			_, nkroRegistered := d.ids[DescNKRO]
			return d.Send(selectKeyboardDescriptor(nkroRegistered, len(report)), report)
		},
		SendMouse:    func(report []byte) error { return d.Send(DescMouse, report) },
		SendConsumer: func(report []byte) error { return d.Send(DescConsumer, report) },
		SendSystem:   func(report []byte) error { return d.Send(DescSystem, report) },
		SendJoystick: func(report []byte) error { return d.Send(DescJoystick, report) },
		SendRemoteWakeup: d.RemoteWakeup,
	}
}

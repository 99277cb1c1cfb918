package lcd

import (
	"errors"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/hd44780i2c"
)

// DefaultAddrs are the usual PCF8574 backpack addresses.
var DefaultAddrs = []uint8{0x27, 0x3F}

// NewI2C finds an HD44780 behind a PCF8574 backpack on one of addrs,
// configures it for size and returns a cleared panel.
func NewI2C(bus drivers.I2C, addrs []uint8, size Size) (*Panel, error) {
	for _, a := range addrs {
		// The backpack acks a plain write, so a failed Tx means nothing is there.
		if err := bus.Tx(uint16(a), []byte{0}, nil); err != nil {
			continue
		}
		dev := hd44780i2c.New(bus, a)
		dev.Configure(hd44780i2c.Config{
			Width:  uint8(size.Columns),
			Height: uint8(size.Rows),
		})
		dev.ClearDisplay()
		return NewPanel(&dev, size), nil
	}
	return nil, errors.New("LCD not found on addresses: " + formatAddrs(addrs))
}

func formatAddrs(addrs []uint8) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 0, len(addrs)*6)
	for i, a := range addrs {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, '0', 'x', hex[a>>4], hex[a&0xf])
	}
	return string(buf)
}

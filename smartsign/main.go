//go:build tinygo

// Command smartsign is the Pico W firmware for the sign: it scrolls four
// rows of text on a 20x4 HD44780 and refreshes them from an MQTT topic.
//
// Build with the network settings injected at link time:
//
//	tinygo flash -target=pico-w -ldflags="-X main.ssid=... -X main.pass=... -X main.broker=10.0.0.9:1883" ./smartsign
package main

import (
	"context"
	"log/slog"
	"machine"
	"time"

	"github.com/harveysanders/sidegrade/smartsign/buffer"
	"github.com/harveysanders/sidegrade/smartsign/cyw43439"
	"github.com/harveysanders/sidegrade/smartsign/lcd"
	"github.com/harveysanders/sidegrade/smartsign/mqtt"
	"github.com/harveysanders/sidegrade/smartsign/refresh"
	"github.com/harveysanders/sidegrade/smartsign/scroll"
)

// Set with -ldflags "-X main.name=value".
var (
	ssid   string
	pass   string
	broker = "10.0.0.9:1883"
	topic  = "sidegrade/sign"
)

const (
	refreshInterval = 30 * time.Second
	tcpBufSize      = 2030 // MTU - ethhdr - iphdr - tcphdr
)

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger.Info("booting sidegrade")
	go heartbeat(machine.GP21)

	err := machine.I2C0.Configure(machine.I2CConfig{
		SDA: machine.GP4,
		SCL: machine.GP5,
	})
	if err != nil {
		printErrForever(logger, "configure I2C", slog.Any("reason", err))
	}

	panel, err := lcd.NewI2C(machine.I2C0, lcd.DefaultAddrs, lcd.Size20x4)
	if err != nil {
		printErrForever(logger, "configure LCD", slog.Any("reason", err))
	}

	panel.Message("Connecting...")
	stack, err := cyw43439.Join(cyw43439.Config{
		SSID:     ssid,
		Password: pass,
		Hostname: "sidegrade",
		Logger:   logger,
		OnJoinFailed: func(err error) {
			panel.Message("Can't connect.\n" + err.Error())
			panel.Flash(3, time.Second)
		},
	})
	if err != nil {
		panel.Message("Network failed.\n" + err.Error())
		printErrForever(logger, "network setup", slog.Any("reason", err))
	}
	logger.Info("network up", slog.String("ip", stack.Addr().String()))
	panel.Clear()

	ctx := context.Background()
	buf := buffer.New(lcd.Size20x4.Rows)

	feed := &mqtt.Feed{
		ID:     "sidegrade-" + stack.Addr().String(),
		Topic:  topic,
		MaxAge: 10 * refreshInterval,
		Logger: logger,
	}
	go feed.Run(ctx, stack.Dialer(broker, tcpBufSize), 2*time.Second)

	refresher := &refresh.Refresher{
		Fetcher:  feed,
		Buffer:   buf,
		Interval: refreshInterval,
		Logger:   logger,
	}
	go refresher.Run(ctx)

	renderer, err := scroll.New(scroll.DefaultConfig(), panel, buf, logger)
	if err != nil {
		printErrForever(logger, "configure renderer", slog.Any("reason", err))
	}
	renderer.Run(ctx)
}

// heartbeat blinks the debug LED at 2Hz so a frozen board is obvious
// even when the panel looks fine.
func heartbeat(led machine.Pin) {
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(250 * time.Millisecond)
		led.Low()
		time.Sleep(250 * time.Millisecond)
	}
}

// printErrForever logs msg to serial once a second, forever, so the error
// is still visible when the serial monitor attaches late.
func printErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}

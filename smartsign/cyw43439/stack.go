//go:build tinygo

// Package cyw43439 brings up Wi-Fi on the Pico W and exposes the lneto
// stack the sign uses to reach its MQTT broker.
//
// Adapted from the soypat/cyw43439 examples:
// https://github.com/soypat/cyw43439/tree/main/examples/common
package cyw43439

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"runtime"
	"strconv"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/lneto/tcp"
	"github.com/soypat/lneto/x/xnet"
)

const (
	mtu      = cyw43439.MTU
	pollTime = 5 * time.Millisecond
)

// Config configures Wi-Fi and the lneto stack.
type Config struct {
	SSID     string
	Password string
	// Hostname is used for DHCP requests.
	Hostname string
	// RequestedAddr is used as a static IP if DHCP does not complete.
	RequestedAddr netip.Addr
	// JoinRetry is the pause between failed join attempts.
	JoinRetry time.Duration
	// OnJoinFailed, if set, is called after every failed join attempt,
	// before sleeping. The sign uses it to show the error on the panel.
	OnJoinFailed func(err error)
	Logger       *slog.Logger
}

// Stack wraps the lneto StackAsync and the CYW43439 device.
type Stack struct {
	s       xnet.StackAsync
	dev     *cyw43439.Device
	log     *slog.Logger
	sendbuf []byte
}

// Join initializes the radio, joins the network (retrying forever) and
// configures the stack with DHCP.
func Join(cfg Config) (*Stack, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("empty hostname")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.JoinRetry <= 0 {
		cfg.JoinRetry = 5 * time.Second
	}

	start := time.Now()
	dev := cyw43439.NewPicoWDevice()
	dev.SetLogger(logger)
	if err := dev.Init(cyw43439.DefaultWifiConfig()); err != nil {
		return nil, errors.New("wifi init failed:" + err.Error())
	}
	logger.Info("wifi:init", slog.Duration("duration", time.Since(start)))

	for {
		err := dev.JoinWPA2(cfg.SSID, cfg.Password)
		if err == nil {
			break
		}
		logger.Error("wifi:join-failed", slog.String("ssid", cfg.SSID), slog.String("err", err.Error()))
		if cfg.OnJoinFailed != nil {
			cfg.OnJoinFailed(err)
		}
		time.Sleep(cfg.JoinRetry)
	}

	mac, err := dev.HardwareAddr6()
	if err != nil {
		return nil, errors.New("get hardware address:" + err.Error())
	}
	logger.Info("wifi:joined", slog.String("mac", net.HardwareAddr(mac[:]).String()))

	stack := &Stack{dev: dev, log: logger, sendbuf: make([]byte, mtu)}
	err = stack.s.Reset(xnet.StackConfig{
		Hostname:        cfg.Hostname,
		MaxTCPConns:     1,
		RandSeed:        time.Since(start).Nanoseconds(),
		HardwareAddress: mac,
		MTU:             mtu,
	})
	if err != nil {
		return nil, errors.New("stack reset:" + err.Error())
	}
	dev.RecvEthHandle(func(pkt []byte) error {
		return stack.s.Demux(pkt, 0)
	})

	go stack.loop()

	if err := stack.dhcp(cfg.RequestedAddr); err != nil {
		return nil, err
	}
	return stack, nil
}

func (s *Stack) dhcp(requested netip.Addr) error {
	if !requested.IsValid() {
		requested = netip.AddrFrom4([4]byte{})
	}
	if !requested.Is4() {
		return errors.New("only dhcpv4 supported")
	}
	rstack := s.s.StackRetrying(50 * time.Millisecond)

	results, err := rstack.DoDHCPv4(requested.As4(), 3*time.Second, 3)
	if err != nil {
		if !requested.IsUnspecified() {
			s.log.Info("dhcp:static-fallback", slog.String("ip", requested.String()))
			s.s.SetIPAddr(requested)
			return nil
		}
		return errors.New("dhcp failed:" + err.Error())
	}
	if err := s.s.AssimilateDHCPResults(results); err != nil {
		return errors.New("assimilate dhcp:" + err.Error())
	}
	gatewayHW, err := rstack.DoResolveHardwareAddress6(results.Router, 500*time.Millisecond, 4)
	if err != nil {
		return errors.New("resolve gateway:" + err.Error())
	}
	s.s.SetGateway6(gatewayHW)
	s.log.Info("dhcp:complete",
		slog.String("ourIP", results.AssignedAddr.String()),
		slog.String("router", results.Router.String()),
	)
	return nil
}

// loop moves packets between the radio and the stack forever.
func (s *Stack) loop() {
	for {
		send, recv, _ := s.recvAndSend()
		if send == 0 && recv == 0 {
			// Single core under TinyGo: let the render loop run.
			runtime.Gosched()
			time.Sleep(pollTime)
		}
	}
}

func (s *Stack) recvAndSend() (send, recv int, err error) {
	gotPacket, errRecv := s.dev.PollOne()
	if gotPacket {
		recv = 1
	}
	if errRecv != nil {
		s.log.Error("stack:poll", slog.String("err", errRecv.Error()))
	}
	send, err = s.s.Encapsulate(s.sendbuf, -1, 0)
	if err != nil {
		s.log.Error("stack:encapsulate", slog.Int("plen", send), slog.String("err", err.Error()))
		return send, recv, err
	}
	if send == 0 {
		return send, recv, errRecv
	}
	if err = s.dev.SendEth(s.sendbuf[:send]); err != nil {
		s.log.Error("stack:send", slog.Int("plen", send), slog.String("err", err.Error()))
	}
	return send, recv, err
}

// Addr returns the current IP address of the stack.
func (s *Stack) Addr() netip.Addr {
	return s.s.Addr()
}

// Dialer returns a function that resolves hostport and opens a TCP
// connection to it, suitable for mqtt.Feed.Run.
func (s *Stack) Dialer(hostport string, bufSize int) func(ctx context.Context) (io.ReadWriteCloser, error) {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		host, portStr, err := net.SplitHostPort(hostport)
		if err != nil {
			return nil, errors.New("parsing host:port from " + hostport + ": " + err.Error())
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return nil, errors.New("parsing port " + portStr + ": " + err.Error())
		}

		rstack := s.s.StackRetrying(pollTime)
		addr, err := netip.ParseAddr(host)
		if err != nil {
			addrs, err := rstack.DoLookupIP(host, 5*time.Second, 3)
			if err != nil {
				return nil, errors.New("dns lookup for " + host + ": " + err.Error())
			}
			if len(addrs) == 0 {
				return nil, errors.New("dns lookup for " + host + ": no addresses returned")
			}
			addr = addrs[0]
		}

		conn := new(tcp.Conn)
		err = conn.Configure(tcp.ConnConfig{
			RxBuf:             make([]byte, bufSize),
			TxBuf:             make([]byte, bufSize),
			TxPacketQueueSize: 3,
		})
		if err != nil {
			return nil, errors.New("tcp configure:" + err.Error())
		}

		localPort := uint16(s.s.Prand32()>>17) + 1024
		err = rstack.DoDialTCP(conn, localPort, netip.AddrPortFrom(addr, uint16(port)), 10*time.Second, 3)
		if err != nil {
			conn.Abort()
			return nil, errors.New("tcp dial " + hostport + ": " + err.Error())
		}
		s.log.Info("tcp:connected", slog.String("addr", hostport))
		return conn, nil
	}
}

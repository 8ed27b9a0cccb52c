package env

import (
	"context"
	"log"

	"github.com/golang/glog"

	fx "github.com/robotalks/uartpipe/pkg/framework"
	"github.com/robotalks/uartpipe/pkg/msgs"
	"github.com/robotalks/uartpipe/pkg/transport"
	"github.com/robotalks/uartpipe/pkg/uart"
	"github.com/robotalks/uartpipe/pkg/uart/serial"
	"github.com/robotalks/uartpipe/pkg/uart/sim"
)

// Env is a transport running over a port.
type Env struct {
	Config    *Config
	Driver    *uart.Async
	WorkQueue *fx.WorkQueue
	Transport *transport.Transport
}

// simPort closes the echo peer along with the port.
type simPort struct {
	*sim.Port
	remote *sim.Port
}

func (p *simPort) Close() error {
	p.remote.Close()
	return p.Port.Close()
}

// OpenPort opens the configured port.
func (c *Config) OpenPort() (uart.Port, error) {
	if c.Serial.Name == SimPortName {
		local, remote := sim.Pair()
		go sim.Echo(remote)
		return &simPort{Port: local, remote: remote}, nil
	}
	return serial.Open(c.Serial)
}

// NewEnv opens the port and creates the transport. The transport isn't
// opened yet.
func (c *Config) NewEnv() (*Env, error) {
	port, err := c.OpenPort()
	if err != nil {
		return nil, err
	}
	e := &Env{
		Config:    c,
		Driver:    uart.NewAsync(port),
		WorkQueue: fx.NewWorkQueue(),
	}
	if e.Transport, err = transport.New(e.Driver, e.WorkQueue, c.Transport); err != nil {
		port.Close()
		return nil, err
	}
	glog.V(2).Infof("env on %s: %+v", c.Serial.Name, c.Transport)
	return e, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// Meta describes the transport for bridges.
func (e *Env) Meta() *msgs.Meta {
	conf := e.Transport.Config()
	return &msgs.Meta{
		Id:            e.Config.BridgeID(),
		Port:          e.Config.Serial.Name,
		BaudRate:      uint32(e.Config.Serial.BaudRate),
		RxBufferSize:  uint32(conf.BufferSize()),
		RxBufferCount: uint32(conf.RxBufferCount),
		TxBufferSize:  uint32(conf.TxBufferSize),
	}
}

// Run implements Runnable. It processes deferred notifications until ctx
// is done.
func (e *Env) Run(ctx context.Context) error {
	return e.WorkQueue.Run(ctx)
}

// Close closes the transport and the port.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	errs.Add(e.Transport.Close(), e.Driver.Close())
	return errs.Aggregate()
}

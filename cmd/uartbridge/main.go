package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/uartpipe/pkg/bridge/mqtt"
	"github.com/robotalks/uartpipe/pkg/bridge/websocket"
	"github.com/robotalks/uartpipe/pkg/env"
	fx "github.com/robotalks/uartpipe/pkg/framework"
	"github.com/robotalks/uartpipe/pkg/pipe"
)

func init() {
	env.SetupFlags()
}

func main() {
	if err := env.ParseFlags(); err != nil {
		glog.Exit(err)
	}
	defer glog.Flush()

	conf := env.NewConfig()
	e, err := conf.NewEnv()
	if err != nil {
		glog.Exitf("setup %s: %v", conf.Serial.Name, err)
	}
	defer e.Close()
	if err := e.Transport.Open(); err != nil {
		glog.Exitf("open transport: %v", err)
	}
	conn := pipe.NewConn(e.Transport.Pipe())
	id := conf.BridgeID()
	glog.Infof("bridging %s as %q", conf.Serial.Name, id)

	runner := fx.NewRunner().HandleSignals().StopOnExit()

	var bridge fx.Runnable
	switch {
	case conf.WebsocketAddr != "":
		server := &http.Server{Addr: conf.WebsocketAddr, Handler: websocket.NewHandler(conn)}
		bridge = fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCancel(ctx, func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				server.Shutdown(ctx)
			}, server.ListenAndServe)
		})
		glog.Infof("websocket listening on %s", conf.WebsocketAddr)
	case conf.MQTTBrokerURL != "":
		q, err := mqtt.NewQueueFromURL(conf.MQTTBrokerURL, "uartpipe-"+id)
		if err != nil {
			glog.Exitf("mqtt: %v", err)
		}
		if err := q.Connect(); err != nil {
			glog.Exitf("mqtt connect: %v", err)
		}
		defer q.Close()
		bridge = &mqtt.Bridge{
			Queue:         q,
			ID:            id,
			Conn:          conn,
			Stats:         e.Transport,
			StatsInterval: conf.StatsInterval,
			Meta:          e.Meta(),
		}
	default:
		glog.Exit("either -ws or -mqtt is required")
	}

	runner.Go(fx.NamedRun("workqueue", e), fx.NamedRun("bridge", bridge))
	if err := runner.Wait(); err != nil {
		glog.Errorf("bridge stopped: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"reflect"
	"time"

	"github.com/robotalks/uartpipe/pkg/bridge/mqtt"
	"github.com/robotalks/uartpipe/pkg/env"
)

var (
	mqttURL  = "mqtt://localhost:1883/uartpipe/"
	discover bool
)

func init() {
	if val := os.Getenv("UARTPIPE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.BoolVar(&discover, "discover", discover, "List online bridges and exit.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL, "uartmon-"+env.MachineID())
	if err != nil {
		log.Fatalln(err)
	}
	if err := q.Connect(); err != nil {
		log.Fatalln(err)
	}
	defer q.Close()

	if discover {
		metas, err := mqtt.Discover(context.Background(), q, time.Second)
		if err != nil {
			log.Fatalln(err)
		}
		for _, meta := range metas {
			log.Printf("%s: %s", meta.Id, meta.String())
		}
		return
	}

	mqtt.Watch(q, func(rec mqtt.Record) {
		switch {
		case rec.Err != nil:
			log.Printf("%s/%s: bad message: %v", rec.ID, rec.Kind, rec.Err)
		case rec.Message != nil:
			log.Printf("%s/%s: [%s] %s", rec.ID, rec.Kind,
				reflect.Indirect(reflect.ValueOf(rec.Message)).Type().Name(),
				rec.Message.String())
		default:
			log.Printf("%s/%s: %d bytes %q", rec.ID, rec.Kind, len(rec.Payload), rec.Payload)
		}
	})
	<-(chan struct{})(nil)
}

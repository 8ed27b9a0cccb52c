// Package env sets up a transport from configuration: defaults, an
// optional YAML file, environment variables and command line flags.
package env

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/uartpipe/pkg/transport"
	"github.com/robotalks/uartpipe/pkg/uart/serial"
)

// SimPortName selects an in-memory port with an echo peer.
const SimPortName = "sim"

// Config provides common options to setup a transport and its bridges.
type Config struct {
	ID        string           `yaml:"id"`
	Serial    serial.Config    `yaml:"serial"`
	Transport transport.Config `yaml:"transport"`

	// MQTTBrokerURL specifies the MQTT broker to bridge to.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt"`
	// WebsocketAddr is the listen address of the websocket bridge.
	// Empty disables it.
	WebsocketAddr string        `yaml:"websocket"`
	StatsInterval time.Duration `yaml:"stats-interval"`
}

var (
	defaultConfig = Config{
		Serial:        serial.Config{Name: SimPortName, BaudRate: 115200},
		Transport:     transport.DefaultConfig(),
		MQTTBrokerURL: "mqtt://localhost:1883/uartpipe/",
		StatsInterval: 5 * time.Second,
	}
	configFile string
)

func init() {
	if val := os.Getenv("UARTPIPE_CONFIG"); val != "" {
		configFile = val
	}
	if val := os.Getenv("UARTPIPE_PORT"); val != "" {
		defaultConfig.Serial.Name = val
	}
	if val := os.Getenv("UARTPIPE_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			defaultConfig.Serial.BaudRate = baud
		}
	}
	if val := os.Getenv("UARTPIPE_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("UARTPIPE_WS_ADDR"); val != "" {
		defaultConfig.WebsocketAddr = val
	}
	if val := os.Getenv("UARTPIPE_ID"); val != "" {
		defaultConfig.ID = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	c := &defaultConfig
	flag.StringVar(&configFile, "config", configFile, "YAML config file, flags override its values")
	flag.StringVar(&c.ID, "id", c.ID, "Bridge ID, defaults to one derived from the machine ID")
	flag.StringVar(&c.Serial.Name, "port", c.Serial.Name, "Serial port, or \"sim\" for an echo peer")
	flag.IntVar(&c.Serial.BaudRate, "baud", c.Serial.BaudRate, "Baud rate")
	flag.StringVar(&c.Serial.Parity, "parity", c.Serial.Parity, "Parity: none, odd, even, mark, space")
	flag.IntVar(&c.Transport.RxPoolSize, "rx-pool", c.Transport.RxPoolSize, "Receive pool size in bytes")
	flag.IntVar(&c.Transport.RxBufferCount, "rx-buffers", c.Transport.RxBufferCount, "Number of receive buffers")
	flag.IntVar(&c.Transport.TxBufferSize, "tx-buffer", c.Transport.TxBufferSize, "Transmit staging size in bytes")
	flag.IntVar(&c.Transport.RxQueueDepth, "rx-queue", c.Transport.RxQueueDepth, "Receive queue depth")
	flag.DurationVar(&c.Transport.RxIdleTimeout, "rx-idle", c.Transport.RxIdleTimeout, "Receive idle timeout")
	flag.DurationVar(&c.Transport.TxTimeout, "tx-timeout", c.Transport.TxTimeout, "Transmit timeout, 0 for none")
	flag.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&c.WebsocketAddr, "ws", c.WebsocketAddr, "Websocket listen address")
	flag.DurationVar(&c.StatsInterval, "stats-interval", c.StatsInterval, "Interval of publishing stats")
}

// ParseFlags parses command line flags. If a config file is specified, it's
// loaded first and flags are parsed again so they take precedence.
func ParseFlags() error {
	flag.Parse()
	if configFile == "" {
		return nil
	}
	if err := defaultConfig.LoadFile(configFile); err != nil {
		return err
	}
	flag.Parse()
	return nil
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile overlays values from a YAML file.
func (c *Config) LoadFile(fn string) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", fn, err)
	}
	return nil
}

// BridgeID returns ID or the one derived from the machine ID.
func (c *Config) BridgeID() string {
	if c.ID != "" {
		return c.ID
	}
	return MachineID()
}

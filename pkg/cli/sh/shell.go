package sh

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/uartpipe/pkg/env"
	"github.com/robotalks/uartpipe/pkg/msgs"
	"github.com/robotalks/uartpipe/pkg/pipe"
	"github.com/robotalks/uartpipe/pkg/uart/serial"
)

// Shell provides ishell backed interactive shell on a transport.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool

	Shell  *ishell.Shell
	Config *env.Config
	Env    *env.Env
	Conn   *pipe.Conn

	cancel func()
}

const (
	shellKey = "$shell"

	// DefaultRecvTimeout is how long recv waits for data.
	DefaultRecvTimeout = 100 * time.Millisecond
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&SendCmd,
		&SendHexCmd,
		&RecvCmd,
		&StatsCmd,
		&StateCmd,
		&PortsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.updatePrompt()
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustHaveEnv wraps command func requires the port and transport.
func MustHaveEnv(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if err := ShellFrom(c).ensureEnv(); err != nil {
			c.Err(err)
			return
		}
		fn(c)
	}
}

// WithAutoOpen sets AutoOpen.
func (s *Shell) WithAutoOpen(en bool) *Shell {
	s.AutoOpen = en
	return s
}

func (s *Shell) ensureEnv() error {
	if s.Env != nil {
		return nil
	}
	e, err := s.Config.NewEnv()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	s.Env, s.cancel = e, cancel
	return nil
}

func (s *Shell) updatePrompt() {
	state := "closed"
	if s.Env != nil {
		state = s.Env.Transport.State().String()
	}
	s.Shell.SetPrompt(fmt.Sprintf("[%s %s] > ", s.Config.Serial.Name, state))
}

// Open opens the transport and attaches a new connection.
func (s *Shell) Open() error {
	if err := s.ensureEnv(); err != nil {
		return err
	}
	if err := s.Env.Transport.Open(); err != nil {
		return err
	}
	// a Conn is done once the pipe closed, replace it on each open.
	s.Conn = pipe.NewConn(s.Env.Transport.Pipe())
	s.updatePrompt()
	return nil
}

// Close closes the transport, the port stays open.
func (s *Shell) Close() error {
	if s.Env == nil {
		return nil
	}
	err := s.Env.Transport.Close()
	s.updatePrompt()
	return err
}

// Shutdown closes the transport and the port.
func (s *Shell) Shutdown() {
	if s.Env != nil {
		s.Env.Close()
		s.cancel()
		s.Env = nil
	}
}

// Print prints v in JSON or with format.
func (s *Shell) Print(c *ishell.Context, v interface{}, format string, args ...interface{}) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Printf(format+"\n", args...)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Shutdown()
	if s.AutoOpen {
		if err := s.Open(); err != nil {
			log.Fatalf("open %s failed: %v", s.Config.Serial.Name, err)
		}
	}
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// ParsePayload builds bytes to send from command arguments. Arguments are
// joined with spaces and Go escapes like \r\n are interpreted. In hex mode,
// arguments are hex digits and spaces are ignored.
func ParsePayload(args []string, hexMode bool) ([]byte, error) {
	if hexMode {
		return hex.DecodeString(strings.Join(args, ""))
	}
	text := strings.Join(args, " ")
	unquoted, err := strconv.Unquote(`"` + strings.ReplaceAll(text, `"`, `\"`) + `"`)
	if err != nil {
		return nil, fmt.Errorf("invalid escape: %v", err)
	}
	return []byte(unquoted), nil
}

func sendFunc(hexMode bool) func(c *ishell.Context) {
	return MustHaveEnv(func(c *ishell.Context) {
		s := ShellFrom(c)
		if s.Conn == nil || !s.Env.Transport.State().IsOpen() {
			c.Err(fmt.Errorf("not open"))
			return
		}
		data, err := ParsePayload(c.Args, hexMode)
		if err != nil {
			c.Err(err)
			return
		}
		n, err := s.Conn.Write(data)
		if err != nil {
			c.Err(err)
			return
		}
		s.Print(c, map[string]int{"sent": n}, "sent %d bytes", n)
	})
}

var (
	// OpenCmd opens the transport.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Open(); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the transport.
	CloseCmd = ishell.Cmd{
		Name:    "close",
		Aliases: []string{"c"},
		Help:    "",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Close(); err != nil {
				c.Err(err)
			}
		},
	}

	// SendCmd transmits text.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "TEXT... (supports escapes like \\r\\n)",
		Func:    sendFunc(false),
	}

	// SendHexCmd transmits hex encoded bytes.
	SendHexCmd = ishell.Cmd{
		Name:    "sendx",
		Aliases: []string{"sx"},
		Help:    "HEX...",
		Func:    sendFunc(true),
	}

	// RecvCmd prints received bytes.
	RecvCmd = ishell.Cmd{
		Name:    "recv",
		Aliases: []string{"r"},
		Help:    "[TIMEOUT]",
		Func: MustHaveEnv(func(c *ishell.Context) {
			s := ShellFrom(c)
			if s.Conn == nil {
				c.Err(fmt.Errorf("not open"))
				return
			}
			timeout := DefaultRecvTimeout
			if len(c.Args) > 0 {
				val, err := time.ParseDuration(c.Args[0])
				if err != nil {
					c.Err(fmt.Errorf("invalid TIMEOUT: %v", err))
					return
				}
				timeout = val
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			var data []byte
			buf := make([]byte, 256)
			for {
				n, err := s.Conn.ReadContext(ctx, buf)
				data = append(data, buf[:n]...)
				if err != nil {
					break
				}
			}
			s.Print(c, map[string]string{"data": hex.EncodeToString(data)}, "%d bytes %q", len(data), data)
		}),
	}

	// StatsCmd prints transport counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: MustHaveEnv(func(c *ishell.Context) {
			s := ShellFrom(c)
			msg := msgs.StatsFrom(s.Config.BridgeID(), s.Env.Transport.Stats(), time.Now())
			s.Print(c, msg, "%s", msg.String())
		}),
	}

	// StateCmd prints the transport state.
	StateCmd = ishell.Cmd{
		Name: "state",
		Help: "",
		Func: MustHaveEnv(func(c *ishell.Context) {
			s := ShellFrom(c)
			state := s.Env.Transport.State().String()
			s.Print(c, map[string]string{"state": state}, "%s", state)
		}),
	}

	// PortsCmd lists serial ports on the host.
	PortsCmd = ishell.Cmd{
		Name: "ports",
		Help: "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ports, err := serial.List()
			if err != nil {
				c.Err(err)
				return
			}
			if ports == nil {
				ports = []string{}
			}
			s.Print(c, ports, "%s", strings.Join(ports, "\n"))
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	if err := env.ParseFlags(); err != nil {
		log.Fatalln(err)
	}
	New(env.NewConfig()).WithAutoOpen(true).Run(flag.Args()...)
}

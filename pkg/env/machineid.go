package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const appID = "uartpipe"

// MachineID retrieves an ID identifying the machine. It's derived from the
// host machine ID so the raw ID isn't exposed on the wire. The hostname is
// used when the machine ID isn't available.
func MachineID() string {
	id, err := machineid.ProtectedID(appID)
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return appID
}

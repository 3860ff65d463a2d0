// Command aclmgrd binds a raw HCI_CHANNEL_USER socket to a local
// Bluetooth controller and runs the ACL connection manager against it.
// It takes no configuration beyond the controller's device index: no
// flags, no environment variables, nothing persisted to disk.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/aclhost/aclmgr/acl"
	"github.com/aclhost/aclmgr/hci"
	"github.com/aclhost/aclmgr/internal/socket"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <hci-device-index>\n", os.Args[0])
		os.Exit(2)
	}
	dev, err := strconv.Atoi(os.Args[1])
	if err != nil {
		log.WithError(err).Fatal("aclmgrd: device index must be numeric")
	}

	raw, err := socket.Open(dev)
	if err != nil {
		log.WithError(err).Fatalf("aclmgrd: opening hci%d", dev)
	}

	layer := hci.New(raw, log)
	mgr := acl.New(layer, log, acl.DefaultConfig())

	if err := mgr.Start(); err != nil {
		log.WithError(err).Fatal("aclmgrd: start failed")
	}
	log.WithField("device", dev).Info("aclmgrd: running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("aclmgrd: shutting down")
	if err := mgr.Stop(); err != nil {
		log.WithError(err).Warn("aclmgrd: stop reported an error")
	}
}

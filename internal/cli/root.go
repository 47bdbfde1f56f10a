// Package cli is the chorus command: a thin shell over the hub API for
// scripts and humans.
package cli

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/VentureIA/chorus/internal/client"
	"github.com/VentureIA/chorus/internal/config"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

type options struct {
	cfgPath    string
	server     string
	sessionID  uint32
	instanceID string
}

// client resolves the daemon address from --server, then the config file.
func (o *options) client() (*client.Client, error) {
	server := o.server
	if server == "" {
		cfg, err := config.Load(o.cfgPath)
		if err != nil {
			return nil, err
		}
		server = cfg.Hub.Listen
	}
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	return client.New(server, client.WithSession(o.sessionID, o.instanceID)), nil
}

func Main() {
	if err := NewRoot().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func NewRoot() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:          "chorus",
		Short:        "Chorus hub client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&o.cfgPath, "config", "", "config file (yaml)")
	root.PersistentFlags().StringVar(&o.server, "server", "", "hub API address (default: hub.listen from config)")
	root.PersistentFlags().Uint32Var(&o.sessionID, "session", envSession(), "session id to act as (env CHORUS_SESSION_ID)")
	root.PersistentFlags().StringVar(&o.instanceID, "instance", os.Getenv("CHORUS_INSTANCE_ID"), "instance id (env CHORUS_INSTANCE_ID)")

	root.AddCommand(broadcastCmd(o))
	root.AddCommand(messagesCmd(o))
	root.AddCommand(reportFileCmd(o))
	root.AddCommand(conflictsCmd(o))
	root.AddCommand(scratchpadCmd(o))
	root.AddCommand(exportCmd(o))
	root.AddCommand(webAccessCmd(o))
	return root
}

func envSession() uint32 {
	n, err := strconv.ParseUint(os.Getenv("CHORUS_SESSION_ID"), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

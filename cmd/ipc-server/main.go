// Command ipc-server hosts a channel of demo functions for exercising the
// invoker side by hand. It registers add, concat, negate, scale and ping,
// the same functions used by the invoker/registry integration tests.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moduluz-io/ipc-shm/registry"
	"github.com/moduluz-io/ipc-shm/wire"
)

var (
	channel      string
	logLevel     string
	etcdEndpoint string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ipc-server",
		Short: "Run a demo shared-memory RPC channel",
		RunE:  runServer,
	}
	cmd.Flags().StringVar(&channel, "channel", "/ipc-shm-demo", "channel name, shared with clients")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&etcdEndpoint, "etcd-endpoint", "", "optional etcd endpoint for channel heartbeat publication")

	viper.SetEnvPrefix("IPC_SHM")
	viper.AutomaticEnv()
	viper.BindPFlag("channel", cmd.Flags().Lookup("channel"))
	viper.BindPFlag("log-level", cmd.Flags().Lookup("log-level"))
	viper.BindPFlag("etcd-endpoint", cmd.Flags().Lookup("etcd-endpoint"))

	return cmd
}

func runServer(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	if level, err := logrus.ParseLevel(viper.GetString("log-level")); err == nil {
		log.SetLevel(level)
	}

	opts := []registry.Option{registry.WithLogger(log)}
	if endpoint := viper.GetString("etcd-endpoint"); endpoint != "" {
		opts = append(opts, registry.WithDirectory([]string{endpoint}, 10))
	}

	reg, err := registry.NewRegistry(viper.GetString("channel"), opts...)
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}
	defer reg.Close()

	registerDemoFunctions(reg)

	listenErr := make(chan error, 1)
	go func() { listenErr <- reg.Listen() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	log.WithField("channel", viper.GetString("channel")).Info("ipc-server listening")

	select {
	case <-sig:
		log.Info("shutdown signal received")
		return reg.Close()
	case err := <-listenErr:
		return err
	}
}

func registerDemoFunctions(reg *registry.Registry) {
	reg.Register("add", wire.Signature{Return: wire.TypeInt32, Args: []wire.Type{wire.TypeInt32, wire.TypeInt32}},
		func(args []wire.Value) (wire.Value, error) {
			return wire.Int32(args[0].I32 + args[1].I32), nil
		})

	reg.Register("concat", wire.Signature{Return: wire.TypeString, Args: []wire.Type{wire.TypeString, wire.TypeString}},
		func(args []wire.Value) (wire.Value, error) {
			return wire.String(args[0].S + args[1].S), nil
		})

	reg.Register("negate", wire.Signature{Return: wire.TypeBool, Args: []wire.Type{wire.TypeBool}},
		func(args []wire.Value) (wire.Value, error) {
			return wire.Bool(!args[0].B), nil
		})

	reg.Register("scale", wire.Signature{Return: wire.TypeFloat64, Args: []wire.Type{wire.TypeFloat64, wire.TypeFloat64}},
		func(args []wire.Value) (wire.Value, error) {
			return wire.Float64(args[0].F64 * args[1].F64), nil
		})

	reg.Register("ping", wire.Signature{Return: wire.TypeVoid, Args: nil},
		func(args []wire.Value) (wire.Value, error) {
			return wire.Value{Tag: wire.TypeVoid}, nil
		})
}

// Command ipc-client invokes a single function on a running ipc-server
// channel and prints the result. Like the original invoker example it
// connects and calls add by default, but the arguments come from the
// command line (e.g. "ipc-client 1 2"); with no arguments add fails.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moduluz-io/ipc-shm/invoker"
	"github.com/moduluz-io/ipc-shm/wire"
)

var (
	channel string
	method  string
	timeout time.Duration
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ipc-client [args...]",
		Short: "Invoke a function on a shared-memory RPC channel",
		RunE:  runClient,
	}
	cmd.Flags().StringVar(&channel, "channel", "/ipc-shm-demo", "channel name to connect to")
	cmd.Flags().StringVar(&method, "method", "add", "method name to invoke (add, concat, negate, scale, ping)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abandon the call if the server doesn't answer within this duration (0 disables)")

	viper.BindPFlag("channel", cmd.Flags().Lookup("channel"))
	viper.BindPFlag("method", cmd.Flags().Lookup("method"))

	return cmd
}

func runClient(cmd *cobra.Command, args []string) error {
	var opts []invoker.Option
	if timeout > 0 {
		opts = append(opts, invoker.WithCallTimeout(timeout))
	}

	inv, err := invoker.NewInvoker(viper.GetString("channel"), opts...)
	if err != nil {
		return fmt.Errorf("connect to channel: %w", err)
	}
	defer inv.Close()

	callArgs, returnType, err := buildCall(method, args)
	if err != nil {
		return err
	}

	result, err := inv.Invoke(method, returnType, callArgs)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", method, err)
	}

	fmt.Printf("Result: %s\n", formatValue(result))
	return nil
}

// buildCall turns command-line string arguments into wire.Values for the
// handful of demo functions registered by ipc-server. It is not a general
// argument parser; a real caller would generate this from the declared
// signature rather than string-sniffing positional flags.
func buildCall(method string, args []string) ([]wire.Value, wire.Type, error) {
	switch method {
	case "add":
		a, b, err := twoInts(args)
		if err != nil {
			return nil, wire.TypeVoid, err
		}
		return []wire.Value{wire.Int32(a), wire.Int32(b)}, wire.TypeInt32, nil
	case "concat":
		if len(args) != 2 {
			return nil, wire.TypeVoid, fmt.Errorf("concat needs 2 string arguments, got %d", len(args))
		}
		return []wire.Value{wire.String(args[0]), wire.String(args[1])}, wire.TypeString, nil
	case "negate":
		if len(args) != 1 {
			return nil, wire.TypeVoid, fmt.Errorf("negate needs 1 bool argument, got %d", len(args))
		}
		b, err := strconv.ParseBool(args[0])
		if err != nil {
			return nil, wire.TypeVoid, err
		}
		return []wire.Value{wire.Bool(b)}, wire.TypeBool, nil
	case "scale":
		if len(args) != 2 {
			return nil, wire.TypeVoid, fmt.Errorf("scale needs 2 float arguments, got %d", len(args))
		}
		x, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return nil, wire.TypeVoid, err
		}
		y, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return nil, wire.TypeVoid, err
		}
		return []wire.Value{wire.Float64(x), wire.Float64(y)}, wire.TypeFloat64, nil
	case "ping":
		return nil, wire.TypeVoid, nil
	default:
		return nil, wire.TypeVoid, fmt.Errorf("unknown demo method %q", method)
	}
}

func twoInts(args []string) (int32, int32, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("add needs 2 int arguments, got %d", len(args))
	}
	a, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	return int32(a), int32(b), nil
}

func formatValue(v wire.Value) string {
	switch v.Tag {
	case wire.TypeInt32:
		return strconv.FormatInt(int64(v.I32), 10)
	case wire.TypeFloat32:
		return strconv.FormatFloat(float64(v.F32), 'g', -1, 32)
	case wire.TypeFloat64:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case wire.TypeBool:
		return strconv.FormatBool(v.B)
	case wire.TypeString:
		return v.S
	default:
		return "<void>"
	}
}

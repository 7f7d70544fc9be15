// Command rtcpaste is the CLI entry point.
//
// Two instances open a WebRTC data channel by exchanging an offer and an
// answer through any text medium (chat, email, a terminal on the other
// machine), then chat over it. No signaling server is involved unless a
// relay is configured with --relay-listen / --relay-url.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/rtcpaste/internal/app"
	"github.com/1ureka/rtcpaste/internal/config"
	"github.com/1ureka/rtcpaste/internal/console"
	"github.com/1ureka/rtcpaste/internal/webrtc"
)

var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rtcpaste",
	Short: "Serverless WebRTC chat with copy-paste signaling",
	Long: `rtcpaste opens a peer-to-peer WebRTC data channel between two terminals.

One side types /offer and sends the printed offer to the other side, which
pastes it and sends back the printed answer. Once the answer is pasted the
chat starts.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pterm.Info.Println(fmt.Sprintf("rtcpaste v%s", version))
		pterm.Println()

		con := console.NewStd(cfg.Log.Debug)
		factory := webrtc.NewFactory(cfg.WebRTC)
		if err := app.New(cfg, con, factory, os.Stdin).Run(ctx); err != nil {
			return err
		}

		con.Infof("Bye.")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		if path := config.ConfigFileUsed(cfgFile); path != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "# file: %s\n", path)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rtcpaste.yaml)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.StringSlice("ice", nil, "ICE server URLs, replacing the configured list")
	flags.Bool("legacy", false, "Accept Plan B descriptions from older peers")
	flags.String("label", "", "Data channel label used when creating an offer")
	flags.String("armor", "", "Envelope armor: json or base64")
	flags.String("relay-listen", "", "Carry envelopes over a WebSocket relay listening on this address")
	flags.String("relay-url", "", "Carry envelopes over the relay at this address")
	flags.String("relay-pin", "", "PIN for the relay (generated when listening without one)")

	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

package cmd

import (
	"github.com/spf13/cobra"

	"ota-serve/internal/config"
)

var (
	cfgFile string
	Version string
)

var RootCmd = &cobra.Command{
	Use:   "ota-serve [flags] FIRMWARE",
	Short: "Serve a firmware image to a device polling for OTA updates",
	Long: `ota-serve publishes FIRMWARE and a version manifest over HTTP so a device can
fetch an over-the-air update from http://<host>:8000/ota.txt. The manifest
(version, size, checksum, image URL) is rebuilt on every request.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags(), args[0])
		if err != nil {
			return err
		}
		return NewServer(cfg).Run(cmd.Context(), cmd.OutOrStdout())
	},
}

func Execute(version string) error {
	Version = version
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	config.RegisterFlags(RootCmd.Flags())
}

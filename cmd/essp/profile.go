package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/essp/internal/config"
)

// Profile flags
var (
	profilePort     string
	profileSlave    int
	profileNickname string
	profileFixedKey string
	profileInterval int
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profilePathCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)

	f := profileSetCmd.Flags()
	f.StringVar(&profilePort, "serial-port", "", "Serial port")
	f.IntVar(&profileSlave, "slave-id", -1, "Bus address (0-127)")
	f.StringVar(&profileNickname, "nickname", "", "Display name")
	f.StringVar(&profileFixedKey, "fixed-key", "", "Fixed key in hex (0x...)")
	f.IntVar(&profileInterval, "poll-interval-ms", 0, "Background poll cadence in milliseconds")
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage device profiles",
}

var profilePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the profile file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		fmt.Println(reg.Path())
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [NAME]",
	Short: "Print a profile merged over the defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		name := deviceName
		if len(args) == 1 {
			name = args[0]
		}
		prof, err := reg.Resolve(name)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(prof)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:     "set NAME",
	Short:   "Create or update a profile",
	Example: `  essp profile set hopper --serial-port /dev/ttyUSB0 --slave-id 16`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		p := reg.EnsureDevice(args[0])
		if cmd.Flags().Changed("serial-port") {
			p.Port = profilePort
		}
		if cmd.Flags().Changed("slave-id") {
			p.SlaveID = profileSlave
		}
		if cmd.Flags().Changed("nickname") {
			p.Nickname = profileNickname
		}
		if cmd.Flags().Changed("fixed-key") {
			p.FixedKey = profileFixedKey
		}
		if cmd.Flags().Changed("poll-interval-ms") {
			p.PollIntervalMS = profileInterval
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profile %q: %w", args[0], err)
		}

		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Printf("Saved profile %q to %s\n", args[0], reg.Path())
		return nil
	},
}

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/essp/internal/device"
	"github.com/muurk/essp/internal/serialport"
	"github.com/muurk/essp/internal/ssp"
	"github.com/muurk/essp/internal/ui"
	"github.com/muurk/essp/internal/version"
)

// Command flags
var (
	pollCount    int
	pollAck      bool
	resetYes     bool
	smartEmpty   bool
	bezelPersist bool
)

func init() {
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(handshakeCmd)
	rootCmd.AddCommand(rekeyCmd)
	rootCmd.AddCommand(encryptionResetCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(inhibitsCmd)
	rootCmd.AddCommand(emptyCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(bezelCmd)
	rootCmd.AddCommand(barcodeCmd)

	pollCmd.Flags().IntVarP(&pollCount, "count", "n", 1, "Number of polls to send")
	pollCmd.Flags().BoolVar(&pollAck, "ack", false, "Use PollWithAck and acknowledge events")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip the confirmation prompt")
	emptyCmd.Flags().BoolVar(&smartEmpty, "smart", false, "Use SmartEmpty and keep a record of emptied value")
	bezelCmd.Flags().BoolVar(&bezelPersist, "persist", false, "Store the colour in EEPROM")
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := serialport.List()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found.")
			return nil
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device identity and channel values",
	Long: `Read the serial number, setup data, unit data and channel values.

Sends HostProtocolVersion first so the device answers in the format this
tool understands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget("Device info", false, func(ctx context.Context, t *target, p *ui.Printer) error {
			if _, err := t.session.HostProtocolVersion(ctx, version.HostProtocolVersion); err != nil {
				return err
			}
			serial, err := t.session.SerialNumber(ctx)
			if err != nil {
				return err
			}
			setup, err := t.session.SetupRequest(ctx)
			if err != nil {
				return err
			}
			unit, err := t.session.UnitData(ctx)
			if err != nil {
				return err
			}
			channels, err := t.session.ChannelValueData(ctx)
			if err != nil {
				return err
			}
			barcode, err := t.session.HasBarcodeReader(ctx)
			if err != nil {
				return err
			}

			p.PrintSuccess("Device "+t.displayName(), []ui.Field{
				ui.F("Serial", serial),
				ui.F("Unit type", fmt.Sprintf("0x%02X", setup.UnitType)),
				ui.F("Firmware", setup.FirmwareVersion),
				ui.F("Country", setup.CountryCode),
				ui.F("Protocol", unit.ProtocolVersion),
				ui.F("Multiplier", unit.ValueMultiplier),
				ui.F("Channels", formatChannels(channels)),
				ui.F("Barcode", barcode),
				ui.F("Encrypted", encrypt),
			})
			return nil
		})
	},
}

func formatChannels(values []byte) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d:%d", i+1, v)
	}
	return strings.Join(parts, " ")
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll the device and print its events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget("Poll", false, func(ctx context.Context, t *target, p *ui.Printer) error {
			for i := 0; i < pollCount; i++ {
				var (
					r   *ssp.PollResponse
					err error
				)
				if pollAck {
					r, err = t.session.PollWithAck(ctx)
				} else {
					r, err = t.session.Poll(ctx)
				}
				if err != nil {
					return err
				}
				p.Println(r.String())

				if pollAck && len(r.Events) > 0 {
					if _, err := t.session.EventAck(ctx); err != nil {
						return err
					}
				}
			}
			return nil
		})
	},
}

var handshakeCmd = &cobra.Command{
	Use:   "handshake",
	Short: "Run the key exchange step by step",
	Long: `Run SetGenerator, SetModulus and RequestKeyExchange one at a time,
showing progress, then confirm the key with an encrypted poll.

Use --negotiate-attempts to control how many times a failed exchange is
retried with fresh key material when run as part of other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget("Key exchange", false, func(ctx context.Context, t *target, p *ui.Printer) error {
			p.PrintHeader("Key exchange", "essp handshake", []ui.Field{
				ui.F("Device", t.displayName()),
				ui.F("Port", t.label),
			})

			steps := ui.NewSteps("", "Set generator", "Set modulus", "Exchange keys", "Encrypted poll")
			run := []func(context.Context) error{
				func(ctx context.Context) error { _, err := t.session.SetGenerator(ctx); return err },
				func(ctx context.Context) error { _, err := t.session.SetModulus(ctx); return err },
				func(ctx context.Context) error { _, err := t.session.RequestKeyExchange(ctx); return err },
				func(ctx context.Context) error { _, err := t.session.Poll(ctx); return err },
			}
			for i, fn := range run {
				steps.Set(i, ui.StepRunning, "")
				if err := fn(ctx); err != nil {
					steps.Set(i, ui.StepFailed, device.GetShortErrorMessage(err))
					p.PrintSteps(steps)
					return err
				}
				steps.Set(i, ui.StepComplete, "")
			}
			p.PrintSteps(steps)
			p.PrintSuccess("Encrypted session established", []ui.Field{
				ui.F("Sequence flag", t.session.SequenceFlag()),
			})
			return nil
		})
	},
}

var rekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Send the device a new random fixed key",
	Long: `Draw a new 64-bit fixed key and send it over the encrypted channel.

The device uses the new fixed key from its next key exchange. The key is
not persisted: save it in the profile's fixed_key if you need it later, or
run 'essp encryption-reset' to return to the default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget("Rekey", true, func(ctx context.Context, t *target, p *ui.Printer) error {
			if _, err := t.session.SetEncryptionKey(ctx); err != nil {
				return err
			}
			p.PrintSuccess("Fixed key changed", []ui.Field{
				ui.F("Applies", "next key exchange"),
			})
			return nil
		})
	},
}

var encryptionResetCmd = &cobra.Command{
	Use:   "encryption-reset",
	Short: "Return the device to the default fixed key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget("Encryption reset", false, func(ctx context.Context, t *target, p *ui.Printer) error {
			if _, err := t.session.EncryptionReset(ctx); err != nil {
				return err
			}
			p.PrintSuccess("Fixed key reset to default", nil)
			return nil
		})
	},
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable the device to accept notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return simpleCommand("Enable", (*device.Session).Enable)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		return simpleCommand("Disable", (*device.Session).Disable)
	},
}

func simpleCommand(title string, fn func(*device.Session, context.Context) (*ssp.Response, error)) error {
	return withTarget(title, false, func(ctx context.Context, t *target, p *ui.Printer) error {
		resp, err := fn(t.session, ctx)
		if err != nil {
			return err
		}
		p.PrintSuccess(title+" "+t.displayName(), []ui.Field{ui.F("Status", resp.Status)})
		return nil
	})
}

var inhibitsCmd = &cobra.Command{
	Use:   "inhibits MASK",
	Short: "Select accepted channels",
	Long: `Set the channel inhibit mask. Bit n enables channel n+1; the mask may be
given in decimal, hex (0x..) or binary (0b..).`,
	Example: `  # Accept channels 1-3 only
  essp inhibits 0b111`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mask, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			return fmt.Errorf("invalid mask %q: %w", args[0], err)
		}
		return withTarget("Set inhibits", false, func(ctx context.Context, t *target, p *ui.Printer) error {
			if _, err := t.session.SetInhibits(ctx, ssp.EnableBitfield(mask)); err != nil {
				return err
			}
			p.PrintSuccess("Channel mask set", []ui.Field{ui.F("Mask", fmt.Sprintf("%016b", mask))})
			return nil
		})
	},
}

var emptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Empty stored notes to the cashbox",
	Long: `Empty all stored notes to the cashbox. Always runs encrypted; a key is
negotiated first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget("Empty", true, func(ctx context.Context, t *target, p *ui.Printer) error {
			var err error
			if smartEmpty {
				_, err = t.session.SmartEmpty(ctx)
			} else {
				_, err = t.session.Empty(ctx)
			}
			if err != nil {
				return err
			}
			p.PrintSuccess("Emptying "+t.displayName(), []ui.Field{ui.F("Smart", smartEmpty)})
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restart the device",
	Long: `Send Reset. The device restarts without answering and forgets its key;
the next command runs in the clear until a new key is negotiated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget("Reset", false, func(ctx context.Context, t *target, p *ui.Printer) error {
			if !resetYes && !ui.ConfirmReset(os.Stdin, os.Stdout, t.displayName()) {
				return nil
			}
			if err := t.session.Reset(ctx); err != nil {
				return err
			}
			p.PrintSuccess("Reset sent to "+t.displayName(), nil)
			return nil
		})
	},
}

var bezelCmd = &cobra.Command{
	Use:   "bezel R G B",
	Short: "Set the bezel colour",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var rgb [3]byte
		for i, a := range args {
			v, err := strconv.ParseUint(a, 0, 8)
			if err != nil {
				return fmt.Errorf("invalid colour component %q: %w", a, err)
			}
			rgb[i] = byte(v)
		}
		storage := ssp.BezelRAM
		if bezelPersist {
			storage = ssp.BezelEEPROM
		}
		return withTarget("Configure bezel", false, func(ctx context.Context, t *target, p *ui.Printer) error {
			if _, err := t.session.ConfigureBezel(ctx, rgb[0], rgb[1], rgb[2], storage); err != nil {
				return err
			}
			p.PrintSuccess("Bezel colour set", []ui.Field{
				ui.F("Colour", fmt.Sprintf("#%02X%02X%02X", rgb[0], rgb[1], rgb[2])),
				ui.F("Persisted", bezelPersist),
			})
			return nil
		})
	},
}

var barcodeCmd = &cobra.Command{
	Use:   "barcode",
	Short: "Show barcode reader configuration and last ticket",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTarget("Barcode", false, func(ctx context.Context, t *target, p *ui.Printer) error {
			has, err := t.session.HasBarcodeReader(ctx)
			if err != nil {
				return err
			}
			if !has {
				p.PrintSuccess("No barcode reader fitted", nil)
				return nil
			}
			cfg, err := t.session.GetBarcodeReaderConfiguration(ctx)
			if err != nil {
				return err
			}
			inhibit, err := t.session.GetBarcodeInhibit(ctx)
			if err != nil {
				return err
			}
			data, err := t.session.GetBarcodeData(ctx)
			if err != nil {
				return err
			}
			p.PrintSuccess("Barcode reader", []ui.Field{
				ui.F("Hardware", fmt.Sprintf("0x%02X", byte(cfg.Hardware))),
				ui.F("Enabled", fmt.Sprintf("0x%02X", byte(cfg.Enabled))),
				ui.F("Format", fmt.Sprintf("0x%02X", byte(cfg.Format))),
				ui.F("Characters", cfg.Characters),
				ui.F("Inhibit", fmt.Sprintf("%08b", byte(inhibit))),
				ui.F("Last ticket", data.Ticket),
			})
			return nil
		})
	},
}

// main package for the voiceclone-client command-line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Flag names.
const (
	flagURL     = "url"
	flagSpeaker = "speaker"
	flagInput   = "input"
	flagOutput  = "output"
	flagTimeout = "timeout"
)

const (
	defaultServiceURL = "http://localhost:7600"
	defaultOutputFile = "output.wav"
	defaultTimeout    = 10 * time.Minute
	healthTimeout     = 10 * time.Second
)

// Messages.
const (
	msgGenerated     = "Generated %s (%s, %s seconds of audio)\n"
	msgServiceHealth = "voiceclone-service at %s is %s\n"
)

type processFlags struct {
	speaker string
	input   string
	output  string
}

func newRootCmd() *cobra.Command {
	var (
		serviceURL string
		timeout    time.Duration
	)

	rootCmd := &cobra.Command{
		Use:   "voiceclone-client",
		Short: "Client for voiceclone-service",
		Long: `Upload a document and a reference voice clip to voiceclone-service and
save the spoken result as a WAV file.

Examples:
  voiceclone-client process --speaker me.wav --input report.pdf
  voiceclone-client process --speaker me.wav --input scan.png --output scan.wav
  voiceclone-client health`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&serviceURL, flagURL, defaultServiceURL, "Base URL of voiceclone-service")
	rootCmd.PersistentFlags().DurationVar(&timeout, flagTimeout, defaultTimeout, "Request timeout")

	rootCmd.AddCommand(newProcessCmd(&serviceURL, &timeout), newHealthCmd(&serviceURL))

	return rootCmd
}

func newProcessCmd(serviceURL *string, timeout *time.Duration) *cobra.Command {
	var flags processFlags

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Clone the speaker's voice reading the input document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), *timeout)
			defer cancel()

			client := newServiceClient(*serviceURL, *timeout)

			result, err := client.Process(ctx, flags.speaker, flags.input, flags.output)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), msgGenerated, result.OutputPath, formatSize(result.Bytes), result.DurationSeconds)

			return nil
		},
	}

	cmd.Flags().StringVar(&flags.speaker, flagSpeaker, "", "Reference speaker audio (WAV)")
	cmd.Flags().StringVar(&flags.input, flagInput, "", "Input document (PDF, JPG, JPEG or PNG)")
	cmd.Flags().StringVar(&flags.output, flagOutput, defaultOutputFile, "Output file path (.wav)")
	_ = cmd.MarkFlagRequired(flagSpeaker)
	_ = cmd.MarkFlagRequired(flagInput)

	return cmd
}

func newHealthCmd(serviceURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that voiceclone-service is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
			defer cancel()

			status, err := newServiceClient(*serviceURL, healthTimeout).Health(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), msgServiceHealth, *serviceURL, status)

			return nil
		},
	}
}

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

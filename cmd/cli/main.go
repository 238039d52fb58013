package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/yt-convert-go/internal/app"
	"github.com/yourusername/yt-convert-go/internal/domain"
	"github.com/yourusername/yt-convert-go/pkg/logger"
)

var (
	configPath string
	verbose    bool
	rootCmd    = &cobra.Command{
		Use:   "yt-convert",
		Short: "yt-convert - save YouTube videos as audio or video files",
		Long: `Download a YouTube video and transcode it with ffmpeg into mp3, wav, m4a, aac or mp4.
Run without arguments to be prompted for the URL and format.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runInteractive,
	}
)

// runtime holds what every command needs
type runtime struct {
	config     *domain.Config
	log        *zap.Logger
	multiLog   *logger.MultiLogger
	components *app.Components
}

func (r *runtime) Close() {
	if r.multiLog != nil {
		r.multiLog.Close()
	}
	r.log.Sync()
}

func newRuntime() (*runtime, error) {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.NewCLI(verbose)

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Output.LogsDir,
	})
	if err != nil {
		log.Warn("Job logs disabled", zap.Error(err))
		multiLog = nil
	}

	components, err := app.Build(config, log, multiLog, nil)
	if err != nil {
		if multiLog != nil {
			multiLog.Close()
		}
		return nil, err
	}

	return &runtime{config: config, log: log, multiLog: multiLog, components: components}, nil
}

func runInteractive(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	req, err := promptRequest(bufio.NewReader(cmd.InOrStdin()), out, rt.components.Pipeline.ValidateURL)
	if err != nil {
		return err
	}
	return convert(cmd, rt, req)
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a video without prompting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		format, _ := cmd.Flags().GetString("format")

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		return convert(cmd, rt, domain.DownloadRequest{SourceURL: url, Format: domain.Format(format)})
	},
}

func convert(cmd *cobra.Command, rt *runtime, req domain.DownloadRequest) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Fetching video info...")

	obs := newConsoleObserver(out)
	job, err := rt.components.Pipeline.RunJobObserved(cmd.Context(), req, obs)
	obs.Finish()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Done!")
	fmt.Fprintf(out, "Saved to: %s\n", filepath.Join(rt.components.Store.Dir(), job.Artifact.Name))
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List converted files, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		artifacts, err := rt.components.Store.List()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tCREATED")
		for _, a := range artifacts {
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				truncate(a.Name, 60),
				humanize.Bytes(uint64(a.SizeBytes)),
				humanize.Time(a.CreatedAt))
		}
		return w.Flush()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a converted file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.components.Store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	convertCmd.Flags().StringP("url", "u", "", "YouTube video URL")
	convertCmd.Flags().StringP("format", "f", "", "Output format ("+domain.FormatChoices()+")")
	convertCmd.MarkFlagRequired("url")
	convertCmd.MarkFlagRequired("format")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

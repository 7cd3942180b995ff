package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/abihf/framecast/client"
	"github.com/abihf/framecast/protocol"
	"github.com/abihf/framecast/sink"
)

type options struct {
	url     string
	timeout time.Duration
	json    bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "framecast",
		Short:         "Control a framecastd server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.url, "url", "ws://"+protocol.DefaultAddress+"/", "Server websocket URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print raw server replies")

	root.AddCommand(
		newCaptureCommand(opts),
		newSimpleCommand(opts, "undo", "Remove the most recent capture", protocol.CommandUndo),
		newListCommand(opts),
		newSimpleCommand(opts, "clear", "Discard all captures", protocol.CommandClear),
		newSimpleCommand(opts, "save", "Write all captures to disk", protocol.CommandSave),
		newSimpleCommand(opts, "status", "Show capture engine status", protocol.CommandStatus),
		newSimpleCommand(opts, "process", "Run frame processing", protocol.CommandProcess),
		newStopCommand(opts),
		newSnapshotCommand(opts),
		newHistoryCommand(),
	)
	return root
}

func withClient(cmd *cobra.Command, opts *options, fn func(ctx context.Context, c *client.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	c, err := client.Dial(ctx, opts.url)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func request(cmd *cobra.Command, opts *options, req *protocol.Req) error {
	return withClient(cmd, opts, func(ctx context.Context, c *client.Client) error {
		reply, err := c.Do(ctx, req)
		if err != nil {
			return err
		}
		if err := reply.Err(); err != nil {
			return err
		}
		return printReply(cmd.OutOrStdout(), opts.json, reply)
	})
}

func newCaptureCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "capture FLIGHT FIELD",
		Short: "Capture the current frame",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, opts, &protocol.Req{
				Command:  protocol.CommandCapture.String(),
				FlightID: args[0],
				FieldID:  args[1],
			})
		},
	}
}

func newSimpleCommand(opts *options, use, short string, command protocol.Command) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, opts, &protocol.Req{Command: command.String()})
		},
	}
}

func newListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List captures waiting to be saved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, opts, &protocol.Req{Command: protocol.CommandList.String()})
		},
	}
}

func newStopCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the capture loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *client.Client) error {
				return c.Send(ctx, &protocol.Req{Command: protocol.CommandStop.String()})
			})
		},
	}
}

func newSnapshotCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot FILE",
		Short: "Save the next streamed frame as JPEG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *client.Client) error {
				data, err := c.NextFrame(ctx)
				if err != nil {
					return err
				}
				if err := os.WriteFile(args[0], data, 0o644); err != nil {
					return errors.Wrap(err, "Can not write snapshot")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", args[0], len(data))
				return nil
			})
		},
	}
}

func newHistoryCommand() *cobra.Command {
	var dbPath string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show saved captures recorded in the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := sink.OpenManifest(dbPath)
			if err != nil {
				return err
			}
			defer manifest.Close()

			records, err := manifest.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					r.SavedAt.Format(time.DateTime),
					r.Filename,
					r.FlightID,
					r.FieldID,
					strconv.Itoa(r.SequenceNumber),
					fmt.Sprintf("%dx%d", r.Width, r.Height),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), historyTable.render(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "captures/captures.db", "Manifest database path")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show, 0 for all")
	return cmd
}

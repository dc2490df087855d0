package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/adapters/mbox"
	"github.com/mikey/signal-mail-bridge/internal/chatevent"
	"github.com/mikey/signal-mail-bridge/internal/core"
	"github.com/mikey/signal-mail-bridge/internal/di"
	"github.com/mikey/signal-mail-bridge/internal/directory"
	"github.com/mikey/signal-mail-bridge/internal/format"
	"github.com/mikey/signal-mail-bridge/internal/mimedecode"
	"github.com/mikey/signal-mail-bridge/internal/route"
)

func newInspectCmd() *cobra.Command {
	flags := &di.InspectFlags{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Decode captured input offline and show what the bridge would send",
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.ConfigFile, "config", "c", "", "Path to config file (overrides the flags below)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	pf.StringVar(&flags.GroupID, "group", "", "Home group id")
	pf.StringVar(&flags.Label, "label", "", "Group label used in mail subjects")
	pf.StringVar(&flags.Timezone, "timezone", "", "Timezone for rendered dates")

	cmd.AddCommand(newInspectMailCmd(flags), newInspectEventsCmd(flags))
	return cmd
}

func newInspectMailCmd(flags *di.InspectFlags) *cobra.Command {
	var isMbox bool

	cmd := &cobra.Command{
		Use:   "mail <file>",
		Short: "Render a raw mail, or every mail of an mbox file, as chat posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mails, err := readMails(args[0], isMbox)
			if err != nil {
				return err
			}

			container, err := di.BuildInspectContainer(flags)
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}
			return container.Invoke(func(logger *zap.Logger, dec *mimedecode.Decoder, chatFmt *format.ChatFormatter) {
				defer logger.Sync()
				printMails(cmd.OutOrStdout(), mails, dec, chatFmt)
			})
		},
	}

	cmd.Flags().BoolVar(&isMbox, "mbox", false, "Treat the file as an mbox archive")
	return cmd
}

func readMails(path string, isMbox bool) ([]core.RawMail, error) {
	if isMbox {
		return mbox.ReadFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mail file: %w", err)
	}
	return []core.RawMail{{UID: 1, Raw: data}}, nil
}

func printMails(w io.Writer, mails []core.RawMail, dec *mimedecode.Decoder, chatFmt *format.ChatFormatter) {
	for i, raw := range mails {
		fmt.Fprintf(w, "=== Mail %d ===\n", i+1)

		msg, issues, err := dec.Decode(raw.Raw)
		printIssues(w, issues)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n\n", err)
			continue
		}

		text := chatFmt.Render(msg)
		fmt.Fprintf(w, "%s\n", text.Text)
		for _, a := range text.Attachments {
			fmt.Fprintf(w, "--- follow-up %s (%s, %d bytes)\n", format.FollowUpText(a), a.ContentType, len(a.Data))
		}
		fmt.Fprintln(w)
	}
}

func newInspectEventsCmd(flags *di.InspectFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "events <file>",
		Short: "Classify captured signal-cli JSON output and show the routing decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read events file: %w", err)
			}

			container, err := di.BuildInspectContainer(flags)
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}
			return container.Invoke(func(
				logger *zap.Logger,
				dec *chatevent.Decoder,
				dir *directory.AddressDirectory,
				router *route.Router,
				mailFmt *format.MailFormatter,
			) {
				defer logger.Sync()
				printEvents(cmd.OutOrStdout(), raw, dec, dir, router, mailFmt)
			})
		},
	}
}

func printEvents(w io.Writer, raw []byte, dec *chatevent.Decoder, dir *directory.AddressDirectory, router *route.Router, mailFmt *format.MailFormatter) {
	batch, issues := dec.Decode(raw)
	printIssues(w, issues)

	forward, filtered := router.Route(batch)
	verdict := make(map[string]string, len(forward)+len(filtered))
	for _, env := range forward {
		verdict[env.Key()] = "forward"
	}
	for _, env := range filtered {
		verdict[env.Key()] = "filtered"
	}

	for _, env := range router.Flatten(batch) {
		if res := dir.Resolve(env.SourceNumber, env.SourceUUID); res.Resolved {
			env.Source = res.Name
		}
		text := format.NoText
		if env.Text != nil {
			text = strings.ReplaceAll(*env.Text, "\n", " ")
		}
		fmt.Fprintf(w, "%-8s %-14s %s\n", verdict[env.Key()], env.Pattern, mailFmt.Subject(env))
		fmt.Fprintf(w, "         account=%s group=%q attachments=%d text=%q\n",
			env.Account, env.GroupID, len(env.Attachments), text)
	}
	fmt.Fprintf(w, "\n%d forward, %d filtered, %d issues\n", len(forward), len(filtered), len(issues))
}

func printIssues(w io.Writer, issues []core.ItemError) {
	for _, issue := range issues {
		fmt.Fprintf(w, "Issue: %v\n", issue)
	}
}

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cao-dev/cao/internal/config"
	"github.com/cao-dev/cao/internal/style"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Queue and inspect messages between workers",
	RunE:  requireSubcommand,
}

var inboxSendCmd = &cobra.Command{
	Use:   "send <receiver-id> <message>...",
	Short: "Queue a message for a worker",
	Long: `Queue a message for another worker. The message is delivered as agent
input the moment the receiver is idle; a busy receiver keeps it pending.

The sender defaults to $` + config.EnvTerminalID + `, set inside every worker.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runInboxSend,
}

var inboxListCmd = &cobra.Command{
	Use:   "list <worker-id>",
	Short: "List a worker's messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runInboxList,
}

var inboxDeliverCmd = &cobra.Command{
	Use:   "deliver <worker-id>",
	Short: "Try to deliver the worker's oldest pending message now",
	Args:  cobra.ExactArgs(1),
	RunE:  runInboxDeliver,
}

var (
	inboxSender     string
	inboxListStatus string
)

func init() {
	inboxSendCmd.Flags().StringVar(&inboxSender, "from", os.Getenv(config.EnvTerminalID), "Sender worker id (default: $"+config.EnvTerminalID+")")
	inboxListCmd.Flags().StringVar(&inboxListStatus, "status", "", "Filter by status: pending, delivered, failed")
	inboxCmd.AddCommand(inboxSendCmd, inboxListCmd, inboxDeliverCmd)
	rootCmd.AddCommand(inboxCmd)
}

func runInboxSend(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	msg, err := a.inbox.Enqueue(cmd.Context(), inboxSender, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Printf("Message %d queued for %s\n", msg.ID, args[0])
	return nil
}

func runInboxList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	messages, err := a.inbox.List(cmd.Context(), args[0], inboxListStatus)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Println("No messages.")
		return nil
	}

	tbl := style.NewTable(
		style.Column{Name: "ID", Width: 5, Align: style.AlignRight},
		style.Column{Name: "FROM", Width: 10},
		style.Column{Name: "STATUS", Width: 10},
		style.Column{Name: "MESSAGE", Width: 48},
	)
	for _, m := range messages {
		tbl.AddRow(fmt.Sprintf("%d", m.ID), m.SenderID, m.Status, m.Body)
	}
	fmt.Print(tbl.Render())
	return nil
}

func runInboxDeliver(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	delivered, err := a.inbox.TryDeliver(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !delivered {
		fmt.Println("Nothing delivered (no pending messages or receiver busy).")
		return nil
	}
	fmt.Println("Delivered.")
	return nil
}

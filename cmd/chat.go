package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"crm/internal/app"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Discuss a receipt in its conversation thread",
}

var chatSendCmd = &cobra.Command{
	Use:     "send <receipt-id> <message...>",
	Short:   "Add a message to a receipt's conversation",
	Example: `  crm chat send 6f1c2e1a-... "Client says transfer was made on Friday" --sender aina`,
	Args:    cobra.MinimumNArgs(2),
	RunE:    withApp(runChatSend),
}

var chatShowCmd = &cobra.Command{
	Use:   "show <receipt-id>",
	Short: "Print a receipt's conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runChatShow),
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.AddCommand(chatSendCmd, chatShowCmd)

	chatSendCmd.Flags().String("sender", os.Getenv("USER"), "Message author")
}

func runChatSend(cmd *cobra.Command, a *app.App, args []string) error {
	receiptID := args[0]
	if _, ok := a.Receipts.Get(receiptID); !ok {
		return fmt.Errorf("receipt %q not found", receiptID)
	}
	sender, _ := cmd.Flags().GetString("sender")

	msg, err := a.Conversations.AddMessage(cmd.Context(), receiptID, strings.Join(args[1:], " "), sender)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd, msg)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Message %s sent\n", msg.ID)
	return nil
}

func runChatShow(cmd *cobra.Command, a *app.App, args []string) error {
	c, ok := a.Conversations.Conversation(args[0])
	if jsonOutput(cmd) {
		return printJSON(cmd, c)
	}
	if !ok || len(c.Messages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No messages yet")
		return nil
	}
	out := cmd.OutOrStdout()
	for _, m := range c.Messages {
		stamp := m.Timestamp.Local().Format("2006-01-02 15:04")
		if m.IsSystem() {
			fmt.Fprintf(out, "%s  * %s\n", stamp, m.Content)
			continue
		}
		fmt.Fprintf(out, "%s  %s: %s\n", stamp, m.Sender, m.Content)
	}
	return nil
}

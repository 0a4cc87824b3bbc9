package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvmn-mentors/mentor-relay/internal/application/command"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/delivery"
)

// sessionEnv is read when --session is not given.
const sessionEnv = "TG_SESSION"

var sendPlanCmd = &cobra.Command{
	Use:   "send-plan",
	Short: "Deliver the weekly plan of one order",
	Long:  `Deliver the weekly plan of one order to its student, unless the same gist was already sent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		orderID, _ := cmd.Flags().GetString("order")
		template, _ := cmd.Flags().GetString("template")
		sess, err := sessionFlag(cmd)
		if err != nil {
			return err
		}

		relay, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer relay.Close()

		var result command.DeliveryResult
		err = relay.WithSession(cmd.Context(), sess, func(ctx context.Context, m delivery.Messenger) error {
			distributor := command.NewPlanDistributor(relay.Backend, m, relay.Logger)
			var err error
			result, err = command.NewSendPlanHandler(relay.Backend, distributor).Handle(ctx, command.SendPlanCommand{
				OrderID:  orderID,
				Template: template,
			})
			return err
		})
		if result.Outcome != "" {
			if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
				return perr
			}
		}
		return err
	},
}

var sendPlansCmd = &cobra.Command{
	Use:   "send-plans",
	Short: "Deliver weekly plans to every active order of a mentor",
	RunE: func(cmd *cobra.Command, args []string) error {
		mentorID, _ := cmd.Flags().GetString("mentor")
		template, _ := cmd.Flags().GetString("template")
		sess, err := sessionFlag(cmd)
		if err != nil {
			return err
		}

		relay, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer relay.Close()

		var report *command.BatchReport
		err = relay.WithSession(cmd.Context(), sess, func(ctx context.Context, m delivery.Messenger) error {
			distributor := command.NewPlanDistributor(relay.Backend, m, relay.Logger)
			batch := command.NewBatchDistributor(relay.Backend, distributor, relay.Recorder(), relay.Logger)
			var err error
			report, err = command.NewSendPlansHandler(batch).Handle(ctx, command.SendPlansCommand{
				MentorID: mentorID,
				Template: template,
			})
			return err
		})
		if err != nil {
			return err
		}

		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		summary := report.Summary()
		printBatchSummary(cmd.ErrOrStderr(), summary)
		if failed := summary.Failed; failed > 0 {
			return fmt.Errorf("%d of %d deliveries failed", failed, len(report.Outcomes))
		}
		return nil
	},
}

// sessionFlag returns --session or the TG_SESSION variable.
func sessionFlag(cmd *cobra.Command) (string, error) {
	sess, _ := cmd.Flags().GetString("session")
	if sess == "" {
		sess = os.Getenv(sessionEnv)
	}
	sess = strings.TrimSpace(sess)
	if sess == "" {
		return "", errors.New("a Telegram session is required: pass --session or set " + sessionEnv)
	}
	return sess, nil
}

func init() {
	sendPlanCmd.Flags().String("order", "", "order UUID")
	sendPlanCmd.Flags().String("session", "", "Telegram string session (default $"+sessionEnv+")")
	sendPlanCmd.Flags().String("template", "", "message template with {gist} and {comment}")
	_ = sendPlanCmd.MarkFlagRequired("order")

	sendPlansCmd.Flags().String("mentor", "", "mentor UUID")
	sendPlansCmd.Flags().String("session", "", "Telegram string session (default $"+sessionEnv+")")
	sendPlansCmd.Flags().String("template", "", "message template with {gist} and {comment}")
	_ = sendPlansCmd.MarkFlagRequired("mentor")
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/dvmn-mentors/mentor-relay/internal/application/query"
)

var studyDaysCmd = &cobra.Command{
	Use:   "study-days",
	Short: "Count the recent study days of an order's student",
	RunE: func(cmd *cobra.Command, args []string) error {
		orderID, _ := cmd.Flags().GetString("order")
		days, _ := cmd.Flags().GetInt("days")

		relay, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer relay.Close()

		result, err := relay.StudyDays.Handle(cmd.Context(), query.GetStudyDaysQuery{
			OrderID:    orderID,
			WindowDays: days,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	studyDaysCmd.Flags().String("order", "", "order UUID")
	studyDaysCmd.Flags().Int("days", 0, "look-back window in days (default from ATTENDANCE_WINDOW_DAYS)")
	_ = studyDaysCmd.MarkFlagRequired("order")
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run and inspect dispatch passes",
}

var dispatchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one dispatch pass over every user now",
	RunE:  runDispatchRun,
}

var dispatchTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send one random product for a user, ignoring the time window",
	RunE:  runDispatchTest,
}

var dispatchHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent pass reports",
	RunE:  runDispatchHistory,
}

var (
	dispatchUser  string
	historyLimit  int
	historyAsJSON bool
)

func init() {
	dispatchTestCmd.Flags().StringVarP(&dispatchUser, "user", "u", "", "User ID")
	_ = dispatchTestCmd.MarkFlagRequired("user")

	dispatchHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of reports to show")
	dispatchHistoryCmd.Flags().BoolVar(&historyAsJSON, "json", false, "Print reports as JSON")

	dispatchCmd.AddCommand(dispatchRunCmd)
	dispatchCmd.AddCommand(dispatchTestCmd)
	dispatchCmd.AddCommand(dispatchHistoryCmd)
}

func runDispatchRun(cmd *cobra.Command, args []string) error {
	a, _, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Dispatcher().RunPass(context.Background(), time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("Pass %s finished in %s\n", report.ID, report.Duration().Round(time.Millisecond))
	for _, out := range report.Outcomes {
		line := fmt.Sprintf("  %-24s %s", out.UserID, out.Status)
		if out.ProductTitle != "" {
			line += "  " + out.ProductTitle
		}
		if out.Error != "" {
			line += "  (" + out.Error + ")"
		}
		fmt.Println(line)
	}
	for status, n := range report.Counts() {
		fmt.Printf("%s: %d\n", status, n)
	}
	return nil
}

func runDispatchTest(cmd *cobra.Command, args []string) error {
	a, _, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := a.Dispatcher().TestSend(context.Background(), dispatchUser)
	fmt.Printf("Status: %s\n", out.Status)
	if out.ProductTitle != "" {
		fmt.Printf("Product: %s\n", out.ProductTitle)
	}
	for _, d := range out.Deliveries {
		if d.OK() {
			fmt.Printf("  %s -> %s\n", d.ChatID, d.DeliveryID)
		} else {
			fmt.Printf("  %s failed: %s\n", d.ChatID, d.Error)
		}
	}
	if out.Error != "" {
		return errors.New(out.Error)
	}
	return nil
}

func runDispatchHistory(cmd *cobra.Command, args []string) error {
	a, _, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reports, err := a.History().Recent(historyLimit)
	if err != nil {
		return err
	}

	if historyAsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	if len(reports) == 0 {
		fmt.Println("No reports")
		return nil
	}
	for _, r := range reports {
		counts := r.Counts()
		kind := "pass"
		if r.Test {
			kind = "test"
		}
		fmt.Printf("%s  %s  %-4s  users=%d sent=%d failed=%d\n",
			r.StartedAt.Local().Format(time.DateTime), r.ID, kind,
			len(r.Outcomes), counts["sent"], counts["failed"])
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxzi/ofertabot/internal/models"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled sends",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's schedule, advancing recurring entries",
	RunE:  runScheduleList,
}

var scheduleBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Spread products over free slots starting at a date",
	Example: `  ofertabot schedule batch -u user-1 --all --start 2024-06-01 --times 10:00,14:00,19:00
  ofertabot schedule batch -u user-1 --product 9f1c... --start 2024-06-01 --times 12:00`,
	RunE: runScheduleBatch,
}

var (
	scheduleUser    string
	scheduleProduct string
	scheduleAll     bool
	scheduleStart   string
	scheduleTimes   []string
)

func init() {
	scheduleCmd.PersistentFlags().StringVarP(&scheduleUser, "user", "u", "", "User ID")
	_ = scheduleCmd.MarkPersistentFlagRequired("user")

	scheduleBatchCmd.Flags().StringVar(&scheduleProduct, "product", "", "Product ID")
	scheduleBatchCmd.Flags().BoolVar(&scheduleAll, "all", false, "Schedule every active product")
	scheduleBatchCmd.Flags().StringVar(&scheduleStart, "start", "", "Start date (YYYY-MM-DD) in the dispatch timezone")
	scheduleBatchCmd.Flags().StringSliceVar(&scheduleTimes, "times", nil, "Times of day (HH:MM), comma separated")
	scheduleBatchCmd.MarkFlagsMutuallyExclusive("product", "all")
	scheduleBatchCmd.MarkFlagsOneRequired("product", "all")
	_ = scheduleBatchCmd.MarkFlagRequired("start")
	_ = scheduleBatchCmd.MarkFlagRequired("times")

	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleBatchCmd)
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	a, _, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.Schedules()
	entries, err := svc.List(context.Background(), scheduleUser)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No scheduled sends")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%s  %-7s  %-6s  %s\n",
			e.ScheduledTime.In(svc.Location()).Format("2006-01-02 15:04"),
			e.Status, e.Frequency, e.ProductTitle)
	}
	return nil
}

func runScheduleBatch(cmd *cobra.Command, args []string) error {
	a, _, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.Schedules()
	start, err := time.ParseInLocation(time.DateOnly, scheduleStart, svc.Location())
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}

	times := make([]models.Clock, 0, len(scheduleTimes))
	for _, s := range scheduleTimes {
		c, err := models.ParseClock(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid --times: %w", err)
		}
		times = append(times, c)
	}

	target := models.SingleProduct(scheduleProduct)
	if scheduleAll {
		target = models.AllActiveProducts()
	}

	res, err := svc.Batch(context.Background(), scheduleUser, target, start, times)
	if err != nil {
		return err
	}

	for _, e := range res.Entries {
		fmt.Printf("  %s  %s\n", e.ScheduledTime.In(svc.Location()).Format("2006-01-02 15:04"), e.ProductTitle)
	}
	fmt.Printf("Scheduled %d product(s)\n", len(res.Entries))
	for _, p := range res.Unscheduled {
		fmt.Printf("  no free slot for %s\n", p.Title)
	}
	return nil
}

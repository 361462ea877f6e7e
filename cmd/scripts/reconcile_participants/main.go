package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/models"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/pkg/logger"
	"github.com/olekukonko/tablewriter"
)

// reconcile_participants reports rooms whose participant counter disagrees
// with their membership rows, and rewrites the counters with -apply.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config.yaml")
	apply := flag.Bool("apply", false, "Rewrite drifted counters")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	db, err := models.Open(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	rooms := services.NewRoomService(db)

	drift, err := rooms.FindCounterDrift(ctx)
	if err != nil {
		logger.Fatalf("Failed to scan rooms: %v", err)
	}
	if len(drift) == 0 {
		fmt.Println("All room counters match their membership rows.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room ID", "Name", "Recorded", "Actual", "Limit", "Stored"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, d := range drift {
		stored := "-"
		if *apply {
			count, err := rooms.RepairCounter(ctx, d.RoomID)
			if err != nil {
				logger.Error().Err(err).Uint("room_id", d.RoomID).Msg("failed to repair counter")
				stored = "error"
			} else {
				stored = strconv.Itoa(count)
			}
		}
		table.Append([]string{
			strconv.FormatUint(uint64(d.RoomID), 10),
			d.Name,
			strconv.Itoa(d.Recorded),
			strconv.Itoa(d.Actual),
			strconv.Itoa(d.ParticipantLimit),
			stored,
		})
	}
	table.Render()

	if !*apply {
		fmt.Printf("\n%d room(s) drifted. Re-run with -apply to fix them.\n", len(drift))
	}
}

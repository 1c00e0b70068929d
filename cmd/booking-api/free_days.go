package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/medagenda/booking-api/internal/dto"
	"github.com/medagenda/booking-api/internal/repository"
	"github.com/medagenda/booking-api/internal/service"
	"github.com/medagenda/booking-api/pkg/config"
	"github.com/medagenda/booking-api/pkg/logger"
)

func freeDaysCmd() *cobra.Command {
	var q dto.FreeDaysQuery

	cmd := &cobra.Command{
		Use:   "free-days",
		Short: "Print the next days with a free slot for a clinic and specialty",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logr.Sync() //nolint:errcheck

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := service.NewAvailabilityService(
				repository.NewActingRepository(db),
				repository.NewScheduleBlockRepository(db),
				repository.NewAppointmentRepository(db),
				nil,
				nil,
				logr,
				service.AvailabilityServiceConfig{
					MaxScanDays:    cfg.Availability.MaxScanDays,
					DefaultNumDays: cfg.Availability.DefaultNumDays,
					MaxNumDays:     cfg.Availability.MaxNumDays,
				},
			)

			days, err := svc.FreeDays(cmd.Context(), q)
			if err != nil {
				logr.Debug("free days query failed", zap.Error(err))
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(days)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&q.ClinicID, "clinic", "", "clinic id")
	flags.StringVar(&q.SpecialtyID, "specialty", "", "specialty id")
	flags.StringVar(&q.StartDate, "start", "", "first day to scan (YYYY-MM-DD, defaults to today)")
	flags.IntVar(&q.NumDays, "num-days", 0, "number of free days to return (capped by AVAILABILITY_MAX_NUM_DAYS)")
	flags.StringVar(&q.FirstDayStartTime, "cutoff", "", "on the start day only count blocks starting after this time (HH:MM)")
	_ = cmd.MarkFlagRequired("clinic")
	_ = cmd.MarkFlagRequired("specialty")

	return cmd
}

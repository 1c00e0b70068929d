package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title Clinic Booking API
// @version 1.0.0
// @description Appointment booking and availability engine for clinics.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	root := &cobra.Command{
		Use:           "booking-api",
		Short:         "Clinic appointment booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), freeDaysCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/JustJay7/pje-capture/internal/app"
	"github.com/JustJay7/pje-capture/internal/capture"
	"github.com/JustJay7/pje-capture/internal/config"
	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/pkg/logger"
	"github.com/spf13/cobra"
)

type runFlags struct {
	captureType  string
	credentialID uint
	courtID      uint
	from         string
	to           string
	status       string
	deadlines    []string
	skipTimeline bool
	skipParties  bool
}

var flags runFlags

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.captureType, "type", capture.TypeCombined, "Capture type: "+strings.Join(capture.Types, ", "))
	f.UintVar(&flags.credentialID, "credential", 0, "Credential id")
	f.UintVar(&flags.courtID, "court", 0, "Court config id")
	f.StringVar(&flags.from, "from", "", "First hearing date (YYYY-MM-DD)")
	f.StringVar(&flags.to, "to", "", "Last hearing date (YYYY-MM-DD)")
	f.StringVar(&flags.status, "status", "", "Hearing status for hearing captures (M, F or C)")
	f.StringSliceVar(&flags.deadlines, "deadlines", nil, "Deadline filters for pending filing captures (N, I)")
	f.BoolVar(&flags.skipTimeline, "skip-timeline", false, "Do not fetch case timelines")
	f.BoolVar(&flags.skipParties, "skip-parties", false, "Do not fetch case parties")
	_ = rootCmd.MarkFlagRequired("credential")
	_ = rootCmd.MarkFlagRequired("court")
	rootCmd.RunE = runCapture
}

func (f runFlags) request() (capture.Request, error) {
	if !capture.ValidType(f.captureType) {
		return capture.Request{}, fmt.Errorf("%w: %s", capture.ErrUnknownType, f.captureType)
	}
	from, err := driver.ParseTimestamp(f.from)
	if err != nil {
		return capture.Request{}, fmt.Errorf("invalid --from: %w", err)
	}
	to, err := driver.ParseTimestamp(f.to)
	if err != nil {
		return capture.Request{}, fmt.Errorf("invalid --to: %w", err)
	}
	return capture.Request{
		CredentialID: f.credentialID,
		CourtID:      f.courtID,
		Params: capture.Params{
			From:            from,
			To:              to,
			HearingStatus:   strings.ToUpper(f.status),
			DeadlineFilters: f.deadlines,
			SkipTimeline:    f.skipTimeline,
			SkipParties:     f.skipParties,
		},
	}, nil
}

// runCapture runs one capture synchronously and prints its result as JSON
func runCapture(cmd *cobra.Command, args []string) error {
	req, err := flags.request()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer log.Sync()

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	deps, closeStores, err := app.Build(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeStores()

	result, runErr := capture.NewService(deps).Run(ctx, flags.captureType, req)
	if result != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return runErr
}

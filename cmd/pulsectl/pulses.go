package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pulsekeep/pulsekeep/internal/model"
)

func init() {
	var userID string

	pulsesCmd := &cobra.Command{Use: "pulses", Short: "Pulse operations"}
	pulsesCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	_ = pulsesCmd.MarkPersistentFlagRequired("user")

	// stop
	var (
		pulseID    string
		intent     string
		reflection string
		emotion    string
		energy     string
		durationS  int64
	)
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Record a stopped pulse and queue it for enrichment",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = storage.Close() }()

			if pulseID == "" {
				pulseID = uuid.NewString()
			}
			now := time.Now().UTC()
			sp := &model.StoppedPulse{
				Pulse: model.Pulse{
					UserID:     userID,
					PulseID:    pulseID,
					Intent:     intent,
					EnergyType: model.EnergyType(energy),
					StartedAt:  now.Add(-time.Duration(durationS) * time.Second),
				},
				StoppedAt:       now,
				DurationSeconds: durationS,
				Reflection:      reflection,
				Emotion:         emotion,
			}
			if err := model.ValidateStopped(sp); err != nil {
				return err
			}
			if err := storage.Store.Pulses().PutStopped(ctx, sp); err != nil {
				if errors.Is(err, model.ErrDuplicate) {
					return fmt.Errorf("pulse %s already stopped", pulseID)
				}
				return err
			}
			return printJSON(sp)
		},
	}
	stopCmd.Flags().StringVarP(&pulseID, "pulse", "p", "", "Pulse ID (generated when omitted)")
	stopCmd.Flags().StringVarP(&intent, "intent", "i", "", "What the session was for (required)")
	stopCmd.Flags().StringVarP(&reflection, "reflection", "r", "", "Free-form reflection text")
	stopCmd.Flags().StringVarP(&emotion, "emotion", "e", "", "Emotion tag")
	stopCmd.Flags().StringVar(&energy, "energy", "", "Energy type: creation|deep_work|learning|connection|maintenance|recovery")
	stopCmd.Flags().Int64VarP(&durationS, "duration", "d", 0, "Session duration in seconds (required)")
	_ = stopCmd.MarkFlagRequired("intent")
	_ = stopCmd.MarkFlagRequired("energy")
	_ = stopCmd.MarkFlagRequired("duration")
	pulsesCmd.AddCommand(stopCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get PULSE_ID",
		Short: "Get the ingested record for a pulse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = storage.Close() }()

			ip, err := storage.Store.Ingested().Get(ctx, userID, args[0])
			if err == nil {
				return printJSON(ip)
			}
			if !errors.Is(err, model.ErrNotFound) {
				return err
			}
			// Not ingested yet; show the stopped snapshot if one exists.
			sp, err := storage.Store.Pulses().GetStopped(ctx, userID, args[0])
			if err != nil {
				return err
			}
			fmt.Println("pulse stopped but not yet ingested:")
			return printJSON(sp)
		},
	}
	pulsesCmd.AddCommand(getCmd)

	// list
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List ingested pulses, most recently stopped first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = storage.Close() }()

			records, err := storage.Store.Ingested().List(ctx, userID, limit)
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to return")
	pulsesCmd.AddCommand(listCmd)

	rootCmd.AddCommand(pulsesCmd)
}

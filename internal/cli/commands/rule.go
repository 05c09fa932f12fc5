package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRuleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rule",
		Short:   "Alert rule commands",
		Aliases: []string{"rules", "r"},
	}

	cmd.AddCommand(newRuleListCommand())
	cmd.AddCommand(newRuleMuteCommand())
	cmd.AddCommand(newRuleUnmuteCommand())
	cmd.AddCommand(newRuleEvaluatePendingCommand())

	return cmd
}

func newRuleListCommand() *cobra.Command {
	var vesselID uint

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List alert rules",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}
			rules, err := c.ListRules(cmd.Context(), vesselID)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tVESSEL\tNAME\tCONDITION\tENABLED\tMUTED\tTRIGGERS")
			for _, r := range rules {
				muted := "no"
				if r.IsMuted {
					muted = "until " + formatTime(r.UnmuteAt)
					if r.UnmuteAt == nil {
						muted = "yes"
					}
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%s %s %g\t%t\t%s\t%d\n",
					r.ID, r.VesselID, r.Name, r.FieldName, r.Operator, r.Threshold, r.Enabled, muted, r.TriggerCount)
			}
			return w.Flush()
		},
	}

	cmd.Flags().UintVar(&vesselID, "vessel", 0, "Filter by vessel ID")
	return cmd
}

func newRuleMuteCommand() *cobra.Command {
	var minutes int

	cmd := &cobra.Command{
		Use:   "mute [rule_id]",
		Short: "Mute a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := apiClient()
			if err != nil {
				return err
			}
			rule, err := c.MuteRule(cmd.Context(), id, minutes)
			if err != nil {
				return fmt.Errorf("failed to mute rule: %w", err)
			}
			if rule.UnmuteAt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Rule %d muted until %s\n", id, formatTime(rule.UnmuteAt))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Rule %d muted\n", id)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&minutes, "minutes", 0, "Mute duration; 0 mutes until unmuted")
	return cmd
}

func newRuleUnmuteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unmute [rule_id]",
		Short: "Unmute a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := apiClient()
			if err != nil {
				return err
			}
			if _, err := c.UnmuteRule(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to unmute rule: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule %d unmuted\n", id)
			return nil
		},
	}
}

func newRuleEvaluatePendingCommand() *cobra.Command {
	var vesselID uint

	cmd := &cobra.Command{
		Use:   "evaluate-pending",
		Short: "Evaluate stored reports that have not been evaluated yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}
			res, err := c.EvaluatePending(cmd.Context(), vesselID)
			if err != nil {
				return fmt.Errorf("failed to evaluate pending reports: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Evaluated %d reports, %d alerts triggered, %d failed\n",
				res.EntriesEvaluated, res.TotalAlertsTriggered, res.Failed)
			return nil
		},
	}

	cmd.Flags().UintVar(&vesselID, "vessel", 0, "Restrict to one vessel")
	return cmd
}

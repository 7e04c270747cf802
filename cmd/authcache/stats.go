package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/entrhq/authcache/pkg/accounts"
	"github.com/entrhq/authcache/pkg/audit"
	"github.com/entrhq/authcache/pkg/logging"
	"github.com/entrhq/authcache/pkg/snapshot"
)

func (a *app) statsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the authentication audit log",
		Long: `Show how many tests asked for session reuse versus a fresh login, and how
often each account actually went through the login form.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			stats, err := audit.New(cfg.CacheDir, cfg.RunID).Stats()
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw statistics as JSON")
	return cmd
}

type userTally struct {
	username string
	logins   int
	reuses   int
}

func tallyByUser(records []audit.Record) []userTally {
	byUser := make(map[string]*userTally)
	for _, r := range records {
		t, ok := byUser[r.Username]
		if !ok {
			t = &userTally{username: r.Username}
			byUser[r.Username] = t
		}
		if r.Action == audit.ActionLogin {
			t.logins++
		} else {
			t.reuses++
		}
	}

	tallies := make([]userTally, 0, len(byUser))
	for _, t := range byUser {
		tallies = append(tallies, *t)
	}
	sort.Slice(tallies, func(i, j int) bool { return tallies[i].username < tallies[j].username })
	return tallies
}

func printStats(w io.Writer, stats audit.Stats) {
	st := newStyles(w)
	if stats.Total == 0 {
		fmt.Fprintln(w, st.muted.Render("No authentication events recorded."))
		return
	}

	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(st.label.Render(label) + value + "\n")
	}
	b.WriteString(st.header.Render("Authentication audit") + "\n\n")
	row("Reuse-preferred tests", fmt.Sprint(stats.ReuseCount))
	row("Fresh-login tests", fmt.Sprint(stats.FreshCount))
	row("Form logins", st.warn.Render(fmt.Sprint(stats.Logins())))
	row("Session reuses", st.good.Render(fmt.Sprint(stats.Reuses())))
	row("Total", fmt.Sprint(stats.Total))

	b.WriteString("\n" + st.title.Render("Per account") + "\n")
	for _, t := range tallyByUser(stats.Records) {
		row("  "+t.username, fmt.Sprintf("%d logins, %d reuses", t.logins, t.reuses))
	}

	fmt.Fprintln(w, st.box.Render(strings.TrimRight(b.String(), "\n")))
}

func (a *app) clearCmd() *cobra.Command {
	var snapshots bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Reset the audit log and optionally the session cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger := logging.New("clear", cmd.ErrOrStderr())

			// A run ID of its own so the once-per-run guard never skips this.
			if err := audit.New(cfg.CacheDir, "manual-"+uuid.NewString(), audit.WithLogger(logger)).Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Audit log cleared.")

			if !snapshots {
				return nil
			}
			store := snapshot.NewStore(cfg.CacheDir, logger)
			removed := 0
			for _, name := range accounts.Usernames(accounts.DefaultPool()) {
				ok, err := store.Remove(name)
				if err != nil {
					return err
				}
				if ok {
					removed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session snapshots.\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&snapshots, "snapshots", false, "also delete the cached session of every pool account")
	return cmd
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/authcache/pkg/accounts"
	"github.com/entrhq/authcache/pkg/config"
	"github.com/entrhq/authcache/pkg/logging"
	"github.com/entrhq/authcache/pkg/session"
	"github.com/entrhq/authcache/pkg/snapshot"
)

func (a *app) accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List the test accounts, their workers and cached sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			return printAccounts(cmd.OutOrStdout(), cfg, accounts.DefaultPool(), time.Now())
		},
	}
	cmd.Flags().IntP("workers", "w", 0, "number of workers to show slots for")
	a.bind(cmd, "workers", "run.workers")
	return cmd
}

// snapshotStatus describes the cached session of username as seen at now.
func snapshotStatus(store *snapshot.Store, username string, now time.Time) (string, bool) {
	snap, ok, err := store.Load(username)
	if err != nil {
		return "corrupt", false
	}
	if !ok {
		return "none", false
	}

	raw := snap[session.StorageKey]
	err = session.Validate(raw, username, now)
	switch {
	case err == nil:
		var s session.Session
		_ = json.Unmarshal([]byte(raw), &s)
		return "valid until " + s.ExpiresAt, true
	case errors.Is(err, session.ErrExpired):
		return "expired", false
	default:
		return "invalid (" + err.Error() + ")", false
	}
}

func printAccounts(w io.Writer, cfg *config.Config, pool []accounts.Account, now time.Time) error {
	st := newStyles(w)
	store := snapshot.NewStore(cfg.CacheDir, logging.Discard("snapshot"))

	slots := make(map[string][]string, len(pool))
	for id := 0; id < cfg.Run.Workers; id++ {
		name := pool[accounts.Index(id, len(pool))].Username
		slots[name] = append(slots[name], fmt.Sprint(id))
	}

	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("%d accounts, %d workers", len(pool), cfg.Run.Workers)))
	for _, acct := range pool {
		status, valid := snapshotStatus(store, acct.Username, now)
		styled := st.muted.Render(status)
		if valid {
			styled = st.good.Render(status)
		} else if status != "none" {
			styled = st.warn.Render(status)
		}

		workers := st.muted.Render("-")
		if ids := slots[acct.Username]; len(ids) > 0 {
			workers = strings.Join(ids, ",")
		}
		fmt.Fprintf(w, "%s %-8s workers %-8s %s\n", st.label.Render(acct.Username), acct.Role, workers, styled)
	}
	return nil
}

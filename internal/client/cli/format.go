package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/boleyla/panel/internal/client/client"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// nowFn is a test seam for relative times.
var nowFn = time.Now

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row(header))
	return tw
}

func bytesText(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

func limitText(p *int64) string {
	if p == nil {
		return "unlimited"
	}
	return bytesText(*p)
}

func timeText(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return fmt.Sprintf("%s UTC (%s)", t.UTC().Format(time.DateTime), humanize.RelTime(*t, nowFn(), "ago", "from now"))
}

func flags(st *client.TrafficStats) string {
	switch {
	case st.IsExpired && st.IsQuotaExceeded:
		return "expired, over quota"
	case st.IsExpired:
		return "expired"
	case st.IsQuotaExceeded:
		return "over quota"
	}
	return "ok"
}

func printStats(w io.Writer, st *client.TrafficStats) {
	tw := newTable("field", "value")
	tw.AppendRows([]table.Row{
		{"account", fmt.Sprintf("%d (%s)", st.AccountID, st.Username)},
		{"upload", bytesText(st.Upload)},
		{"download", bytesText(st.Download)},
		{"total", bytesText(st.Total)},
		{"limit", limitText(st.DataLimit)},
		{"usage", fmt.Sprintf("%.1f%%", st.UsagePercent)},
		{"resets", humanize.Comma(int64(st.ResetCount))},
		{"last reset", timeText(st.LastResetAt)},
		{"expires", timeText(st.ExpireAt)},
		{"status", flags(st)},
	})
	fmt.Fprintln(w, tw.Render())
}

func printStatsList(w io.Writer, rows []client.TrafficStats) {
	tw := newTable("id", "username", "total", "limit", "usage", "status")
	for i := range rows {
		st := &rows[i]
		tw.AppendRow(table.Row{st.AccountID, st.Username, bytesText(st.Total), limitText(st.DataLimit), fmt.Sprintf("%.1f%%", st.UsagePercent), flags(st)})
	}
	fmt.Fprintln(w, tw.Render())
}

func printTop(w io.Writer, rows []client.TopUser) {
	tw := newTable("#", "id", "username", "upload", "download", "total")
	for i, u := range rows {
		tw.AppendRow(table.Row{i + 1, u.AccountID, u.Username, bytesText(u.Upload), bytesText(u.Download), bytesText(u.Total)})
	}
	fmt.Fprintln(w, tw.Render())
}

func printTotals(w io.Writer, t *client.Totals) {
	tw := newTable("accounts", "upload", "download", "total")
	tw.AppendRow(table.Row{humanize.Comma(t.Accounts), bytesText(t.Upload), bytesText(t.Download), bytesText(t.Total)})
	fmt.Fprintln(w, tw.Render())
}

func printSnapshots(w io.Writer, snaps []client.Snapshot) {
	if len(snaps) == 0 {
		fmt.Fprintln(w, "No snapshots in this window.")
		return
	}
	tw := newTable("id", "recorded", "upload", "download", "total")
	for _, s := range snaps {
		tw.AppendRow(table.Row{s.ID, timeText(&s.RecordedAt), bytesText(s.Upload), bytesText(s.Download), bytesText(s.Total)})
	}
	fmt.Fprintln(w, tw.Render())
}

func printActivity(w io.Writer, entries []client.ActivityEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No activity recorded.")
		return
	}
	tw := newTable("when", "actor", "action", "details", "ip")
	for _, e := range entries {
		actor := "system"
		if e.ActorID != nil {
			actor = strconv.FormatInt(*e.ActorID, 10)
		}
		tw.AppendRow(table.Row{timeText(&e.CreatedAt), actor, e.Action, e.Details, e.IPAddress})
	}
	fmt.Fprintln(w, tw.Render())
}

func printLedger(w io.Writer, l *client.Ledger) {
	fmt.Fprintf(w, "Account %d reset (reset #%d at %s).\n", l.AccountID, l.ResetCount, timeText(l.LastResetAt))
}

func printAccount(w io.Writer, a *client.Account) {
	fmt.Fprintf(w, "Account %d (%s): limit %s, expires %s\n", a.AccountID, a.Username, limitText(a.DataLimit), timeText(a.ExpireAt))
}

func printSync(w io.Writer, r *client.SyncResult) {
	changed := "unchanged"
	if r.Changed {
		changed = "written"
	}
	fmt.Fprintf(w, "Sync %s: %s, %s %s in %s\n", r.RunID, r.Status, r.ArtifactPath, changed, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}
	if r.ArchiveKey != "" {
		fmt.Fprintf(w, "Archived as %s\n", r.ArchiveKey)
	}
	if r.ArchiveError != "" {
		fmt.Fprintf(w, "Archive failed: %s\n", r.ArchiveError)
	}

	var failed []client.SyncItem
	for _, it := range r.Items {
		if !it.OK {
			failed = append(failed, it)
		}
	}
	fmt.Fprintf(w, "%d of %d profiles rendered\n", len(r.Items)-len(failed), len(r.Items))
	if len(failed) == 0 {
		return
	}
	tw := newTable("profile", "code", "error")
	for _, it := range failed {
		tw.AppendRow(table.Row{it.ProfileID, it.Code, it.Error})
	}
	fmt.Fprintln(w, tw.Render())
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/boleyla/panel/internal/client/client"
	"github.com/boleyla/panel/internal/cryptox"
	"github.com/boleyla/panel/internal/filex"
	"github.com/boleyla/panel/internal/server/auth"
	"github.com/boleyla/panel/internal/server/models"
)

var errUsage = errors.New("usage")

const helpText = `Commands:
  stats <account_id>                  traffic statistics of one account
  me                                  your own traffic statistics
  list [offset] [limit]               statistics of all accounts
  top [limit]                         heaviest accounts by total traffic
  totals                              traffic summed over all accounts
  snapshot <account_id>               record the current counters
  history <account_id> [days]         recorded snapshots, newest first
  reset <account_id> [nosave] [-y]    zero the counters
  extend <account_id> <days>          push the expiry date forward
  add <account_id> <gigabytes>        raise the data limit
  activity <account_id> [limit]       recent admin actions on an account
  sync                                render and publish the proxy config
  ping                                check the server
  token <account_id> <role> [ttl]     mint an access token (needs the secret key)
  unseal <file> [out]                 decrypt an archived config (needs the archive passphrase)
  help | exit | quit`

func usage(s string) error {
	return fmt.Errorf("%w: %s", errUsage, s)
}

func idArg(args []string, i int, name string) (int64, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing %s", name)
	}
	n, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, args[i])
	}
	return n, nil
}

func optInt(args []string, i int, name string, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, args[i])
	}
	return n, nil
}

// Exec runs one command. args[0] is the command name.
func (a *App) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("no command")
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(a.out, helpText)
		return nil
	case "stats":
		return a.stats(ctx, rest)
	case "me":
		return a.me(ctx)
	case "list", "l":
		return a.list(ctx, rest)
	case "top":
		return a.top(ctx, rest)
	case "totals":
		return a.totals(ctx)
	case "snapshot":
		return a.snapshot(ctx, rest)
	case "history":
		return a.history(ctx, rest)
	case "reset":
		return a.reset(ctx, rest)
	case "extend":
		return a.extend(ctx, rest)
	case "add":
		return a.add(ctx, rest)
	case "activity":
		return a.activity(ctx, rest)
	case "sync":
		return a.sync(ctx)
	case "ping":
		return a.ping(ctx)
	case "token":
		return a.mintToken(rest)
	case "unseal":
		return a.unseal(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
}

func (a *App) stats(ctx context.Context, args []string) error {
	id, err := idArg(args, 0, "account_id")
	if err != nil {
		return usage("stats <account_id>: " + err.Error())
	}
	return a.call(ctx, func(ctx context.Context, c client.Client) error {
		st, err := c.TrafficStats(ctx, id)
		if err != nil {
			return err
		}
		printStats(a.out, st)
		return nil
	})
}

func (a *App) me(ctx context.Context) error {
	return a.call(ctx, func(ctx context.Context, c client.Client) error {
		st, err := c.MyTrafficStats(ctx)
		if err != nil {
			return err
		}
		printStats(a.out, st)
		return nil
	})
}

func (a *App) list(ctx context.Context, args []string) error {
	offset, err := optInt(args, 0, "offset", 0)
	if err != nil {
		return usage("list [offset] [limit]: " + err.Error())
	}
	limit, err := optInt(args, 1, "limit", 50)
	if err != nil {
		return usage("list [offset] [limit]: " + err.Error())
	}
	return a.call(ctx, func(ctx context.Context, c client.Client) error {
		rows, err := c.ListTrafficStats(ctx, offset, limit)
		if err != nil {
			return err
		}
		printStatsList(a.out, rows)
		return nil
	})
}

func (a *App) top(ctx context.Context, args []string) error {
	limit, err := optInt(args, 0, "limit", 10)
	if err != nil {
		return usage("top [limit]: " + err.Error())
	}
	return a.call(ctx, func(ctx context.Context, c client.Client) error {
		rows, err := c.TopUsers(ctx, limit)
		if err != nil {
			return err
		}
		printTop(a.out, rows)
		return nil
	})
}

func (a *App) totals(ctx context.Context) error {
	return a.call(ctx, func(ctx context.Context, c client.Client) error {
		t, err := c.SystemTotals(ctx)
		if err != nil {
			return err
		}
		printTotals(a.out, t)
		return nil
	})
}

func (a *App) snapshot(ctx context.Context, args []string) error {
	id, err := idArg(args, 0, "account_id")
	if err != nil {
		return usage("snapshot <account_id>: " + err.Error())
	}
	return a.call(ctx, func(ctx context.Context, c client.Client) error {
		s, err := c.CreateSnapshot(ctx, id)
		if err != nil {
			return err
		}
		printSnapshots(a.out, []client.Snapshot{*s})
		return nil
	})
}

func (a *App) history(ctx context.Context, args []string) error {
	id, err := idArg(args, 0, "account_id")
	if err != nil {
		return usage("history <account_id> [days]: " + err.Error())
	}
	days, err := optInt(args, 1, "days", 30)
	if err != nil {
		return usage("history <account_id> [days]: " + err.Error())
	}
	return a.call(ctx, func(ctx context.Context, c client.Client) error {
		snaps, err := c.History(ctx, id, days)
		if err != nil {
			return err
		}
		printSnapshots(a.out, snaps)
		return nil
	})
}

// reset asks for confirmation on a terminal unless -y is given.
func (a *App) reset(ctx context.Context, args []string) error {
	yes := slices.Contains(args, "-y")
	args = slices.DeleteFunc(slices.Clone(args), func(s string) bool { return s == "-y" })

	id, err := idArg(args, 0, "account_id")
	if err != nil {
		return usage("reset <account_id> [nosave] [-y]: " + err.Error())
	}
	save := true
	if len(args) > 1 {
		if args[1] != "nosave" {
			return usage("reset <account_id> [nosave] [-y]")
		}
		save = false
	}

	if !yes && isTerminal(int(os.Stdin.Fd())) {
		answer, err := GetSimpleText(a.reader, fmt.Sprintf("Reset traffic of account %d? [y/N]", id), a.out)
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			fmt.Fprintln(a.out, "Cancelled.")
			return nil
		}
	}

	return a.call(ctx, func(ctx context.Context, c client.Client) error {
		l, err := c.ResetTraffic(ctx, id, save)
		if err != nil {
			return err
		}
		printLedger(a.out, l)
		return nil
	})
}

func (a *App) extend(ctx context.Context, args []string) error {
	id, err := idArg(args, 0, "account_id")
	if err != nil {
		return usage("extend <account_id> <days>: " + err.Error())
	}
	if len(args) < 2 {
		return usage("extend <account_id> <days>")
	}
	days, err := strconv.Atoi(args[1])
	if err != nil {
		return usage("extend <account_id> <days>: days must be an integer")
	}
	return a.call(ctx, func(ctx context.Context, c client.Client) error {
		acc, err := c.ExtendExpiry(ctx, id, days)
		if err != nil {
			return err
		}
		printAccount(a.out, acc)
		return nil
	})
}

func (a *App) add(ctx context.Context, args []string) error {
	id, err := idArg(args, 0, "account_id")
	if err != nil {
		return usage("add <account_id> <gigabytes>: " + err.Error())
	}
	if len(args) < 2 {
		return usage("add <account_id> <gigabytes>")
	}
	gb, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return usage("add <account_id> <gigabytes>: gigabytes must be a number")
	}
	return a.call(ctx, func(ctx context.Context, c client.Client) error {
		acc, err := c.AddTraffic(ctx, id, gb)
		if err != nil {
			return err
		}
		printAccount(a.out, acc)
		return nil
	})
}

func (a *App) activity(ctx context.Context, args []string) error {
	id, err := idArg(args, 0, "account_id")
	if err != nil {
		return usage("activity <account_id> [limit]: " + err.Error())
	}
	limit, err := optInt(args, 1, "limit", 50)
	if err != nil {
		return usage("activity <account_id> [limit]: " + err.Error())
	}
	return a.call(ctx, func(ctx context.Context, c client.Client) error {
		entries, err := c.ActivityLog(ctx, id, limit)
		if err != nil {
			return err
		}
		printActivity(a.out, entries)
		return nil
	})
}

// sync prints the run result even when the run failed.
func (a *App) sync(ctx context.Context) error {
	return a.call(ctx, func(ctx context.Context, c client.Client) error {
		res, err := c.RunSync(ctx)
		if res != nil {
			printSync(a.out, res)
		}
		return err
	})
}

func (a *App) ping(ctx context.Context) error {
	return a.callWith(ctx, false, func(ctx context.Context, c client.Client) error {
		start := nowFn()
		if err := c.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s is up (%s)\n", a.config.ServerEndpointAddr, nowFn().Sub(start).Round(time.Millisecond))
		return nil
	})
}

// mintToken mints an access token locally with the daemon's secret key.
func (a *App) mintToken(args []string) error {
	const u = "token <account_id> <admin|user|viewer> [ttl]"

	id, err := idArg(args, 0, "account_id")
	if err != nil {
		return usage(u + ": " + err.Error())
	}
	if len(args) < 2 {
		return usage(u)
	}
	role := models.ParseRole(args[1])
	if role.String() != strings.ToLower(args[1]) {
		return usage(u + ": unknown role " + args[1])
	}
	ttl := 24 * time.Hour
	if len(args) > 2 {
		if ttl, err = time.ParseDuration(args[2]); err != nil || ttl <= 0 {
			return usage(u + ": ttl must be a positive duration")
		}
	}

	secret := []byte(a.config.SecretKey)
	if len(secret) == 0 {
		if !isTerminal(int(os.Stdin.Fd())) {
			return errors.New("no secret key, pass -s or set PANEL_SECRET_KEY")
		}
		if secret, err = GetSecret(a.out, "Enter secret key: "); err != nil {
			return err
		}
	}

	tok, err := auth.GenerateToken(auth.Identity{AccountID: id, Role: role}, secret, ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(a.out, tok)
	return nil
}

// unseal opens an archive copy downloaded from the bucket. Without an
// output path the plaintext goes to the terminal.
func (a *App) unseal(ctx context.Context, args []string) error {
	const u = "unseal <file> [out]"

	if len(args) < 1 || len(args) > 2 {
		return usage(u)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	if !cryptox.IsSealed(data) {
		return fmt.Errorf("%s: %w", args[0], cryptox.ErrNotSealed)
	}

	pass := []byte(a.config.ArchivePassphrase)
	if len(pass) == 0 {
		if !isTerminal(int(os.Stdin.Fd())) {
			return errors.New("no archive passphrase, pass -P or set PANEL_ARCHIVE_PASSPHRASE")
		}
		if pass, err = GetSecret(a.out, "Enter archive passphrase: "); err != nil {
			return err
		}
	}

	plain, err := cryptox.Open(data, pass)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		_, err = a.out.Write(plain)
		return err
	}
	if err := filex.ReplaceAtomic(ctx, args[1], plain, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %s (%s).\n", args[1], bytesText(int64(len(plain))))
	return nil
}

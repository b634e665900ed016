package console

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"colabai/sources/persistence/entities"
	"colabai/sources/repository"
	"colabai/sources/texting/format"
	"colabai/sources/tokens"

	"github.com/google/uuid"
)

func RenderStats(w io.Writer, userID uuid.UUID, stats *tokens.Stats, commands []repository.CommandUsage, now time.Time) error {
	if stats == nil {
		_, err := fmt.Fprintf(w, "No ledger for user %s.\n", userID)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "USER\t%s\n", userID)
	fmt.Fprintf(tw, "MONTH\t%s\n", stats.LastResetDate)
	fmt.Fprintf(tw, "MONTHLY LIMIT\t%s\n", format.Numberify(stats.MonthlyLimit))
	fmt.Fprintf(tw, "PURCHASED\t%s\n", format.Numberify(stats.PurchasedTokens))
	fmt.Fprintf(tw, "USED THIS MONTH\t%s (%s)\n",
		format.Numberify(stats.MonthlyTokensUsed),
		format.Percentify(stats.MonthlyTokensUsed, stats.MonthlyLimit+stats.PurchasedTokens))
	fmt.Fprintf(tw, "USED TOTAL\t%s\n", format.Numberify(stats.TotalTokensUsed))
	fmt.Fprintf(tw, "AVAILABLE\t%s\n", format.Numberify(stats.AvailableTokens))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(commands) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "COMMAND\tCALLS\tTOKENS")
		for _, c := range commands {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Command, format.Numberify(c.Calls), format.Numberify(c.Tokens))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nRecent usage: %s\n", format.Pluralify(len(stats.RecentUsage), "record", "records"))
	if len(stats.RecentUsage) > 0 {
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tCOMMAND\tTOKENS\tCOST")
		for _, u := range stats.RecentUsage {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", format.Ageify(now, u.Timestamp), u.Command, format.Numberify(u.TokensUsed), cost(u))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nPurchases this month: %s\n", format.Pluralify(len(stats.MonthlyPurchases), "purchase", "purchases"))
	if len(stats.MonthlyPurchases) > 0 {
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tPROVIDER\tTOKENS\tPAID")
		for _, p := range stats.MonthlyPurchases {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", format.Ageify(now, p.Timestamp), p.PaymentProvider, format.Numberify(p.TokensAdded), format.Centify(p.AmountPaid))
		}
		return tw.Flush()
	}

	return nil
}

func RenderLedger(w io.Writer, ledger *entities.TokenLedger) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "LEDGER\t%s\n", ledger.ID)
	fmt.Fprintf(tw, "USER\t%s\n", ledger.UserID)
	fmt.Fprintf(tw, "MONTHLY LIMIT\t%s\n", format.Numberify(ledger.MonthlyLimit))
	fmt.Fprintf(tw, "AVAILABLE\t%s\n", format.Numberify(tokens.AvailableTokens(ledger)))
	return tw.Flush()
}

func cost(u *entities.UsageRecord) string {
	if u.Cost == nil {
		return "-"
	}
	return format.Centify(*u.Cost)
}

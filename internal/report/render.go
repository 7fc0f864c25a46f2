package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"telxScope/internal/model"
)

const rule = 100

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteText writes the human-readable report.
func WriteText(w io.Writer, s Summary, highlight string) error {
	title := "TELx EPOCH REWARD REPORT"
	switch s.Mode {
	case "", model.RunModeFinal:
	case model.RunModeApproximate:
		title = "TELx EPOCH REWARD PREVIEW (approximate)"
	default:
		title = "TELx LIVE REWARD PREVIEW (provisional)"
	}
	symbol := s.TokenSymbol
	if symbol == "" {
		symbol = "TEL"
	}

	p := &printer{w: w}
	p.line(strings.Repeat("=", rule))
	p.line(title)
	p.line(strings.Repeat("=", rule))
	p.f("Pool: %s\n", s.PoolID)
	p.f("Epoch: blocks %d - %d\n", s.StartBlock, s.EndBlock)
	if s.CurrentBlock != 0 {
		p.f("Current block: %d\n", s.CurrentBlock)
	}
	p.f("Generated: %s\n\n", s.GeneratedAt)

	p.f("Positions: %d (Passive %d, Active %d, JIT %d)\n", s.TotalPositions, s.Passive, s.Active, s.JIT)
	p.f("Subscribed: %d  Eligible: %d  Excluded: %d\n", s.Subscribed, s.Eligible, s.Excluded)
	p.f("Total score: %s\n", s.TotalScore)
	p.f("Budget: %s %s  Distributed: %s %s  Undistributed: %s %s\n",
		s.TotalBudgeted, symbol, s.TotalDistributed, symbol, s.Undistributed, symbol)
	if s.Approximate {
		p.line("Note: no usable prices, scores sum raw token amounts (approximate)")
	}
	if s.LowConfidence > 0 {
		p.f("Note: %d positions scored from low-confidence fee data\n", s.LowConfidence)
	}
	if s.TotalPositions == 0 {
		p.line("No positions found.")
		return p.err
	}

	p.line("")
	p.line(strings.Repeat("=", rule))
	p.line("POSITIONS")
	p.line(strings.Repeat("=", rule))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tOwner\tLiquidity\tClass\tSubscribed\tEligible\tScore\tReason")
	for _, pos := range s.Positions {
		marker := " "
		if sameAddress(highlight, pos.Owner) || sameAddress(highlight, pos.Wallet) {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, pos.ID, pos.Owner, pos.Liquidity, pos.Classification,
			yesNo(pos.Subscribed), yesNo(pos.Eligible), pos.WeightedScore, pos.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p.line("")
	p.line(strings.Repeat("=", rule))
	p.line("REWARDS BY WALLET")
	p.line(strings.Repeat("=", rule))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Rank\tWallet\tPositions\tWeighted score\tReward %s\tShare\n", symbol)
	for _, wallet := range s.Wallets {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s%%\n",
			wallet.Rank, wallet.Address, wallet.Positions, wallet.WeightedScore, wallet.Reward, wallet.SharePercent)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) f(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) line(s string) {
	p.f("%s\n", s)
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}

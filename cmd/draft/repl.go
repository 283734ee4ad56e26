package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pokedraft/draftlink/internal/controller"
	"github.com/pokedraft/draftlink/internal/draft"
)

// runREPL is the draft screen: one command per line until the draft is
// quit or the context is cancelled. Remote actions show up the next time
// the state is printed.
func runREPL(ctx context.Context, ctrl *controller.Controller) error {
	fmt.Print(render(ctrl.State()))
	fmt.Println(`Commands: select <pokemon> | toggle | reset | sync | state | quit`)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok = <-lines:
			if !ok {
				return nil
			}
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "select", "pick", "ban", "s":
			if len(fields) < 2 {
				fmt.Println("usage: select <pokemon>")
				continue
			}
			item := strings.ToLower(fields[1])
			if !ctrl.SelectPokemon(item) {
				fmt.Printf("%q was rejected: already used, or the draft is complete.\n", item)
				continue
			}
			fmt.Print(render(ctrl.State()))

		case "toggle":
			if !ctrl.ToggleFirstAttack() {
				fmt.Println("First attack can only change before the first ban.")
				continue
			}
			fmt.Print(render(ctrl.State()))

		case "reset":
			ctrl.Reset()
			fmt.Println("Draft reset.")
			fmt.Print(render(ctrl.State()))

		case "sync":
			if ctrl.SyncState() {
				fmt.Println("Snapshot sent to peer.")
			} else {
				fmt.Println("Channel not open; nothing sent.")
			}

		case "state":
			fmt.Print(render(ctrl.State()))

		case "quit", "exit", "q":
			return nil

		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func render(s draft.State) string {
	var b strings.Builder

	if s.Completed() {
		b.WriteString("\n=== Draft complete ===\n")
	} else {
		step, _ := s.CurrentStep()
		fmt.Fprintf(&b, "\nStep %d/%d — %s %s by team %s\n",
			s.StepCounter+1, draft.TotalSteps, s.Phase, step.Action(), s.Turn)
	}
	fmt.Fprintf(&b, "First attack: %s\n", s.FirstAttackSide)

	for _, team := range []draft.Team{draft.TeamFirst, draft.TeamSecond} {
		marker := " "
		if !s.Completed() && s.Turn == team {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %-6s  bans: %-30s picks: %s\n",
			marker, team,
			formatList(s.TeamBans[team], draft.MaxBansPerTeam),
			formatList(s.TeamPicks[team], draft.MaxPicksPerTeam))
	}
	return b.String()
}

func formatList(items []string, max int) string {
	padded := make([]string, max)
	for i := range padded {
		if i < len(items) {
			padded[i] = items[i]
		} else {
			padded[i] = "-"
		}
	}
	return strings.Join(padded, ", ")
}

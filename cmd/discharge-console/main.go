package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"ward-discharge/internal/client"
	"ward-discharge/internal/domain"
	"ward-discharge/internal/logger"
	"ward-discharge/internal/panel"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = `commands:
  list                 reload the pending list
  approve N            open approve dialog for card N
  reject N             open reject dialog for card N
  reason TEXT          set the rejection reason
  confirm              submit the open dialog
  cancel               close the open dialog
  quit`

func main() {
	_ = godotenv.Load()

	lg, err := logger.NewLogger(getEnv("LOG_LEVEL", "warn"), "console", "discharge-console")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer lg.Sync()

	staff := domain.StaffIdentity{
		ID:      getEnv("STAFF_ID", ""),
		Name:    getEnv("STAFF_NAME", ""),
		Surname: getEnv("STAFF_SURNAME", ""),
	}
	if staff.ID == "" {
		log.Fatal("STAFF_ID is required")
	}

	api := client.NewDischargeClient(getEnv("WARD_API_URL", "http://localhost:8080"), staff, lg)
	p := panel.New(api, lg)

	c := &console{panel: p, out: os.Stdout, logger: lg, loadingHint: 150 * time.Millisecond}
	c.run(os.Stdin)
}

type console struct {
	panel  *panel.Panel
	out    io.Writer
	logger *zap.Logger

	// loadingHint is how long a fetch may run before the loading line is shown
	loadingHint time.Duration
}

func (c *console) run(in io.Reader) {
	c.reload()
	fmt.Fprintln(c.out, usage)

	sc := bufio.NewScanner(in)
	for c.prompt(); sc.Scan(); c.prompt() {
		cmd, arg, _ := strings.Cut(strings.TrimSpace(sc.Text()), " ")
		switch cmd {
		case "":
		case "quit", "exit":
			return
		case "list":
			c.reload()
		case "approve", "reject":
			c.open(arg, domain.DecisionAction(cmd))
		case "reason":
			if err := c.panel.SetReason(arg); err != nil {
				fmt.Fprintln(c.out, err)
			}
		case "cancel":
			c.panel.Cancel()
		case "confirm":
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			if err := c.panel.Confirm(ctx); err != nil && !isReported(err) {
				fmt.Fprintln(c.out, err)
			}
			cancel()
			c.flush()
			c.print()
		default:
			fmt.Fprintln(c.out, usage)
		}
		c.flush()
	}
}

// reload fetches the list in the background and shows a loading line while the fetch is pending.
func (c *console) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = c.panel.Load(ctx)
		close(done)
	}()

	hint := c.loadingHint
	if hint <= 0 {
		hint = 150 * time.Millisecond
	}
	tick := time.NewTicker(hint)
	defer tick.Stop()

	shown := false
	for {
		select {
		case <-done:
			c.flush()
			c.print()
			return
		case <-tick.C:
			if !shown && c.panel.Loading() {
				fmt.Fprintln(c.out, "loading pending discharges...")
				shown = true
			}
		}
	}
}

func (c *console) open(arg string, action domain.DecisionAction) {
	n, err := strconv.Atoi(arg)
	cards := c.panel.Cards()
	if err != nil || n < 1 || n > len(cards) {
		fmt.Fprintf(c.out, "card number must be between 1 and %d\n", len(cards))
		return
	}
	if err := c.panel.Open(cards[n-1].PatientID, action); err != nil && !errors.Is(err, panel.ErrApproveBlocked) {
		fmt.Fprintln(c.out, err)
	}
}

func (c *console) print() {
	cards := c.panel.Cards()
	if len(cards) == 0 {
		fmt.Fprintln(c.out, "no patients pending discharge")
		return
	}
	for i, card := range cards {
		line := fmt.Sprintf("%2d. %s %s (%s) %s %s balance %.2f",
			i+1, card.Name, card.Surname, card.HospitalNumber, card.WardName, card.BedNumber, card.Balance)
		if !card.CanApprove {
			line += " [approve blocked: " + card.ApproveBlockedReason + "]"
		}
		fmt.Fprintln(c.out, line)
	}
}

func (c *console) flush() {
	for _, n := range c.panel.Notices() {
		fmt.Fprintf(c.out, "[%s] %s\n", n.Level, n.Message)
	}
}

func (c *console) prompt() {
	if m := c.panel.Modal(); m != nil {
		fmt.Fprintf(c.out, "%s %s> ", m.Action, m.PatientID)
		return
	}
	fmt.Fprint(c.out, "> ")
}

// isReported is true for errors the panel already surfaced as a notice.
func isReported(err error) bool {
	return domain.KindOf(err) != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

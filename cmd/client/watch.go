package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atinyakov/mecsync/internal/client/api"
	"github.com/atinyakov/mecsync/internal/client/poller"
	"github.com/atinyakov/mecsync/internal/models"
)

var requesterFlag string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the document and report changes until interrupted",
	Long: `Refreshes the document on the poll interval and whenever another session
announces a change. With --requester, orders of that user reaching
"Entregue / Em Estoque" are announced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.checkVersion(ctx)
		err = watch(ctx, a)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().StringVar(&requesterFlag, "requester", "", "user id whose deliveries are announced")
}

func watch(ctx context.Context, a *app) error {
	events, err := a.channel.Listen(ctx)
	if err != nil {
		return err
	}
	var lastRev models.Revision
	p := poller.New(a.api,
		poller.WithInterval(a.cfg.PollInterval.Std()),
		poller.WithEvents(events),
		poller.WithLogger(a.log),
		poller.OnSnapshot(func(s *api.Snapshot) {
			if s.Revision != 0 && s.Revision == lastRev {
				return
			}
			lastRev = s.Revision
			fmt.Fprintf(a.out, "Revisão %d: %d peças, %d pedidos, %d veículos\n",
				s.Revision, len(s.Parts), len(s.Orders), len(s.Vehicles))
			if s.Settings.MaintenanceMode {
				alertColor.Fprintln(a.out, "Sistema em manutenção")
			}
		}),
		poller.OnDelivered(func() string { return requesterFlag }, func(orders []models.Order) {
			for _, o := range orders {
				successColor.Fprintf(a.out, "✅ Pedido #%s disponível!\n", o.ID)
			}
		}),
	)
	return p.Run(ctx)
}

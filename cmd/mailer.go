package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/mq"
	"github.com/taskhub/apiserver/internal/notify"
)

var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Deliver queued mail over SMTP",
	Long: `Consumes the mail queue filled by the API server when NOTIFIER_BACKEND
is rabbitmq or pubsub, and delivers each message over SMTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := mq.Open(ctx, cfg.Notifier)
		if err != nil {
			log.Error("failed to open message queue", zap.Error(err))
			return err
		}
		defer func() { _ = backend.Close() }()

		sender, err := notify.NewSMTPNotifier(cfg.Notifier.SMTP)
		if err != nil {
			log.Error("failed to configure smtp", zap.Error(err))
			return err
		}
		return notify.NewWorker(backend, cfg.Notifier.MailQueue, sender, log.Named("mailer")).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}

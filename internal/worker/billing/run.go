package billing

import (
	"context"
	"encoding/json"
	"time"

	"app/internal/pgmq"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// visibilitySec is how long a read message stays invisible. A message whose
// apply fails transiently is simply left alone and redelivered after this.
const visibilitySec = 30

// Run drains the billing retry queue until ctx is cancelled. Events land
// here when the push endpoint could not apply them; the worker re-applies
// them against the same service and deletes them once they stick.
func Run(ctx context.Context, logger zerolog.Logger, client *pgmq.Client, queue string, billing service.BillingService) error {
	logger.Info().Str("queue", queue).Msg("Starting billing retry worker")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down billing retry worker")
			return nil
		default:
		}

		msgs, err := client.ReadWithPoll(ctx, queue, visibilitySec, 1)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("Shutting down billing retry worker")
				return nil
			}
			logger.Error().Err(err).Msg("Error reading billing retry queue")
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		msg := msgs[0]
		var event service.BillingEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Warn().Err(err).Int64("msg_id", msg.ID).Msg("Dropping unparseable billing event")
			deleteMessage(ctx, logger, client, queue, msg.ID)
			continue
		}

		if err := billing.Apply(ctx, event); err != nil {
			if service.TerminalEventError(err) {
				logger.Warn().Err(err).Int64("msg_id", msg.ID).
					Str("event_type", event.Type).Str("account_id", event.AccountID).
					Msg("Dropping unprocessable billing event")
				deleteMessage(ctx, logger, client, queue, msg.ID)
				continue
			}
			// Transient: leave the message for redelivery after the
			// visibility timeout.
			logger.Error().Err(err).Int64("msg_id", msg.ID).
				Str("event_type", event.Type).Str("account_id", event.AccountID).
				Msg("Failed to apply billing event, will retry")
			continue
		}

		logger.Info().Int64("msg_id", msg.ID).
			Str("event_type", event.Type).Str("account_id", event.AccountID).
			Msg("Applied billing event from retry queue")
		deleteMessage(ctx, logger, client, queue, msg.ID)
	}
}

func deleteMessage(ctx context.Context, logger zerolog.Logger, client *pgmq.Client, queue string, id int64) {
	if err := client.Delete(ctx, queue, []int64{id}); err != nil {
		logger.Error().Err(err).Int64("msg_id", id).Msg("Error deleting billing retry message")
	}
}

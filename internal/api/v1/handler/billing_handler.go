package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/pgmq"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BillingHandler applies billing events pushed over Pub/Sub: plan changes,
// feature grants and revocations, and account disables.
type BillingHandler struct {
	billingService service.BillingService
	retryQueue     *pgmq.Client
	retryQueueName string
	validate       *validator.Validate
	logger         zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler with a scoped logger. The
// retry queue may be nil; transient failures then surface as 5xx and lean on
// Pub/Sub redelivery instead.
func NewBillingHandler(billingService service.BillingService, retryQueue *pgmq.Client, retryQueueName string, validate *validator.Validate, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
		retryQueue:     retryQueue,
		retryQueueName: retryQueueName,
		validate:       validate,
		logger:         logger.With().Str("handler", "BillingHandler").Logger(),
	}
}

// RegisterRoutes mounts the push endpoint behind the Pub/Sub auth middleware
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, pubsubAuthMw func(http.Handler) http.Handler) {
	mux.Handle("/internal/billing/events", pubsubAuthMw(http.HandlerFunc(h.handlePush)))
}

// handlePush godoc
// @Summary Apply a billing event
// @Description Pub/Sub push endpoint for the billing pipeline. Malformed or unprocessable events are acknowledged so they don't redeliver forever; transient failures are parked on the retry queue.
// @Tags billing
// @Accept json
// @Success 200 {string} string "OK"
// @Router /internal/billing/events [post]
func (h *BillingHandler) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var push dto.PubSubPushRequest
	if err := json.NewDecoder(r.Body).Decode(&push); err != nil {
		h.logger.Warn().Err(err).Msg("Malformed Pub/Sub push envelope")
		// Ack: a malformed envelope will never become valid on redelivery.
		w.WriteHeader(http.StatusOK)
		return
	}

	var eventDTO dto.BillingEventDTO
	if err := json.Unmarshal(push.Message.Data, &eventDTO); err != nil {
		h.logger.Warn().Err(err).Str("message_id", push.Message.MessageID).Msg("Malformed billing event payload")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := h.validate.Struct(&eventDTO); err != nil {
		h.logger.Warn().Err(err).Str("message_id", push.Message.MessageID).Msg("Billing event failed validation")
		w.WriteHeader(http.StatusOK)
		return
	}

	event := service.BillingEvent{
		Type:      eventDTO.Type,
		AccountID: eventDTO.AccountID,
		Tier:      eventDTO.Tier,
		Feature:   eventDTO.Feature,
	}
	if err := h.billingService.Apply(r.Context(), event); err != nil {
		if service.TerminalEventError(err) {
			h.logger.Warn().Err(err).
				Str("event_type", event.Type).
				Str("account_id", event.AccountID).
				Msg("Dropping unprocessable billing event")
			w.WriteHeader(http.StatusOK)
			return
		}
		h.parkForRetry(w, r, event, err)
		return
	}

	h.logger.Info().
		Str("event_type", event.Type).
		Str("account_id", event.AccountID).
		Msg("Applied billing event")
	w.WriteHeader(http.StatusOK)
}

// parkForRetry hands a transiently failed event to the retry queue and acks
// the push, so a storage blip doesn't turn into an endless redelivery storm.
func (h *BillingHandler) parkForRetry(w http.ResponseWriter, r *http.Request, event service.BillingEvent, applyErr error) {
	if h.retryQueue != nil {
		payload, err := json.Marshal(event)
		if err == nil {
			if err := h.retryQueue.Send(r.Context(), h.retryQueueName, payload); err == nil {
				h.logger.Warn().Err(applyErr).
					Str("event_type", event.Type).
					Str("account_id", event.AccountID).
					Msg("Parked billing event on retry queue")
				w.WriteHeader(http.StatusOK)
				return
			} else {
				h.logger.Error().Err(err).Msg("Failed to enqueue billing event for retry")
			}
		}
	}
	h.logger.Error().Err(applyErr).
		Str("event_type", event.Type).
		Str("account_id", event.AccountID).
		Msg("Failed to apply billing event")
	http.Error(w, "failed to apply event", http.StatusInternalServerError)
}

package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ticketmarket-settlement-backend/clock"
	"ticketmarket-settlement-backend/config"
	"ticketmarket-settlement-backend/factory"
	"ticketmarket-settlement-backend/handler"
	"ticketmarket-settlement-backend/healthcheck"
	"ticketmarket-settlement-backend/inventory"
	"ticketmarket-settlement-backend/ledger"
	"ticketmarket-settlement-backend/logger"
	"ticketmarket-settlement-backend/middleware"
	"ticketmarket-settlement-backend/notification"
	"ticketmarket-settlement-backend/response"
	"ticketmarket-settlement-backend/settlement"
	"ticketmarket-settlement-backend/tax"
	"ticketmarket-settlement-backend/vault"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Router wires the settlement services and returns the router for all the
// API handler. It also starts the background hold sweeper.
func Router(ctx context.Context) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.SetCorrelationIDHeader)
	r.Use(middleware.PanicHandler)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		response.ResourceNotFound(fmt.Sprintf("The requested resource was not found: path: %s, method: %s", req.URL.Path, req.Method), "The requested resource was not found!").Send(req.Context(), w)
	})

	r.Use(middleware.ResponseTimeLogging)
	r.Use(middleware.RequestLogging)
	r.Use(middleware.SetContentTypeHeader)

	v, err := vault.New(
		viper.GetString(config.VaultToken),
		viper.GetString(config.VaultUnSealKey),
		viper.GetString(config.VaultAddress),
		viper.GetString(config.GatewayPath))
	if err != nil {
		logger.Fatalf(ctx, "router: Error creating vault client: %+v", err)
	}

	apiKey, err := v.GatewayCredential(viper.GetString(config.GatewayCredentialKey))
	if err != nil {
		logger.Fatalf(ctx, "router: Error reading gateway credential: %+v", err)
	}
	gateway := settlement.NewHTTPGateway(viper.GetString(config.GatewayURL), apiKey)

	f := factory.NewFactory()
	db := f.DB(ctx)
	rd := f.Redis(ctx)

	var dispatcher notification.Dispatcher = notification.NewRedisDispatcher(rd, viper.GetString(config.NotificationChannelPrefix))
	if url := viper.GetString(config.NotificationWebhookURL); url != "" {
		dispatcher = notification.NewWebhookDispatcher(url)
	}
	if sid := viper.GetString(config.SMSAccountSID); sid != "" {
		sender := notification.NewSMSSender(sid,
			viper.GetString(config.SMSAuthToken),
			viper.GetString(config.SMSAPIAddress),
			viper.GetString(config.SMSFrom))
		// Phone numbers are cached in redis by the accounts service.
		lookup := func(_ context.Context, customerID string) (string, bool) {
			phone, err := rd.HGet("customer:phones", customerID).Result()
			return phone, err == nil && phone != ""
		}
		dispatcher = notification.NewSMSDispatcher(dispatcher, sender, lookup)
	}

	minimumPayout, err := decimal.NewFromString(viper.GetString(config.MinimumPayout))
	if err != nil {
		logger.Fatalf(ctx, "router: Invalid minimum payout: %+v", err)
	}
	commission, err := decimal.NewFromString(viper.GetString(config.CommissionPercentage))
	if err != nil {
		logger.Fatalf(ctx, "router: Invalid commission percentage: %+v", err)
	}

	allocator := inventory.NewAllocator(inventory.AllocatorProperty{
		Clock:         clock.System(),
		HoldTTL:       time.Duration(viper.GetInt(config.HoldTTLSeconds)) * time.Second,
		ClaimTTL:      time.Duration(viper.GetInt(config.WaitlistClaimSeconds)) * time.Second,
		TicketCodeKey: []byte(viper.GetString(config.TicketCodeKey)),
		TicketTypes:   inventory.NewSQLTicketTypeRepository(db),
		Holds:         inventory.NewSQLHoldRepository(db),
		Tickets:       inventory.NewSQLTicketRepository(db),
		Waitlist:      inventory.NewSQLWaitlistRepository(db),
		Resale:        inventory.NewSQLResaleRepository(db),
		Groups:        inventory.NewSQLGroupBookingRepository(db),
		Dispatcher:    dispatcher,
	})

	calculator := tax.NewCalculator(tax.NewSQLRateRepository(db), tax.NewSQLAuditRepository(db))

	poster := ledger.NewPoster(ledger.PosterProperty{
		Repo:          ledger.NewSQLRepository(db),
		Clock:         clock.System(),
		Notifier:      dispatcher,
		MinimumPayout: minimumPayout,
		SettlementLag: time.Duration(viper.GetInt(config.SettlementLagHours)) * time.Hour,
	})

	orchestrator := settlement.NewOrchestrator(settlement.OrchestratorProperty{
		Allocator:            allocator,
		Calculator:           calculator,
		Poster:               poster,
		Orders:               settlement.NewSQLOrderRepository(db),
		Gateway:              gateway,
		Clock:                clock.System(),
		Notifier:             dispatcher,
		CommissionPercentage: commission,
		RequireGeneralTax:    true,
	})

	go allocator.RunSweeper(ctx, time.Duration(viper.GetInt(config.SweepIntervalSeconds))*time.Second)

	r.HandleFunc("/healthcheck", healthcheck.Self).Methods(http.MethodGet)
	baseRouter := r.PathPrefix("/v1").Subrouter()
	baseRouter.Use(middleware.Authenticate)

	orderRouter := baseRouter.PathPrefix("/order").Subrouter()
	orderRouter.HandleFunc("/reserve", handler.ReserveTickets(orchestrator)).Methods(http.MethodPost)
	orderRouter.HandleFunc("/confirm", handler.ConfirmOrder(orchestrator)).Methods(http.MethodPost)
	orderRouter.HandleFunc("/cancel", handler.CancelOrder(orchestrator)).Methods(http.MethodPost)
	orderRouter.HandleFunc("/{orderID}", handler.GetOrder(orchestrator)).Methods(http.MethodGet)
	orderRouter.HandleFunc("/{orderID}/taxes", handler.GetTaxBreakdown(orchestrator)).Methods(http.MethodGet)

	payoutRouter := baseRouter.PathPrefix("/payout").Subrouter()
	payoutRouter.HandleFunc("", handler.RequestPayout(orchestrator)).Methods(http.MethodPost)
	payoutRouter.HandleFunc("/{payoutID}/{action}", handler.PayoutTransition(poster)).Methods(http.MethodPost)

	resaleRouter := baseRouter.PathPrefix("/resale").Subrouter()
	resaleRouter.HandleFunc("", handler.ListResale(allocator)).Methods(http.MethodPost)
	resaleRouter.HandleFunc("/settle", handler.SettleResale(orchestrator)).Methods(http.MethodPost)
	resaleRouter.HandleFunc("/{listingID}", handler.CancelResale(allocator)).Methods(http.MethodDelete)

	groupRouter := baseRouter.PathPrefix("/group").Subrouter()
	groupRouter.HandleFunc("/split", handler.SplitGroupPayment(allocator)).Methods(http.MethodPost)
	groupRouter.HandleFunc("/payment", handler.RecordMemberPayment(allocator)).Methods(http.MethodPost)

	baseRouter.HandleFunc("/ticket_type/{ticketTypeID}/quota", handler.GetAvailableQuota(orchestrator)).Methods(http.MethodGet)
	baseRouter.HandleFunc("/organizer/{organizerID}/balance", handler.GetOrganizerBalance(orchestrator)).Methods(http.MethodGet)
	baseRouter.HandleFunc("/organizer/{organizerID}/transactions", handler.GetOrganizerStatement(orchestrator)).Methods(http.MethodGet)

	return r
}

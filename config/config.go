package config

import (
	"github.com/spf13/viper"
)

const (
	DBURL = "database.mysql"

	Port   = "server.port"
	Secret = "server.secret"

	RedisAddress  = "redis.address"
	RedisPassword = "redis.password"
	RedisDB       = "redis.db"

	VaultAddress         = "vault.address"
	VaultToken           = "vault.token"
	VaultUnSealKey       = "vault.unseal_key"
	GatewayPath          = "vault.gateway_path"
	GatewayCredentialKey = "vault.gateway_credential_key"
	GatewayURL           = "gateway.url"

	HoldTTLSeconds       = "settlement.hold_ttl_seconds"
	WaitlistClaimSeconds = "settlement.waitlist_claim_seconds"
	SweepIntervalSeconds = "settlement.sweep_interval_seconds"
	SettlementLagHours   = "settlement.lag_hours"
	MinimumPayout        = "settlement.minimum_payout"
	CommissionPercentage = "settlement.commission_percentage"
	TicketCodeKey        = "settlement.ticket_code_key"

	NotificationChannelPrefix = "notification.channel_prefix"
	NotificationWebhookURL    = "notification.webhook_url"

	SMSAccountSID = "sms.account_sid"
	SMSAuthToken  = "sms.auth_token"
	SMSAPIAddress = "sms.api_address"
	SMSFrom       = "sms.from"
)

func init() {
	viper.AutomaticEnv()
	viper.SetDefault(Port, "9000")
	viper.SetDefault(HoldTTLSeconds, 600)
	viper.SetDefault(WaitlistClaimSeconds, 900)
	viper.SetDefault(SweepIntervalSeconds, 30)
	viper.SetDefault(SettlementLagHours, 72)
	viper.SetDefault(MinimumPayout, "50")
	viper.SetDefault(CommissionPercentage, "10")
	viper.SetDefault(NotificationChannelPrefix, "settlement")
}

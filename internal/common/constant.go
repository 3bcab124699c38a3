package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound and outbound requests.
const AccessTokenHeaderName = "access_token"

// GiB is the byte multiplier used for every gigabyte quantity in the panel.
const GiB int64 = 1 << 30

// Window bounds for history queries, leaderboard sizes and activity pages.
const (
	MinHistoryDays   = 1
	MaxHistoryDays   = 365
	MinTopLimit      = 1
	MaxTopLimit      = 100
	MinActivityLimit = 1
	MaxActivityLimit = 500
)

// MaxExtendDays caps a single expiry extension at a hundred years.
const MaxExtendDays = 36500

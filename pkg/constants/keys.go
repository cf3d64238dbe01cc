package constants

type contextKey string

const (
	TxKey     contextKey = "tx"
	PoolKey   contextKey = "pool"
	UserIDKey contextKey = "user_id"
	LoggerKey contextKey = "logger"
)

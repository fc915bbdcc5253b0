package constants

import (
	"github.com/go-playground/form"
	"github.com/go-playground/validator/v10"
)

type contextKey string

const (
	AppKey       contextKey = "app"
	PoolKey      contextKey = "pool"
	TxKey        contextKey = "tx"
	BusKey       contextKey = "eventbus"
	LoggerKey    contextKey = "logger"
	ParamsKey    contextKey = "params"
	RequestStart contextKey = "requestStart"
	RequestIDKey contextKey = "requestID"
)

var (
	Validate = validator.New(validator.WithRequiredStructEnabled())
	Decoder  = form.NewDecoder()
)

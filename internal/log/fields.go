package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldCacheKey  = "cache_key"
	FieldCategory  = "mutation_category"
	FieldKeyCount  = "key_count"
	FieldAmount    = "amount"
	FieldTxType    = "transaction_type"
	FieldTxID      = "transaction_id"
	FieldGoalID    = "goal_id"
	FieldExchange  = "exchange"
	FieldQueue     = "queue"
	FieldOrigin    = "origin"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentAPI          = "api"
	ComponentCache        = "cache"
	ComponentInvalidation = "invalidation"
	ComponentSession      = "session"
	ComponentStorage      = "storage"
	ComponentBus          = "bus"
	ComponentWorker       = "worker"
	ComponentCLI          = "cli"
)

package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeInvalidConfig Code = "INVALID_CONFIG"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Pipeline error codes
const (
	// Pool state ingestion
	CodeDecodeError        Code = "DECODE_ERROR"
	CodeUnsupportedLayout  Code = "UNSUPPORTED_LAYOUT"
	CodeFetchError         Code = "FETCH_ERROR"
	CodeAccountNotFound    Code = "ACCOUNT_NOT_FOUND"
	CodeQuoteEndpointError Code = "QUOTE_ENDPOINT_ERROR"
	CodeInvalidQuote       Code = "INVALID_QUOTE"

	// Chain RPC
	CodeRPCConnectionFailed Code = "RPC_CONNECTION_FAILED"
	CodeRPCError            Code = "RPC_ERROR"
	CodeSlotSubscribeFailed Code = "SLOT_SUBSCRIBE_FAILED"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Scoring
	CodeScoringUnavailable Code = "SCORING_UNAVAILABLE"

	// Execution
	CodeStaleOpportunity  Code = "STALE_OPPORTUNITY"
	CodeExecutionFailure  Code = "EXECUTION_FAILURE"
	CodeCycleTimeout      Code = "CYCLE_TIMEOUT"
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// Persistence
	CodeStoreError Code = "STORE_ERROR"

	// Circuit breaker errors
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)

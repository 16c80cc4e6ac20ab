package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeInvalidConfig: "Invalid configuration",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	CodeDecodeError:        "Failed to decode pool account",
	CodeUnsupportedLayout:  "Unsupported account layout version",
	CodeFetchError:         "Failed to fetch venue state",
	CodeAccountNotFound:    "Account not found",
	CodeQuoteEndpointError: "Quote endpoint error",
	CodeInvalidQuote:       "Invalid quote data",

	CodeRPCConnectionFailed: "Failed to connect to RPC node",
	CodeRPCError:            "RPC call failed",
	CodeSlotSubscribeFailed: "Failed to subscribe to slot updates",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	CodeScoringUnavailable: "Confidence scorer unavailable",

	CodeStaleOpportunity:  "Opportunity source state is stale",
	CodeExecutionFailure:  "Trade execution failed",
	CodeCycleTimeout:      "Cycle deadline exceeded",
	CodeInvalidTransition: "Invalid trade state transition",

	CodeStoreError: "Persistence error",

	CodeCircuitOpen: "Circuit breaker is open",
}

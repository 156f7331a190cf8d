package protocol

// Error frame codes. Validation failures never close the connection;
// the hub replies with an error frame carrying one of these.
const (
	CodeInvalidJSON            = "invalid_json"
	CodeInvalidMessageType     = "invalid_message_type"
	CodeInvalidInput           = "invalid_input"
	CodeInvalidAction          = "invalid_action"
	CodeInvalidAmount          = "invalid_amount"
	CodeInvalidHand            = "invalid_hand"
	CodeUnauthorized           = "unauthorized"
	CodeTableFull              = "table_full"
	CodeSeatUnavailable        = "seat_unavailable"
	CodePlayerAlreadyConnected = "player_already_connected"
	CodePlayerNotFound         = "player_not_found"
	CodeInternalError          = "internal_error"
)

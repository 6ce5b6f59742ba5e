package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID = "user_id"
	FieldPhone  = "phone"

	// Service
	FieldService = "service"

	// Domain
	FieldChatroomID = "chatroom_id"
	FieldMessageID  = "message_id"
	FieldStorageKey = "storage_key"
)

package constants

const (
	ROLE_ADMIN       = "ADMIN"
	ROLE_LAB_MANAGER = "LAB_MANAGER"
	ROLE_RESEARCHER  = "RESEARCHER"
	ROLE_STUDENT     = "STUDENT"
)

var ROLES = []string{ROLE_ADMIN, ROLE_LAB_MANAGER, ROLE_RESEARCHER, ROLE_STUDENT}

const (
	MISSING_LOGIN_INPUT      = "Username and password are required"
	INVALID_USERNAME         = "Username does not exist"
	INVALID_PASSWORD         = "Password is incorrect"
	ACCOUNT_NOT_ACTIVE       = "Account is not active"
	ERROR_INTERNAL_ERROR     = "Internal server error"
	DATA_INPUT_IS_NOT_NUMBER = "Parameter must be a number"
	NOT_ADMIN                = "You do not have permission to perform this action"
	INVALID_INPUT            = "Invalid input"
	UNAUTHORIZED             = "Missing or invalid access token"
	PARSE_DATA_TO_LOCALS     = "Failed to read request data"
	LAB_NOT_FOUND            = "Lab does not exist"
	EQUIPMENT_NOT_FOUND      = "Equipment does not exist"
	USER_NOT_FOUND           = "User does not exist"
	BOOKING_REQUEST_FAILED   = "Booking request could not be completed"
)

// Redis key layout.
const (
	LAB_BOOKING_CHANNEL  = "lab:%d:bookings"
	IDEMPOTENCY_KEY      = "booking:idem:%d:%s"
	BOOKING_REMINDER_KEY = "booking:reminder:%d"
	BOOKING_OVERDUE_KEY  = "booking:overdue:%d"
)

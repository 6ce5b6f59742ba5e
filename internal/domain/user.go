package domain

// User is the identity created at successful OTP verification.
// It is immutable after creation and cleared on logout.
type User struct {
	ID          string `json:"id"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
	Name        string `json:"name"`
}

// Session is the process-wide authentication record.
// Invariant: IsAuthenticated is true iff User is non-nil.
type Session struct {
	IsAuthenticated bool  `json:"isAuthenticated"`
	User            *User `json:"user"`
}

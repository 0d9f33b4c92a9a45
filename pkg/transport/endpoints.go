package transport

const (
	// WebBaseURL is the base URL for web endpoints
	WebBaseURL = "https://www.instagram.com"

	// APIBaseURL is the base URL for mobile API endpoints
	APIBaseURL = "https://i.instagram.com/api/v1"

	// LoginPageURL serves the web login form and its embedded encryption keys
	LoginPageURL = WebBaseURL + "/accounts/login/"

	// SharedDataURL exposes runtime configuration including encryption keys
	SharedDataURL = WebBaseURL + "/data/shared_data/"

	// LoginAjaxURL is the web login submission endpoint
	LoginAjaxURL = WebBaseURL + "/api/v1/web/accounts/login/ajax/"

	// TwoFactorURL is the two-factor code submission endpoint
	TwoFactorURL = WebBaseURL + "/api/v1/web/accounts/login/ajax/two_factor/"

	// LogoutURL is the web logout endpoint
	LogoutURL = WebBaseURL + "/accounts/logout/ajax/"

	// CurrentUserURL answers with the logged-in user, used as a session probe
	CurrentUserURL = WebBaseURL + "/accounts/current_user/?__a=1"

	// WebAppID is the application id expected by the web login endpoints
	WebAppID = "1217981644879628"
)

// IsValidUsername checks a username against platform rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	// letters, numbers, periods, and underscores only
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @ and trailing slashes or spaces
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}

	if username[0] == '@' {
		username = username[1:]
	}

	for len(username) > 0 && (username[len(username)-1] == '/' || username[len(username)-1] == ' ') {
		username = username[:len(username)-1]
	}

	return username
}

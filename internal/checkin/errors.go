package checkin

// LoginPageError means the alternate login page variant was served instead
// of the one the flow knows how to fill. URL is where the browser ended up.
type LoginPageError struct {
	URL string
}

func (e *LoginPageError) Error() string {
	return e.URL
}

package types

// AccessToken is a Salesforce session or OAuth access token. The logger redacts every
// value of this type, so it is safe to pass into slog attributes.
type AccessToken string

// String returns the raw token
func (t AccessToken) String() string {
	return string(t)
}

// IsEmpty reports whether the token has no value
func (t AccessToken) IsEmpty() bool {
	return t == ""
}

package identity

// file: internal/identity/credential.go

// Credential is proof of identity for one provider. Only the fields
// relevant to ProviderID are set.
type Credential struct {
	ProviderID  string
	Email       string
	Password    string
	IDToken     string
	AccessToken string
}

// EmailCredential builds an email/password credential.
func EmailCredential(email, password string) *Credential {
	return &Credential{ProviderID: MethodPassword, Email: email, Password: password}
}

// GoogleCredential builds a Google credential from OAuth tokens. email is
// the address asserted by the ID token.
func GoogleCredential(idToken, accessToken, email string) *Credential {
	return &Credential{ProviderID: MethodGoogle, IDToken: idToken, AccessToken: accessToken, Email: email}
}

package model

// TokenManager issues and validates operator tokens for the sync endpoints.
type TokenManager interface {
	GenerateOperatorToken(subject string) (string, error)
	ParseOperatorToken(token string) (subject string, err error)
}
